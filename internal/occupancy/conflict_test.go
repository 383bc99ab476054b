package occupancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
)

func makeStay(id, roomID uint64, start time.Time, end *time.Time, rate *uint32) model.Stay {
	return model.Stay{
		ID:             id,
		RoomID:         roomID,
		ResidentID:     id + 100,
		StartDate:      start,
		EndDate:        end,
		Active:         true,
		PaymentMode:    model.PaymentPayNow,
		DailyRateCents: rate,
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := interval.Date(y, m, d)
	return &t
}

func cents(c uint32) *uint32 { return &c }

func TestDetectAmongNoConflicts(t *testing.T) {
	asOf := interval.Date(2024, 3, 1)
	stays := []model.Stay{
		makeStay(1, 10, interval.Date(2024, 1, 1), datePtr(2024, 1, 10), nil),
		makeStay(2, 10, interval.Date(2024, 1, 11), datePtr(2024, 1, 20), nil),
		// same dates as stay 1 but on another room
		makeStay(3, 11, interval.Date(2024, 1, 1), datePtr(2024, 1, 10), nil),
	}
	assert.Empty(t, DetectAmong(stays, asOf))
}

func TestDetectAmongFindsOverlapPerRoom(t *testing.T) {
	asOf := interval.Date(2024, 3, 1)
	stays := []model.Stay{
		// deliberately unsorted: detection must not depend on input order
		makeStay(7, 11, interval.Date(2024, 2, 5), datePtr(2024, 2, 9), nil),
		makeStay(2, 10, interval.Date(2024, 1, 8), datePtr(2024, 1, 15), nil),
		makeStay(1, 10, interval.Date(2024, 1, 1), datePtr(2024, 1, 10), nil),
		makeStay(6, 11, interval.Date(2024, 2, 1), datePtr(2024, 2, 4), nil),
	}
	pairs := DetectAmong(stays, asOf)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint64(10), pairs[0].RoomID)
	assert.Equal(t, uint64(1), pairs[0].Older.ID)
	assert.Equal(t, uint64(2), pairs[0].Newer.ID)
}

func TestDetectAmongOpenEndedBlocksLaterStay(t *testing.T) {
	asOf := interval.Date(2024, 2, 1)
	stays := []model.Stay{
		makeStay(1, 10, interval.Date(2024, 1, 1), nil, nil),
		makeStay(2, 10, interval.Date(2024, 1, 20), datePtr(2024, 1, 25), nil),
	}
	pairs := DetectAmong(stays, asOf)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint64(1), pairs[0].Older.ID)

	// a stay starting after asOf is not yet reached by the open end
	future := []model.Stay{
		makeStay(1, 10, interval.Date(2024, 1, 1), nil, nil),
		makeStay(2, 10, interval.Date(2024, 3, 10), datePtr(2024, 3, 15), nil),
	}
	assert.Empty(t, DetectAmong(future, asOf))
}

func TestDetectAmongTieBreaksOnID(t *testing.T) {
	asOf := interval.Date(2024, 2, 1)
	stays := []model.Stay{
		makeStay(9, 10, interval.Date(2024, 1, 1), datePtr(2024, 1, 5), nil),
		makeStay(4, 10, interval.Date(2024, 1, 1), datePtr(2024, 1, 5), nil),
	}
	pairs := DetectAmong(stays, asOf)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint64(4), pairs[0].Older.ID)
	assert.Equal(t, uint64(9), pairs[0].Newer.ID)
}

func TestTruncateEarlierPlan(t *testing.T) {
	pair := ConflictPair{
		RoomID: 10,
		Older:  makeStay(1, 10, interval.Date(2024, 1, 1), datePtr(2024, 1, 10), cents(500)),
		Newer:  makeStay(2, 10, interval.Date(2024, 1, 8), datePtr(2024, 1, 15), cents(500)),
	}
	res := TruncateEarlier{}.Plan(pair)
	require.True(t, res.Applied)
	require.NotNil(t, res.NewEnd)
	assert.Equal(t, interval.Date(2024, 1, 7), *res.NewEnd)
	// Jan 1 through Jan 7 inclusive at 500 cents a day
	require.NotNil(t, res.NewTotalCents)
	assert.Equal(t, uint32(3500), *res.NewTotalCents)
}

func TestTruncateEarlierPlanFreeStayHasNoAmount(t *testing.T) {
	pair := ConflictPair{
		RoomID: 10,
		Older:  makeStay(1, 10, interval.Date(2024, 1, 1), nil, nil),
		Newer:  makeStay(2, 10, interval.Date(2024, 1, 8), datePtr(2024, 1, 15), nil),
	}
	res := TruncateEarlier{}.Plan(pair)
	require.True(t, res.Applied)
	assert.Nil(t, res.NewTotalCents)
}

func TestTruncateEarlierPlanDegeneratePairLeftForReview(t *testing.T) {
	// same start date: truncating would end the older stay before it begins
	pair := ConflictPair{
		RoomID: 10,
		Older:  makeStay(1, 10, interval.Date(2024, 1, 8), datePtr(2024, 1, 20), cents(500)),
		Newer:  makeStay(2, 10, interval.Date(2024, 1, 8), datePtr(2024, 1, 15), cents(500)),
	}
	res := TruncateEarlier{}.Plan(pair)
	assert.False(t, res.Applied)
	assert.Nil(t, res.NewEnd)
	assert.NotEmpty(t, res.Reason)
}

func TestTruncateEarlierResolvesDetectedConflicts(t *testing.T) {
	// planning every detected pair and applying the new ends must leave the
	// snapshot conflict-free on re-detection
	asOf := interval.Date(2024, 6, 1)
	stays := []model.Stay{
		makeStay(1, 10, interval.Date(2024, 1, 1), nil, nil),
		makeStay(2, 10, interval.Date(2024, 2, 1), datePtr(2024, 2, 20), nil),
		makeStay(3, 11, interval.Date(2024, 3, 1), datePtr(2024, 3, 31), nil),
		makeStay(4, 11, interval.Date(2024, 3, 15), nil, nil),
	}
	pairs := DetectAmong(stays, asOf)
	require.Len(t, pairs, 2)

	byID := make(map[uint64]*model.Stay, len(stays))
	for i := range stays {
		byID[stays[i].ID] = &stays[i]
	}
	for _, pair := range pairs {
		res := TruncateEarlier{}.Plan(pair)
		require.True(t, res.Applied)
		byID[pair.Older.ID].EndDate = res.NewEnd
	}
	assert.Empty(t, DetectAmong(stays, asOf))
}
