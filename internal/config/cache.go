package config

import (
	"strings"
	"time"
)

// CacheConfig controls the Redis response cache that sits in front of the
// read-only report and catalog endpoints.  Caching is skipped entirely when
// Enabled is false or no Redis client could be created.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // HTTP methods eligible for caching
	TTL          time.Duration   // lifetime of a cache entry
	Prefix       string          // key namespace
	MaxBodyBytes int             // responses larger than this are not cached
}

// LoadCacheConfig builds a CacheConfig from the environment with defaults
// suited to the occupancy reports: GET only, short TTL so a fresh release
// shows up within half a minute.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getenv("CACHE_ENABLED", "true") == "true",
		Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          duration("CACHE_TTL", 30*time.Second),
		Prefix:       getenv("CACHE_PREFIX", "occupancy:cache"),
		MaxBodyBytes: atoi(getenv("CACHE_MAX_BODY_BYTES", "1048576")),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
