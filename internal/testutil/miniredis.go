package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniredis starts an in-memory Redis for unit tests (no Docker needed)
// and returns it together with go-redis options pointed at it. The server
// is closed when the test completes.
func NewMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Options) {
	t.Helper()

	mr := miniredis.RunT(t)

	return mr, &redis.Options{Addr: mr.Addr()}
}

// RedisURL returns a connection URL for a running miniredis, in the form
// the daemon config accepts.
func RedisURL(mr *miniredis.Miniredis) string {
	return "redis://" + mr.Addr()
}
