package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// SkipIfShort skips container-backed tests under -short
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// StartRedis starts a Redis container that is terminated when t finishes
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })
	return container
}
