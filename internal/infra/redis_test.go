package infra

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_TEST_URL is set.
func TestRedisWindowCounter(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	counter := NewRedisWindowCounter(client, time.Hour)
	key := "test:window:" + uuid.NewString()
	defer client.Del(ctx, key)

	now := time.Now()
	require.NoError(t, counter.Record(ctx, key, now.Add(-2*time.Hour)))
	require.NoError(t, counter.Record(ctx, key, now.Add(-30*time.Minute)))
	require.NoError(t, counter.Record(ctx, key, now))
	require.NoError(t, counter.Record(ctx, key, now))

	n, err := counter.Count(ctx, key, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "same-millisecond events are distinct members")

	n, err = counter.Count(ctx, key, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
