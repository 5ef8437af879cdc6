package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/mongo"
)

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()

	client, err := mongo.New(context.Background(), mongo.Config{})
	require.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
	assert.Nil(t, client)
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()

	client, err := mongo.New(context.Background(), mongo.Config{
		ConnectionURL: "not-a-mongo-url",
		RetryAttempts: 1,
	})
	require.ErrorIs(t, err, mongo.ErrConnect)
	assert.Nil(t, client)
}

func TestNew_ContextCancelledBetweenRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := mongo.New(ctx, mongo.Config{
		ConnectionURL:  "mongodb://127.0.0.1:1",
		ConnectTimeout: 100 * time.Millisecond,
		RetryAttempts:  5,
		RetryInterval:  time.Minute,
	})
	require.ErrorIs(t, err, mongo.ErrConnect)
	assert.Less(t, time.Since(start), 30*time.Second)
}
