package messaging

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

func TestNoopBroadcaster(t *testing.T) {
	b := NewNoopBroadcaster(nil)
	require.NoError(t, b.Publish(context.Background(), domain.NewFlagInvalidated("beta", domain.FlagActionUpserted, "a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Run(ctx, nil), context.Canceled)
	assert.NoError(t, b.Close())
}

func TestRabbitMQBroadcaster_FansOutToPeers(t *testing.T) {
	url := os.Getenv("FLAGWISE_TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("FLAGWISE_TEST_RABBITMQ_URL not set")
	}

	a, err := NewRabbitMQBroadcaster(url, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRabbitMQBroadcaster(url, nil)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Ping(context.Background()))

	received := make(chan domain.FlagInvalidated, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = b.Run(ctx, func(_ context.Context, e domain.FlagInvalidated) error {
			received <- e
			return nil
		})
	}()

	// Give the consumer a moment to attach before publishing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, a.Publish(ctx, domain.NewFlagInvalidated("beta-search", domain.FlagActionDeleted, "node-a")))

	select {
	case e := <-received:
		assert.Equal(t, "beta-search", e.Name)
		assert.Equal(t, domain.FlagActionDeleted, e.Action)
		assert.Equal(t, "node-a", e.Origin)
	case <-time.After(5 * time.Second):
		t.Fatal("invalidation not delivered")
	}
}
