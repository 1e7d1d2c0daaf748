package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONReachesSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, "changes")
	require.NoError(t, err)
	require.NoError(t, PublishJSON(ctx, b, "changes", map[string]int{"version": 2}))
	require.NoError(t, PublishJSON(ctx, b, "other", map[string]int{"version": 3}))

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"version":2}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Empty(t, msgs)
}

type signalBroker struct {
	*MemoryBroker
	subscribed chan struct{}
}

func (b signalBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch, err := b.MemoryBroker.Subscribe(ctx, channel)
	close(b.subscribed)
	return ch, err
}

func TestConsumeKeepsGoingAfterHandlerErrors(t *testing.T) {
	b := signalBroker{MemoryBroker: NewMemoryBroker(), subscribed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	var failures int
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, b, "changes", func(_ context.Context, p []byte) error {
			seen = append(seen, string(p))
			if len(seen) == 3 {
				cancel()
			}
			if string(p) == "bad" {
				return errors.New("boom")
			}
			return nil
		}, func(error) { failures++ })
	}()
	<-b.subscribed

	for _, msg := range []string{"first", "bad", "last"} {
		require.NoError(t, b.Publish(context.Background(), "changes", []byte(msg)))
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"first", "bad", "last"}, seen)
	assert.Equal(t, 1, failures)
}

func TestClosedBrokerRejectsWork(t *testing.T) {
	b := NewMemoryBroker()
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), "x", nil), ErrClosed)
	_, err := b.Subscribe(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}
