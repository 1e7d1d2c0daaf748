package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
)

func newBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := metrics.Nop()
	b, err := NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0", PoolSize: 2}, logger.Nop(), m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr, m
}

func TestPublishSubscribe(t *testing.T) {
	b, _, m := newBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, "inventory.changes")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "inventory.changes", []byte(`{"type":"order.updated"}`)))

	select {
	case got := <-msgs:
		assert.JSONEq(t, `{"type":"order.updated"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "success")))

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel closes once the context ends")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
}

func TestPublishFailsWhenServerIsGone(t *testing.T) {
	b, mr, m := newBroker(t)
	mr.Close()

	err := b.Publish(context.Background(), "inventory.changes", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "error")))
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "://nope"}, logger.Nop(), metrics.Nop())
	assert.Error(t, err)
}
