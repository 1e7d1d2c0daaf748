package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// PublishJSON marshals v and publishes it on channel.
func PublishJSON(ctx context.Context, b Broker, channel string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.Publish(ctx, channel, payload)
}

// Consume subscribes to channel and feeds every message to handle until ctx
// is cancelled or the subscription ends. Handler errors go to onError and do
// not stop consumption.
func Consume(ctx context.Context, b Broker, channel string, handle Handler, onError func(error)) error {
	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handle(ctx, msg); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
