package worker

import (
	"context"
	"errors"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/event"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging"
)

// Applier folds a change event into an entity store.
type Applier interface {
	Apply(ev model.ChangeEvent) error
}

// Subscriber keeps the stores current between polls by applying change
// events published by the outbox worker.
type Subscriber struct {
	broker   messaging.Broker
	channel  string
	appliers map[string]Applier
	log      *logger.Logger
}

// NewSubscriber routes events by entity type.
func NewSubscriber(broker messaging.Broker, log *logger.Logger, appliers map[string]Applier) *Subscriber {
	return &Subscriber{broker: broker, channel: event.Channel, appliers: appliers, log: log}
}

func (s *Subscriber) Start(ctx context.Context) error {
	err := messaging.Consume(ctx, s.broker, s.channel, s.handle, func(err error) {
		s.log.Warn("dropped change event", "error", err.Error())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Subscriber) handle(_ context.Context, payload []byte) error {
	ev, err := event.Decode(payload)
	if err != nil {
		return err
	}
	a, ok := s.appliers[ev.EntityType]
	if !ok {
		return nil
	}
	return a.Apply(ev)
}
