package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository"
)

// Channel is the broker channel change events are published on.
const Channel = "inventory.changes"

// EventService records change events in the outbox. The worker publishes
// them to the broker once the row is committed.
type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

func (s *EventService) Emit(ctx context.Context, ev model.ChangeEvent) error {
	if ev.Type == "" || ev.EntityID == uuid.Nil {
		return fmt.Errorf("change event needs a type and an entity id")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  ev.Type,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Payload:    payload,
		CreatedAt:  ev.OccurredAt,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Decode parses a published outbox payload back into a change event.
func Decode(payload []byte) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode change event: %w", err)
	}
	if ev.Type == "" || ev.EntityID == uuid.Nil {
		return ev, fmt.Errorf("change event is missing type or entity id")
	}
	return ev, nil
}
