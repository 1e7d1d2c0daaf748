package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/email"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging"
)

// Channel carries notifications to connected dashboards.
const Channel = "notifications"

// Service fans a notification out to the pub/sub channel and, when it names
// a recipient, to e-mail.
type Service struct {
	emailSvc email.Service
	broker   messaging.Broker
	log      *logger.Logger
}

// NewService builds the notifier. Either transport may be nil.
func NewService(emailSvc email.Service, broker messaging.Broker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{emailSvc: emailSvc, broker: broker, log: log}
}

func (s *Service) Notify(ctx context.Context, n model.Notification) error {
	if n.Title == "" {
		return fmt.Errorf("notification title is required")
	}

	var errs []error
	if s.broker != nil {
		if err := messaging.PublishJSON(ctx, s.broker, Channel, n); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if n.Recipient != "" && s.emailSvc != nil {
		if err := s.emailSvc.SendCustom(ctx, n.Recipient, n.Title, n.Message); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			s.log.Debug("notification e-mailed", "title", n.Title, "entity_id", n.EntityID.String())
		}
	}
	return errors.Join(errs...)
}
