package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging"
)

type mailbox struct {
	to, subject, body string
	err               error
}

func (m *mailbox) SendCustom(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestNotifyPublishesAndMails(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := broker.Subscribe(ctx, Channel)
	require.NoError(t, err)

	mail := &mailbox{}
	svc := NewService(mail, broker, nil)
	n := model.Notification{
		ID:        uuid.New(),
		Level:     model.NotificationInfo,
		Title:     "Approval requested",
		Message:   "PO-20240310-ABCDEF awaits approval",
		Recipient: "approvers@hospital.test",
	}
	require.NoError(t, svc.Notify(ctx, n))

	select {
	case raw := <-msgs:
		var got model.Notification
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("notification not published")
	}
	assert.Equal(t, "approvers@hospital.test", mail.to)
	assert.Equal(t, "Approval requested", mail.subject)
}

func TestNotifySkipsMailWithoutRecipient(t *testing.T) {
	mail := &mailbox{}
	require.NoError(t, NewService(mail, nil, nil).Notify(context.Background(), model.Notification{Title: "Order created"}))
	assert.Empty(t, mail.to)
}

func TestNotifyReportsTransportErrors(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	require.NoError(t, broker.Close())
	svc := NewService(&mailbox{err: errors.New("smtp down")}, broker, nil)

	err := svc.Notify(context.Background(), model.Notification{Title: "x", Recipient: "a@b"})
	assert.ErrorIs(t, err, messaging.ErrClosed)
	assert.ErrorContains(t, err, "smtp down")

	assert.Error(t, svc.Notify(context.Background(), model.Notification{}))
}
