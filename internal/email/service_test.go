package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captured struct {
	msgs []*gomail.Message
	err  error
}

func (c *captured) DialAndSend(m ...*gomail.Message) error {
	c.msgs = append(c.msgs, m...)
	return c.err
}

func TestSendCustomBuildsMessage(t *testing.T) {
	c := &captured{}
	svc := &smtpService{dialer: c, from: "inventory@hospital.test"}

	require.NoError(t, svc.SendCustom(context.Background(), "a@hospital.test, b@hospital.test", "Approval requested", "PO-1 needs approval"))
	require.Len(t, c.msgs, 1)
	m := c.msgs[0]
	assert.Equal(t, []string{"a@hospital.test", "b@hospital.test"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Approval requested"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PO-1 needs approval")
}

func TestSendCustomErrors(t *testing.T) {
	c := &captured{err: errors.New("relay refused")}
	svc := &smtpService{dialer: c, from: "inventory@hospital.test"}

	assert.Error(t, svc.SendCustom(context.Background(), " , ", "s", "b"))
	assert.Empty(t, c.msgs)
	assert.ErrorContains(t, svc.SendCustom(context.Background(), "a@hospital.test", "s", "b"), "relay refused")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Host: "smtp", From: "x@y"}.Enabled())
}
