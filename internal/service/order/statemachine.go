package order

import (
	"fmt"
	"slices"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
)

// Action is a status transition on an order.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionSend     Action = "send"
	ActionConfirm  Action = "confirm"
	ActionReceive  Action = "receive"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Actions lists every action in lifecycle order.
var Actions = []Action{
	ActionSubmit, ActionApprove, ActionReject, ActionSend,
	ActionConfirm, ActionReceive, ActionComplete, ActionCancel,
}

type rule struct {
	from []model.OrderStatus
	// to is empty when the target depends on the delivery (receive).
	to model.OrderStatus
}

var rules = map[Action]rule{
	ActionSubmit:  {from: []model.OrderStatus{model.OrderStatusDraft}, to: model.OrderStatusPendingApproval},
	ActionApprove: {from: []model.OrderStatus{model.OrderStatusPendingApproval}, to: model.OrderStatusApproved},
	ActionReject:  {from: []model.OrderStatus{model.OrderStatusPendingApproval}, to: model.OrderStatusRejected},
	ActionSend:    {from: []model.OrderStatus{model.OrderStatusApproved}, to: model.OrderStatusSent},
	ActionConfirm: {from: []model.OrderStatus{model.OrderStatusSent}, to: model.OrderStatusConfirmed},
	ActionReceive: {from: []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusPartiallyReceived}},
	ActionComplete: {
		from: []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusPartiallyReceived},
		to:   model.OrderStatusCompleted,
	},
	ActionCancel: {
		from: []model.OrderStatus{
			model.OrderStatusDraft, model.OrderStatusPendingApproval, model.OrderStatusApproved,
			model.OrderStatusSent, model.OrderStatusConfirmed,
		},
		to: model.OrderStatusCancelled,
	},
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := rules[a]; !ok {
		return "", apperrors.BadRequest(fmt.Sprintf("unknown order action %q", s), nil)
	}
	return a, nil
}

// CanTransition reports whether action is legal from status.
func CanTransition(from model.OrderStatus, action Action) bool {
	r, ok := rules[action]
	return ok && slices.Contains(r.from, from)
}

// AvailableActions lists the actions legal from status.
func AvailableActions(status model.OrderStatus) []Action {
	out := []Action{}
	for _, a := range Actions {
		if CanTransition(status, a) {
			out = append(out, a)
		}
	}
	return out
}

// RequiresApprover reports whether only approvers may perform action.
func RequiresApprover(action Action) bool {
	return action == ActionApprove || action == ActionReject
}

// Editable reports whether order contents may still change.
func Editable(status model.OrderStatus) bool {
	return status == model.OrderStatusDraft || status == model.OrderStatusPendingApproval
}

// Deletable reports whether an order may be removed outright.
func Deletable(status model.OrderStatus) bool {
	return status == model.OrderStatusDraft || status == model.OrderStatusCancelled
}
