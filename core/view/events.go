package view

import (
	"context"
	"time"

	"github.com/asaidimu/go-tabula/core/query"
)

// ViewEventType is the name a session emits events under.
type ViewEventType string

const (
	RecomputeSuccess       ViewEventType = "view:recompute:success"
	RecomputeFailed        ViewEventType = "view:recompute:failed"
	SubscriptionRegister   ViewEventType = "subscription:register"
	SubscriptionUnregister ViewEventType = "subscription:unregister"
)

// ViewEvent describes one state transition of a session.
type ViewEvent struct {
	Type       ViewEventType   `json:"type"`
	Timestamp  int64           `json:"timestamp"` // Unix milliseconds.
	View       string          `json:"view"`
	Operation  string          `json:"operation"`
	State      query.ViewState `json:"state"`
	TotalItems int             `json:"totalItems"`
	Page       int             `json:"page"`
	Error      *string         `json:"error,omitempty"`
	Duration   *int64          `json:"duration,omitempty"` // Milliseconds.
	Context    map[string]any  `json:"context,omitempty"`
}

// EventCallbackFunction receives session events.
type EventCallbackFunction func(ctx context.Context, event ViewEvent) error

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       ViewEventType `json:"event"`
	Label       *string       `json:"label,omitempty"`
	Description *string       `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          *string       `json:"id,omitempty"`
	Event       ViewEventType `json:"event"`
	Label       *string       `json:"label,omitempty"`
	Description *string       `json:"description,omitempty"`
	Unsubscribe func()        `json:"-"`
}

func createEvent(eventType ViewEventType, operation, view string, state query.ViewState, total int, err error, start time.Time) ViewEvent {
	now := time.Now()
	duration := now.Sub(start).Milliseconds()
	event := ViewEvent{
		Type:       eventType,
		Timestamp:  now.UnixMilli(),
		View:       view,
		Operation:  operation,
		State:      state,
		TotalItems: total,
		Page:       state.Page,
		Duration:   &duration,
	}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
	}
	return event
}
