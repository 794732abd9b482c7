package domain

import (
	"time"
)

// LifecycleEvent is a coordination event emitted while a plan executes.
// Events are published to an EventPublisher for decoupled consumers
// (trip history, analytics).
type LifecycleEvent struct {
	ID        string             `json:"id"`
	Type      LifecycleEventType `json:"type"`
	PlanID    string             `json:"plan_id"`
	IntentID  string             `json:"intent_id,omitempty"`
	Provider  string             `json:"provider,omitempty"`
	Attempt   int                `json:"attempt,omitempty"`
	ErrorKind ErrorKind          `json:"error_kind,omitempty"`
	Message   string             `json:"message,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// LifecycleEventType identifies the type of lifecycle event.
type LifecycleEventType string

const (
	EventPlanStarted      LifecycleEventType = "plan.started"
	EventIntentDispatched LifecycleEventType = "intent.dispatched"
	EventIntentRetried    LifecycleEventType = "intent.retried"
	EventIntentCompleted  LifecycleEventType = "intent.completed"
	EventIntentSkipped    LifecycleEventType = "intent.skipped"
	EventPlanCompleted    LifecycleEventType = "plan.completed"
)
