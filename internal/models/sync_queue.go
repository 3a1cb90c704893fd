package models

import (
	"encoding/json"
	"time"
)

// OperationKind tags a queued remote write.
type OperationKind string

const (
	OpAddDailyLog   OperationKind = "ADD_DAILY_LOG"
	OpAddHealthLog  OperationKind = "ADD_HEALTH_LOG"
	OpTriggerSOS    OperationKind = "TRIGGER_SOS"
	OpEnrollScheme  OperationKind = "ENROLL_SCHEME"
	OpUpdateProfile OperationKind = "UPDATE_PROFILE"
	OpAddChild      OperationKind = "ADD_CHILD"
	OpUpdateScheme  OperationKind = "UPDATE_SCHEME"
)

// OperationKinds lists every kind the queue processor can replay.
var OperationKinds = []OperationKind{
	OpAddDailyLog,
	OpAddHealthLog,
	OpTriggerSOS,
	OpEnrollScheme,
	OpUpdateProfile,
	OpAddChild,
	OpUpdateScheme,
}

// SyncQueueItem is a remote write that failed at handler time and awaits replay.
// Payload is the domain-schema JSON the handler attempted to send.
type SyncQueueItem struct {
	ID         string          `json:"id"`
	Type       OperationKind   `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  int64           `json:"createdAt"` // unix millis
	RetryCount int             `json:"retryCount"`
}

// CreatedAtTime returns CreatedAt as time.Time.
func (i SyncQueueItem) CreatedAtTime() time.Time {
	return time.UnixMilli(i.CreatedAt)
}

// ProfileUpdatePayload is the UPDATE_PROFILE payload.
type ProfileUpdatePayload struct {
	ID      string        `json:"id"`
	Updates ProfileUpdate `json:"updates"`
}

// SchemeUpdatePayload is the UPDATE_SCHEME payload.
type SchemeUpdatePayload struct {
	SchemeID string       `json:"schemeId"`
	Updates  SchemeUpdate `json:"schemeUpdates"`
}
