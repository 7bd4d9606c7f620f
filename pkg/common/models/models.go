package models

import (
	"time"
)

// Lifecycle event types emitted by the core. Consumers (the notifier service,
// audit tooling) decide what to do with them; the core never addresses admins
// directly.
const (
	EventUserRegistered = "user_registered"
	EventUserApproved   = "user_approved"
	EventUserRejected   = "user_rejected"
	EventAccessRevoked  = "access_revoked"
	EventSessionStarted = "session_started"
	EventDraftSaved     = "draft_saved"
	EventTripSubmitted  = "trip_submitted"
	EventServiceStarted = "service_started"
	EventServiceStopped = "service_stopped"
)

// Event is the envelope published to the lifecycle topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Identity is the snapshot of a user stamped onto records and delivery
// metadata. Produced by the access gate at session start.
type Identity struct {
	Owner        int64  `json:"owner"`
	DisplayName  string `json:"display_name"`
	Organization string `json:"organization"`
}
