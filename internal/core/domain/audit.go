package domain

import "time"

// AuthEventType labels an entry in the authentication audit trail.
type AuthEventType string

const (
	EventLoginSucceeded AuthEventType = "login_succeeded"
	EventLoginFailed    AuthEventType = "login_failed"
	EventLogout         AuthEventType = "logout"
	EventDisplaced      AuthEventType = "session_displaced"
	EventEvicted        AuthEventType = "session_evicted"
)

// AuthEvent is one audit trail entry.
type AuthEvent struct {
	ID         string        `json:"id" bson:"event_id"`
	Type       AuthEventType `json:"type" bson:"type"`
	Identifier string        `json:"identifier" bson:"identifier"`
	Reason     string        `json:"reason,omitempty" bson:"reason,omitempty"`
	RemoteAddr string        `json:"remote_addr,omitempty" bson:"remote_addr,omitempty"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
}
