package events

import "time"

// EventType enumerates supported security event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventTokenRefreshed    EventType = "token_refreshed"
	EventRefreshRejected   EventType = "refresh_rejected"
	EventLoggedOut         EventType = "logged_out"
	EventSessionsRevoked   EventType = "sessions_revoked"
	EventPasswordChanged   EventType = "password_changed"
	EventUserStatusChanged EventType = "user_status_changed"
	EventUserRoleChanged   EventType = "user_role_changed"
	EventRateLimited       EventType = "rate_limited"
)

// AllEventTypes lists every event type, for subscribers that want them all.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventTokenRefreshed,
	EventRefreshRejected,
	EventLoggedOut,
	EventSessionsRevoked,
	EventPasswordChanged,
	EventUserStatusChanged,
	EventUserRoleChanged,
	EventRateLimited,
}

// Event represents a security event emitted by services and middleware.
// Payloads never carry passwords or raw tokens.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
