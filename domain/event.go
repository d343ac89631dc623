package domain

import "time"

// SessionEventType classifies entries of the session audit trail.
type SessionEventType string

const (
	EventLogin             SessionEventType = "login"
	EventLogout            SessionEventType = "logout"
	EventIdleTimeout       SessionEventType = "idle_timeout"
	EventRefreshFailure    SessionEventType = "refresh_failure"
	EventRemoteLogout      SessionEventType = "remote_logout"
	EventMaintenanceToggle SessionEventType = "maintenance_toggle"
)

// SessionEvent is one audited lifecycle transition. Recording is always
// best-effort; the lifecycle never blocks on the audit trail.
type SessionEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	Type      SessionEventType  `json:"type"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
