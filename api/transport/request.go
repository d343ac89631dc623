package transport

import (
	"time"

	"github.com/adms/sessiond/domain"
)

// LoginRequest carries the authenticated identity handed over after the
// backend accepted the credentials.
type LoginRequest struct {
	Token      string      `json:"token"`
	User       domain.User `json:"user"`
	Usergroups []string    `json:"usergroups"`
}

// MaintenanceRequest toggles the maintenance window.
type MaintenanceRequest struct {
	Active    bool      `json:"active"`
	Message   string    `json:"message"`
	Until     time.Time `json:"until"`
	UpdatedBy string    `json:"updated_by"`
}

// SessionView is the read model for the current session state.
type SessionView struct {
	Authenticated bool        `json:"authenticated"`
	User          domain.User `json:"user,omitempty"`
	Usergroups    []string    `json:"usergroups,omitempty"`
	CountingDown  bool        `json:"counting_down"`
	Remaining     int         `json:"remaining_seconds"`
	Location      string      `json:"location,omitempty"`
}
