package domain

import (
	"encoding/json"
	"time"
)

// MaintenanceKey is the well-known durable-storage key carrying the
// maintenance-mode state across instances.
const MaintenanceKey = "adms:maintenance-mode"

// AuthDataKey is the well-known durable-storage key carrying the persisted
// session subset across instances.
const AuthDataKey = "authData"

// MaintenanceState gates navigation while operators work on the system.
// Its lifecycle is independent from the session but it travels over the
// same broadcast storage.
type MaintenanceState struct {
	Active    bool      `json:"active"`
	Message   string    `json:"message,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Expired reports whether an active maintenance window has passed its
// deadline at the given reference time.
func (m MaintenanceState) Expired(reference time.Time) bool {
	return m.Active && !m.Until.IsZero() && m.Until.Before(reference)
}

// ParseMaintenanceState decodes a stored payload, tolerating anything
// another writer or an older schema may have produced. Malformed or empty
// input yields the inactive default, never an error.
func ParseMaintenanceState(payload []byte) MaintenanceState {
	var state MaintenanceState
	if len(payload) == 0 {
		return MaintenanceState{}
	}
	if err := json.Unmarshal(payload, &state); err != nil {
		return MaintenanceState{}
	}
	return state
}

// ParseStoredAuth decodes a persisted session payload with the same
// tolerance: malformed input reads as "logged out".
func ParseStoredAuth(payload []byte) StoredAuth {
	var auth StoredAuth
	if len(payload) == 0 {
		return StoredAuth{}
	}
	if err := json.Unmarshal(payload, &auth); err != nil {
		return StoredAuth{}
	}
	return auth
}
