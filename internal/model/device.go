package model

import "time"

// TrustState represents where a device sits in its trust lifecycle.
type TrustState string

const (
	TrustPending TrustState = "pending"
	TrustActive  TrustState = "active"
	TrustRevoked TrustState = "revoked"
)

// String returns the string representation of the trust state.
func (t TrustState) String() string {
	return string(t)
}

// IsValid checks whether the trust state is a known value.
func (t TrustState) IsValid() bool {
	switch t {
	case TrustPending, TrustActive, TrustRevoked:
		return true
	}
	return false
}

// Device is a registered noise-sensing unit. Devices are never physically
// deleted; revoked devices stay on record for audit.
type Device struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Trust        TrustState `json:"trust"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}
