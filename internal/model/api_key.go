package model

import "time"

// Status values for an API key. Transitions between them are unrestricted
// and take effect on the next validation.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// APIKey represents a client's API key for accessing the service.
// Deletes are permanent, so the model does not embed gorm.Model (no DeletedAt).
type APIKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Name is a human-readable label for the key (e.g. "Production Key").
	Name string `gorm:"type:varchar(128);not null" json:"name"`

	// Key is the secret value. It is immutable once created and must be
	// unique across all records.
	Key string `gorm:"type:varchar(255);uniqueIndex;not null" json:"key,omitempty"`

	Status string `gorm:"type:varchar(50);default:'active';not null" json:"status"`

	UsageCount int `gorm:"default:0;not null" json:"usage_count"`
	UsageLimit int `gorm:"default:1000;not null" json:"usage_limit"`
}

// IsActive reports whether the key currently passes validation.
func (k *APIKey) IsActive() bool {
	return k.Status == StatusActive
}

// Sanitized returns a copy of the record with the secret value stripped.
// Validation responses must never include the full key.
func (k *APIKey) Sanitized() *APIKey {
	c := *k
	c.Key = ""
	return &c
}
