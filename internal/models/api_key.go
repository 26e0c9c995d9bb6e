package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/tier"
	"gorm.io/gorm"
)

// Credential lifecycle states. Revocation is permanent; suspension can be
// lifted by an operator.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
)

type APIKey struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	KeyHash            string     `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix          string     `gorm:"not null" json:"key_prefix"`
	Name               string     `gorm:"not null" json:"name"`
	CreatedBy          string     `json:"created_by"`
	Tier               string     `gorm:"default:'free'" json:"tier"`
	Status             string     `gorm:"default:'active'" json:"status"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RevokeReason       string     `json:"revoke_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the credential is past its expiry. A key without
// an expiry never expires.
func (a *APIKey) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// EffectiveLimits resolves the credential's rate limits: a non-zero
// per-key override always wins over the tier default.
func (a *APIKey) EffectiveLimits() (perMinute, perDay int) {
	p := tier.Get(a.Tier)
	perMinute, perDay = p.RateLimitPerMinute, p.RateLimitPerDay
	if a.RateLimitPerMinute > 0 {
		perMinute = a.RateLimitPerMinute
	}
	if a.RateLimitPerDay > 0 {
		perDay = a.RateLimitPerDay
	}
	return perMinute, perDay
}

func (APIKey) TableName() string {
	return "api_keys"
}
