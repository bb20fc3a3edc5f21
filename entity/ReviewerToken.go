package entity

import (
	"encoding/json"
	"time"
)

const TokenTypeReviewer = "reviewer"

// TokenStatus is the effective status of a reviewer token. It is never
// stored, always recomputed from (IsRevoked, ExpiredAt, now).
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
)

// ReviewerToken is a time-bounded, class-scoped delegation credential
// letting a student act as a first-pass reviewer.
type ReviewerToken struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Token     string `gorm:"uniqueIndex;size:64;not null" json:"token"`
	TokenType string `gorm:"size:20;not null;default:reviewer" json:"type"`

	CreatorUserID   uint  `gorm:"index;not null" json:"creatorUserId"`
	ActivatedUserID *uint `gorm:"index" json:"activatedUserId,omitempty"`

	ClassIDsJSON string `gorm:"column:class_ids_json;type:text;not null;default:'[]'" json:"-"`

	IsRevoked bool `gorm:"not null;default:false;index" json:"isRevoked"`

	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	ExpiredAt   time.Time  `gorm:"not null;index" json:"expiredAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Status computes the effective status at the given instant.
func (t *ReviewerToken) Status(now time.Time) TokenStatus {
	if t.IsRevoked {
		return TokenRevoked
	}
	if t.ExpiredAt.Before(now) {
		return TokenExpired
	}
	return TokenActive
}

func (t *ReviewerToken) ClassIDs() []int {
	raw := t.ClassIDsJSON
	if raw == "" {
		return []int{}
	}
	var out []int
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []int{}
	}
	return out
}

func (t *ReviewerToken) SetClassIDs(ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	t.ClassIDsJSON = string(raw)
	return nil
}
