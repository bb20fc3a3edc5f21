package entity

import (
	"time"
)

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ReviewRecord is an immutable audit row for one review decision. An
// application accumulates one record per decision across its lifetime;
// records are never updated or deleted.
type ReviewRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ApplicationID uint        `gorm:"index;not null" json:"applicationId"`
	Application   Application `json:"-"`

	ReviewerUserID uint `gorm:"index;not null" json:"reviewerUserId"`

	// the literal decision given by the reviewer, independent of any
	// escalation applied to the application status
	Decision string `gorm:"size:20;not null;index" json:"decision"`

	Comment    string `gorm:"type:text" json:"comment,omitempty"`
	ReasonCode string `gorm:"size:64" json:"reasonCode,omitempty"`
	ReasonText string `gorm:"type:text" json:"reasonText,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
