package entity

import (
	"encoding/json"
	"time"
)

// Attachment is one evidence file reference. At least one of FileID or
// FileURL must be set.
type Attachment struct {
	FileID  string `json:"fileId,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}

func (a Attachment) HasRef() bool {
	return a.FileID != "" || a.FileURL != ""
}

// Application is a student-submitted claim for merit credit.
type Application struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ApplicantID uint `gorm:"index;not null" json:"applicantId"`
	Applicant   User `json:"-"`

	Category string `gorm:"size:32;not null" json:"category"`
	SubType  string `gorm:"size:64;not null" json:"subType"`
	AwardUID int    `gorm:"index;not null" json:"awardUid"`

	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	OccurredAt  time.Time `gorm:"not null" json:"occurredAt"`

	AttachmentsJSON string `gorm:"column:attachments_json;type:text;not null;default:'[]'" json:"-"`

	Status           ApplicationStatus `gorm:"size:32;not null;index" json:"status"`
	Score            *float64          `json:"score"`
	ScoreRuleVersion string            `gorm:"size:32" json:"scoreRuleVersion,omitempty"`
	Comment          string            `gorm:"type:text" json:"comment,omitempty"`

	// optimistic-concurrency counter, starts at 1 and moves by exactly
	// one per accepted mutation
	Version int `gorm:"not null;default:1" json:"version"`

	IsDeleted bool       `gorm:"not null;default:false;index" json:"-"`
	DeletedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ReviewRecords []ReviewRecord `gorm:"foreignKey:ApplicationID" json:"-"`
}

// Attachments decodes the stored JSON list; malformed content reads as
// an empty list rather than failing the row.
func (a *Application) Attachments() []Attachment {
	raw := a.AttachmentsJSON
	if raw == "" {
		return []Attachment{}
	}
	var out []Attachment
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []Attachment{}
	}
	return out
}

func (a *Application) SetAttachments(items []Attachment) error {
	if items == nil {
		items = []Attachment{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	a.AttachmentsJSON = string(raw)
	return nil
}
