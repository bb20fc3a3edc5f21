package entity

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Account      string `gorm:"uniqueIndex;size:32;not null" json:"account"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Name         string `gorm:"size:64;not null" json:"name"`
	Role         string `gorm:"size:20;not null;default:student" json:"role"`

	// reviewer delegation pair, written only by the token service and
	// mirrored against ReviewerToken state
	IsReviewer      bool  `gorm:"not null;default:false" json:"isReviewer"`
	ReviewerTokenID *uint `gorm:"index" json:"reviewerTokenId,omitempty"`

	ClassID *int   `json:"classId,omitempty"`
	Email   string `gorm:"size:128" json:"email,omitempty"`
	Phone   string `gorm:"size:20" json:"phone,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Relations, preloaded only when needed
	Applications  []Application  `gorm:"foreignKey:ApplicantID" json:"-"`
	ReviewRecords []ReviewRecord `gorm:"foreignKey:ReviewerUserID" json:"-"`
}

// IsManager reports whether the user may issue/revoke reviewer tokens
// and finalize reviews.
func (u *User) IsManager() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}
