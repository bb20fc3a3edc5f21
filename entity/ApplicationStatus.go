package entity

// ApplicationStatus is the workflow state of an Application.
type ApplicationStatus string

const (
	StatusPendingAI      ApplicationStatus = "pending_ai"
	StatusAIAbnormal     ApplicationStatus = "ai_abnormal"
	StatusPendingReview  ApplicationStatus = "pending_review"
	StatusPendingTeacher ApplicationStatus = "pending_teacher"
	StatusApproved       ApplicationStatus = "approved"
	StatusRejected       ApplicationStatus = "rejected"
	StatusWithdrawn      ApplicationStatus = "withdrawn"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPendingAI, StatusAIAbnormal, StatusPendingReview,
		StatusPendingTeacher, StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// Editable reports whether the applicant may still modify or withdraw
// the application in this state.
func (s ApplicationStatus) Editable() bool {
	switch s {
	case StatusPendingAI, StatusAIAbnormal, StatusPendingReview:
		return true
	}
	return false
}
