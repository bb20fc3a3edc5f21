package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/repository"

	"gorm.io/gorm"
)

var (
	reviewerStatuses = []entity.ApplicationStatus{entity.StatusPendingReview, entity.StatusAIAbnormal}
	teacherStatuses  = []entity.ApplicationStatus{entity.StatusPendingTeacher}
)

// ReviewActor is the resolved reviewing scope of a principal: either
// unscoped (teacher/admin) or bounded to the class set of a delegation
// token.
type ReviewActor struct {
	// nil means unscoped
	ScopeClassIDs      []int
	ReviewableStatuses []entity.ApplicationStatus
}

func (a *ReviewActor) Scoped() bool { return a.ScopeClassIDs != nil }

func (a *ReviewActor) InScope(classID *int) bool {
	if a.ScopeClassIDs == nil {
		return true
	}
	if classID == nil {
		return false
	}
	for _, id := range a.ScopeClassIDs {
		if id == *classID {
			return true
		}
	}
	return false
}

func (a *ReviewActor) CanReview(status entity.ApplicationStatus) bool {
	for _, s := range a.ReviewableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ReviewService resolves reviewing scopes and applies review decisions.
type ReviewService struct {
	DB      *gorm.DB
	Apps    *repository.ApplicationRepository
	Records *repository.ReviewRecordRepository
	Tokens  *repository.ReviewerTokenRepository
	Users   *repository.UserRepository
	Now     func() time.Time
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{
		DB:      db,
		Apps:    repository.NewApplicationRepository(db),
		Records: repository.NewReviewRecordRepository(db),
		Tokens:  repository.NewReviewerTokenRepository(db),
		Users:   repository.NewUserRepository(db),
		Now:     time.Now,
	}
}

// ResolveActor computes the reviewing scope for a principal. This is
// the single seam where a stale token binding is detected: when the
// student's token is missing, revoked or expired the reviewer pair is
// cleared here and committed even when the operation then fails; the
// cleanup reflects ground truth independent of the request.
func (s *ReviewService) ResolveActor(user *entity.User) (*ReviewActor, error) {
	if user.IsManager() {
		return &ReviewActor{ScopeClassIDs: nil, ReviewableStatuses: teacherStatuses}, nil
	}
	if user.Role != entity.RoleStudent {
		return nil, fmt.Errorf("%w: role %s may not review", ErrForbidden, user.Role)
	}
	if !user.IsReviewer || user.ReviewerTokenID == nil {
		return nil, fmt.Errorf("%w: not a reviewer", ErrForbidden)
	}

	token, err := s.Tokens.FindByID(s.DB, *user.ReviewerTokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.clearStaleBinding(user)
			return nil, fmt.Errorf("%w: reviewer token missing", ErrForbidden)
		}
		return nil, err
	}

	if st := token.Status(s.Now()); st != entity.TokenActive {
		s.clearStaleBinding(user)
		return nil, fmt.Errorf("%w: reviewer token %s", ErrForbidden, st)
	}

	scope := token.ClassIDs()
	if len(scope) == 0 {
		return nil, fmt.Errorf("%w: token carries no class scope", ErrForbidden)
	}
	return &ReviewActor{ScopeClassIDs: scope, ReviewableStatuses: reviewerStatuses}, nil
}

func (s *ReviewService) clearStaleBinding(user *entity.User) {
	if err := s.Users.ClearReviewerFlags(s.DB, user.ID); err != nil {
		return
	}
	user.IsReviewer = false
	user.ReviewerTokenID = nil
}

// DecisionInput is one accept/reject verdict.
type DecisionInput struct {
	Decision   string
	Comment    string
	ReasonCode string
	ReasonText string
}

func (in DecisionInput) normalize() (string, error) {
	decision := strings.ToLower(strings.TrimSpace(in.Decision))
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return "", fmt.Errorf("%w: decision %q", ErrInvalidInput, in.Decision)
	}
	if decision == entity.DecisionRejected && (in.ReasonCode == "" || in.ReasonText == "") {
		return "", fmt.Errorf("%w: rejection requires reasonCode and reasonText", ErrInvalidInput)
	}
	return decision, nil
}

// Decide applies one verdict to an in-scope application. A class-scoped
// approval escalates to pending_teacher instead of finalizing; the
// review record always captures the literal decision. Application bump
// and record insert commit as one unit.
func (s *ReviewService) Decide(user *entity.User, applicationID uint, in DecisionInput) (*entity.Application, *entity.ReviewRecord, error) {
	actor, err := s.ResolveActor(user)
	if err != nil {
		return nil, nil, err
	}
	decision, err := in.normalize()
	if err != nil {
		return nil, nil, err
	}

	var app *entity.Application
	var rec *entity.ReviewRecord
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		row, err := s.Apps.FindActiveWithApplicant(tx, applicationID)
		if err != nil {
			return orNotFound(err)
		}
		if !actor.InScope(row.Applicant.ClassID) {
			return fmt.Errorf("%w: applicant outside review scope", ErrForbidden)
		}
		if !actor.CanReview(row.Status) {
			return fmt.Errorf("%w: status %s is not reviewable by this actor", ErrInvalidState, row.Status)
		}

		target := entity.ApplicationStatus(decision)
		if actor.Scoped() && decision == entity.DecisionApproved {
			target = entity.StatusPendingTeacher
		}

		comment := in.Comment
		if comment == "" {
			comment = in.ReasonText
		}

		affected, err := s.Apps.UpdateGuarded(tx, row.ID, row.Version, map[string]any{
			"status":     target,
			"comment":    comment,
			"version":    row.Version + 1,
			"updated_at": s.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: concurrent update", ErrVersionConflict)
		}

		rec = &entity.ReviewRecord{
			ApplicationID:  row.ID,
			ReviewerUserID: user.ID,
			Decision:       decision,
			Comment:        in.Comment,
			ReasonCode:     in.ReasonCode,
			ReasonText:     in.ReasonText,
		}
		if err := s.Records.Create(tx, rec); err != nil {
			return err
		}

		app, err = s.Apps.FindActiveWithApplicant(tx, row.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return app, rec, nil
}

// BatchOutcome is the per-id result of a batch decision.
type BatchOutcome struct {
	ApplicationID uint                     `json:"applicationId"`
	OK            bool                     `json:"ok"`
	Status        entity.ApplicationStatus `json:"status,omitempty"`
	ReviewID      uint                     `json:"reviewId,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

const batchDecisionLimit = 200

// BatchDecide applies the same verdict to each id independently; one
// failure does not abort the others.
func (s *ReviewService) BatchDecide(user *entity.User, ids []uint, in DecisionInput) ([]BatchOutcome, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: applicationIds must not be empty", ErrInvalidInput)
	}
	if len(ids) > batchDecisionLimit {
		return nil, fmt.Errorf("%w: at most %d ids per batch", ErrInvalidInput, batchDecisionLimit)
	}
	if _, err := in.normalize(); err != nil {
		return nil, err
	}

	outcomes := make([]BatchOutcome, 0, len(ids))
	for _, id := range ids {
		app, rec, err := s.Decide(user, id, in)
		if err != nil {
			outcomes = append(outcomes, BatchOutcome{ApplicationID: id, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, BatchOutcome{
			ApplicationID: id,
			OK:            true,
			Status:        app.Status,
			ReviewID:      rec.ID,
		})
	}
	return outcomes, nil
}

// PendingQuery narrows the review queue listing.
type PendingQuery struct {
	ClassID  *int
	Category string
	SubType  string
	Keyword  string
	Page     int
	Size     int
}

// PendingItem is one row of the review queue.
type PendingItem struct {
	ApplicationID uint                     `json:"applicationId"`
	StudentID     uint                     `json:"studentId"`
	StudentName   string                   `json:"studentName"`
	ClassID       *int                     `json:"classId"`
	Title         string                   `json:"title"`
	Category      string                   `json:"category"`
	SubType       string                   `json:"subType"`
	Status        entity.ApplicationStatus `json:"status"`
	Score         *float64                 `json:"score"`
	CreatedAt     time.Time                `json:"createdAt"`
}

type PendingPage struct {
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int64         `json:"total"`
	List  []PendingItem `json:"list"`
}

func (s *ReviewService) pendingFilter(actor *ReviewActor, q PendingQuery) (repository.PendingFilter, error) {
	if q.ClassID != nil && !actor.InScope(q.ClassID) {
		return repository.PendingFilter{}, fmt.Errorf("%w: class %d outside review scope", ErrForbidden, *q.ClassID)
	}
	return repository.PendingFilter{
		ScopeClassIDs: actor.ScopeClassIDs,
		ClassID:       q.ClassID,
		Statuses:      actor.ReviewableStatuses,
		Category:      q.Category,
		SubType:       q.SubType,
		Keyword:       q.Keyword,
	}, nil
}

func (s *ReviewService) PendingList(user *entity.User, q PendingQuery) (*PendingPage, error) {
	actor, err := s.ResolveActor(user)
	if err != nil {
		return nil, err
	}
	filter, err := s.pendingFilter(actor, q)
	if err != nil {
		return nil, err
	}
	page, size := normalizePage(q.Page, q.Size)

	rows, total, err := s.Apps.ListPending(filter, page, size)
	if err != nil {
		return nil, err
	}

	list := make([]PendingItem, 0, len(rows))
	for _, row := range rows {
		list = append(list, PendingItem{
			ApplicationID: row.ID,
			StudentID:     row.Applicant.ID,
			StudentName:   row.Applicant.Name,
			ClassID:       row.Applicant.ClassID,
			Title:         row.Title,
			Category:      row.Category,
			SubType:       row.SubType,
			Status:        row.Status,
			Score:         row.Score,
			CreatedAt:     row.CreatedAt,
		})
	}
	return &PendingPage{Page: page, Size: size, Total: total, List: list}, nil
}

// PendingCategoryStat counts one category of the scoped queue.
type PendingCategoryStat struct {
	Category     string `json:"category"`
	PendingCount int    `json:"pendingCount"`
}

func (s *ReviewService) PendingCategorySummary(user *entity.User, classID *int) ([]PendingCategoryStat, error) {
	actor, err := s.ResolveActor(user)
	if err != nil {
		return nil, err
	}
	filter, err := s.pendingFilter(actor, PendingQuery{ClassID: classID})
	if err != nil {
		return nil, err
	}

	rows, err := s.Apps.FindAllPending(filter)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	stats := []PendingCategoryStat{}
	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(stats)
			index[row.Category] = i
			stats = append(stats, PendingCategoryStat{Category: row.Category})
		}
		stats[i].PendingCount++
	}
	return stats, nil
}

func (s *ReviewService) PendingByCategory(user *entity.User, q PendingQuery) (*PendingPage, error) {
	if q.Category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	return s.PendingList(user, q)
}

func (s *ReviewService) PendingCount(user *entity.User) (int64, error) {
	actor, err := s.ResolveActor(user)
	if err != nil {
		return 0, err
	}
	filter, err := s.pendingFilter(actor, PendingQuery{})
	if err != nil {
		return 0, err
	}
	return s.Apps.CountPending(filter)
}

// ReviewDetail is the reviewer-facing view of one claim.
type ReviewDetail struct {
	ID          uint                     `json:"id"`
	StudentID   uint                     `json:"studentId"`
	StudentName string                   `json:"studentName"`
	Account     string                   `json:"account"`
	ClassID     *int                     `json:"classId"`
	Category    string                   `json:"category"`
	SubType     string                   `json:"subType"`
	AwardUID    int                      `json:"awardUid"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	OccurredAt  time.Time                `json:"occurredAt"`
	Attachments []entity.Attachment      `json:"attachments"`
	Status      entity.ApplicationStatus `json:"status"`
	Score       *float64                 `json:"score"`
	Comment     string                   `json:"comment,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func (s *ReviewService) Detail(user *entity.User, applicationID uint) (*ReviewDetail, error) {
	actor, err := s.ResolveActor(user)
	if err != nil {
		return nil, err
	}

	row, err := s.Apps.FindActiveWithApplicant(s.DB, applicationID)
	if err != nil {
		return nil, orNotFound(err)
	}
	if !actor.InScope(row.Applicant.ClassID) {
		return nil, fmt.Errorf("%w: applicant outside review scope", ErrForbidden)
	}
	if !actor.CanReview(row.Status) {
		return nil, fmt.Errorf("%w: status %s is outside this actor's queue", ErrForbidden, row.Status)
	}

	return &ReviewDetail{
		ID:          row.ID,
		StudentID:   row.Applicant.ID,
		StudentName: row.Applicant.Name,
		Account:     row.Applicant.Account,
		ClassID:     row.Applicant.ClassID,
		Category:    row.Category,
		SubType:     row.SubType,
		AwardUID:    row.AwardUID,
		Title:       row.Title,
		Description: row.Description,
		OccurredAt:  row.OccurredAt,
		Attachments: row.Attachments(),
		Status:      row.Status,
		Score:       row.Score,
		Comment:     row.Comment,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// HistoryItem is one row of a reviewer's own decision history.
type HistoryItem struct {
	ApplicationID uint      `json:"applicationId"`
	StudentName   string    `json:"studentName"`
	ClassID       *int      `json:"classId"`
	Title         string    `json:"title"`
	Result        string    `json:"result"`
	Comment       string    `json:"comment,omitempty"`
	ReasonCode    string    `json:"reasonCode,omitempty"`
	ReasonText    string    `json:"reasonText,omitempty"`
	ReviewedAt    time.Time `json:"reviewedAt"`
}

type HistoryPage struct {
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int64         `json:"total"`
	List  []HistoryItem `json:"list"`
}

func (s *ReviewService) History(user *entity.User, result string, from, to *time.Time, page, size int) (*HistoryPage, error) {
	if _, err := s.ResolveActor(user); err != nil {
		return nil, err
	}

	if result != "" {
		result = strings.ToLower(strings.TrimSpace(result))
		if result != entity.DecisionApproved && result != entity.DecisionRejected {
			return nil, fmt.Errorf("%w: result %q", ErrInvalidInput, result)
		}
	}
	page, size = normalizePage(page, size)

	rows, total, err := s.Records.ListByReviewer(user.ID, repository.HistoryFilter{
		Result: result,
		From:   from,
		To:     to,
	}, page, size)
	if err != nil {
		return nil, err
	}

	list := make([]HistoryItem, 0, len(rows))
	for _, rec := range rows {
		list = append(list, HistoryItem{
			ApplicationID: rec.ApplicationID,
			StudentName:   rec.Application.Applicant.Name,
			ClassID:       rec.Application.Applicant.ClassID,
			Title:         rec.Application.Title,
			Result:        rec.Decision,
			Comment:       rec.Comment,
			ReasonCode:    rec.ReasonCode,
			ReasonText:    rec.ReasonText,
			ReviewedAt:    rec.CreatedAt,
		})
	}
	return &HistoryPage{Page: page, Size: size, Total: total, List: list}, nil
}
