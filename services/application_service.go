package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/repository"

	"gorm.io/gorm"
)

// ApplicationService owns the application lifecycle: create, update,
// withdraw, soft delete and the applicant-facing queries. Review-side
// mutations live in ReviewService.
type ApplicationService struct {
	DB             *gorm.DB
	Repo           *repository.ApplicationRepository
	Scores         ScoreResolver
	AIAuditEnabled bool
	Now            func() time.Time
}

func NewApplicationService(db *gorm.DB, scores ScoreResolver, aiAuditEnabled bool) *ApplicationService {
	return &ApplicationService{
		DB:             db,
		Repo:           repository.NewApplicationRepository(db),
		Scores:         scores,
		AIAuditEnabled: aiAuditEnabled,
		Now:            time.Now,
	}
}

// ApplicationPayload is the applicant-supplied content of a claim.
type ApplicationPayload struct {
	Category    string
	SubType     string
	AwardUID    int
	Title       string
	Description string
	OccurredAt  time.Time
	Attachments []entity.Attachment
	Score       *float64
}

func (p ApplicationPayload) validate() error {
	if p.Category == "" || p.SubType == "" || p.Title == "" || p.Description == "" {
		return fmt.Errorf("%w: category, subType, title and description are required", ErrInvalidInput)
	}
	if p.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurredAt is required", ErrInvalidInput)
	}
	for i, att := range p.Attachments {
		if !att.HasRef() {
			return fmt.Errorf("%w: attachments[%d] needs fileId or fileUrl", ErrInvalidInput, i)
		}
	}
	return nil
}

func ensureStudent(user *entity.User) error {
	if user.Role != entity.RoleStudent {
		return fmt.Errorf("%w: student role required", ErrForbidden)
	}
	return nil
}

func orNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Create files a new claim. The score is resolved through the award
// rule table: a fixed non-zero rule overrides any submitted score, a
// zero rule makes the submitted score mandatory.
func (s *ApplicationService) Create(user *entity.User, p ApplicationPayload) (*entity.Application, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	score, err := s.Scores.Resolve(p.AwardUID, p.Score)
	if err != nil {
		return nil, err
	}

	status := entity.StatusPendingReview
	if s.AIAuditEnabled {
		status = entity.StatusPendingAI
	}

	app := &entity.Application{
		ApplicantID:      user.ID,
		Category:         p.Category,
		SubType:          p.SubType,
		AwardUID:         p.AwardUID,
		Title:            p.Title,
		Description:      p.Description,
		OccurredAt:       p.OccurredAt,
		Status:           status,
		Score:            score,
		ScoreRuleVersion: s.Scores.RuleVersion(),
		Version:          1,
	}
	if err := app.SetAttachments(p.Attachments); err != nil {
		return nil, err
	}

	if err := s.Repo.Create(s.DB, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Update rewrites an editable claim under optimistic concurrency: the
// caller hands in the version it last read, a mismatch means re-read.
func (s *ApplicationService) Update(user *entity.User, id uint, p ApplicationPayload, expectedVersion int) (*entity.Application, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var updated *entity.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		row, err := s.Repo.FindActive(tx, id)
		if err != nil {
			return orNotFound(err)
		}
		if row.ApplicantID != user.ID {
			return fmt.Errorf("%w: not the applicant", ErrForbidden)
		}
		if !row.Status.Editable() {
			return fmt.Errorf("%w: status %s is not editable", ErrInvalidState, row.Status)
		}
		if expectedVersion != row.Version {
			return fmt.Errorf("%w: expected version %d, current is %d", ErrVersionConflict, expectedVersion, row.Version)
		}

		score, err := s.Scores.Resolve(p.AwardUID, p.Score)
		if err != nil {
			return err
		}
		stub := entity.Application{}
		if err := stub.SetAttachments(p.Attachments); err != nil {
			return err
		}

		affected, err := s.Repo.UpdateGuarded(tx, id, row.Version, map[string]any{
			"category":           p.Category,
			"sub_type":           p.SubType,
			"award_uid":          p.AwardUID,
			"title":              p.Title,
			"description":        p.Description,
			"occurred_at":        p.OccurredAt,
			"attachments_json":   stub.AttachmentsJSON,
			"score":              score,
			"score_rule_version": s.Scores.RuleVersion(),
			"version":            row.Version + 1,
			"updated_at":         s.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: concurrent update", ErrVersionConflict)
		}

		updated, err = s.Repo.FindActive(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Withdraw moves an editable claim to withdrawn.
func (s *ApplicationService) Withdraw(user *entity.User, id uint) (*entity.Application, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}

	var updated *entity.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		row, err := s.Repo.FindActive(tx, id)
		if err != nil {
			return orNotFound(err)
		}
		if row.ApplicantID != user.ID {
			return fmt.Errorf("%w: not the applicant", ErrForbidden)
		}
		if !row.Status.Editable() {
			return fmt.Errorf("%w: status %s cannot be withdrawn", ErrInvalidState, row.Status)
		}

		affected, err := s.Repo.UpdateGuarded(tx, id, row.Version, map[string]any{
			"status":     entity.StatusWithdrawn,
			"version":    row.Version + 1,
			"updated_at": s.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: concurrent update", ErrVersionConflict)
		}

		updated, err = s.Repo.FindActive(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete hides the claim from all queries but keeps the row (and
// its review records) for audit. Allowed for the owning student or an
// admin.
func (s *ApplicationService) SoftDelete(actor *entity.User, id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		row, err := s.Repo.FindActive(tx, id)
		if err != nil {
			return orNotFound(err)
		}

		switch actor.Role {
		case entity.RoleStudent:
			if row.ApplicantID != actor.ID {
				return fmt.Errorf("%w: not the applicant", ErrForbidden)
			}
		case entity.RoleAdmin:
		default:
			return fmt.Errorf("%w: role %s may not delete", ErrForbidden, actor.Role)
		}

		affected, err := s.Repo.UpdateGuarded(tx, id, row.Version, map[string]any{
			"is_deleted": true,
			"deleted_at": s.Now(),
			"version":    row.Version + 1,
			"updated_at": s.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: concurrent update", ErrVersionConflict)
		}
		return nil
	})
}

// CompleteAIScreening records the outcome of the external AI step,
// moving pending_ai to pending_review or ai_abnormal.
func (s *ApplicationService) CompleteAIScreening(id uint, abnormal bool) (*entity.Application, error) {
	var updated *entity.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		row, err := s.Repo.FindActive(tx, id)
		if err != nil {
			return orNotFound(err)
		}
		if row.Status != entity.StatusPendingAI {
			return fmt.Errorf("%w: status %s is not awaiting AI screening", ErrInvalidState, row.Status)
		}

		target := entity.StatusPendingReview
		if abnormal {
			target = entity.StatusAIAbnormal
		}
		affected, err := s.Repo.UpdateGuarded(tx, id, row.Version, map[string]any{
			"status":     target,
			"version":    row.Version + 1,
			"updated_at": s.Now(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: concurrent update", ErrVersionConflict)
		}

		updated, err = s.Repo.FindActive(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Detail returns one claim: owners see their own, teachers and admins
// see everything.
func (s *ApplicationService) Detail(user *entity.User, id uint) (*entity.Application, error) {
	switch user.Role {
	case entity.RoleStudent, entity.RoleTeacher, entity.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: role %s may not view applications", ErrForbidden, user.Role)
	}

	row, err := s.Repo.FindActive(s.DB, id)
	if err != nil {
		return nil, orNotFound(err)
	}
	if user.Role == entity.RoleStudent && row.ApplicantID != user.ID {
		return nil, fmt.Errorf("%w: not the applicant", ErrForbidden)
	}
	return row, nil
}

// ApplicationSummary is one row of an applicant's own listing.
type ApplicationSummary struct {
	ID        uint                     `json:"id"`
	Category  string                   `json:"category"`
	SubType   string                   `json:"subType"`
	AwardUID  int                      `json:"awardUid"`
	Title     string                   `json:"title"`
	Status    entity.ApplicationStatus `json:"status"`
	Score     *float64                 `json:"score"`
	Version   int                      `json:"version"`
	CreatedAt time.Time                `json:"createdAt"`
}

type ApplicationPage struct {
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
	Total int64                `json:"total"`
	List  []ApplicationSummary `json:"list"`
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	return page, size
}

func (s *ApplicationService) ListMine(user *entity.User, f repository.MyListFilter, page, size int) (*ApplicationPage, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, f.Status)
	}
	page, size = normalizePage(page, size)

	rows, total, err := s.Repo.ListMine(user.ID, f, page, size)
	if err != nil {
		return nil, err
	}

	list := make([]ApplicationSummary, 0, len(rows))
	for _, row := range rows {
		list = append(list, ApplicationSummary{
			ID:        row.ID,
			Category:  row.Category,
			SubType:   row.SubType,
			AwardUID:  row.AwardUID,
			Title:     row.Title,
			Status:    row.Status,
			Score:     row.Score,
			Version:   row.Version,
			CreatedAt: row.CreatedAt,
		})
	}
	return &ApplicationPage{Page: page, Size: size, Total: total, List: list}, nil
}

// CategoryStat aggregates one category of an applicant's claims.
type CategoryStat struct {
	Category      string  `json:"category"`
	Count         int     `json:"count"`
	Approved      int     `json:"approved"`
	Pending       int     `json:"pending"`
	Rejected      int     `json:"rejected"`
	CategoryScore float64 `json:"categoryScore"`
}

type CategorySummary struct {
	Categories []CategoryStat `json:"categories"`
	TotalScore float64        `json:"totalScore"`
}

func (s *ApplicationService) MyCategorySummary(user *entity.User) (*CategorySummary, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}

	rows, err := s.Repo.FindAllMine(user.ID)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	out := &CategorySummary{Categories: []CategoryStat{}}
	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(out.Categories)
			index[row.Category] = i
			out.Categories = append(out.Categories, CategoryStat{Category: row.Category})
		}
		stat := &out.Categories[i]
		stat.Count++
		switch row.Status {
		case entity.StatusApproved:
			stat.Approved++
			if row.Score != nil {
				stat.CategoryScore += *row.Score
				out.TotalScore += *row.Score
			}
		case entity.StatusRejected:
			stat.Rejected++
		case entity.StatusPendingAI, entity.StatusAIAbnormal, entity.StatusPendingReview:
			stat.Pending++
		}
	}
	return out, nil
}

func (s *ApplicationService) MyByCategory(user *entity.User, category string, f repository.MyListFilter, page, size int) (*ApplicationPage, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	f.Category = category
	return s.ListMine(user, f, page, size)
}
