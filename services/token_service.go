package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/repository"

	"gorm.io/gorm"
)

// TokenService runs the reviewer-token lifecycle: issue, activate,
// revoke, list. It is the only writer of the User reviewer pair, which
// it keeps transactionally consistent with token state.
type TokenService struct {
	DB     *gorm.DB
	Tokens *repository.ReviewerTokenRepository
	Users  *repository.UserRepository
	Now    func() time.Time
	// Generate produces candidate token strings; retried on collision
	Generate func() string
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{
		DB:       db,
		Tokens:   repository.NewReviewerTokenRepository(db),
		Users:    repository.NewUserRepository(db),
		Now:      time.Now,
		Generate: GenerateReviewerToken,
	}
}

// GenerateReviewerToken returns an opaque credential string.
func GenerateReviewerToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "rvw_" + hex.EncodeToString(buf)
}

func ensureManager(user *entity.User) error {
	if !user.IsManager() {
		return fmt.Errorf("%w: teacher or admin role required", ErrForbidden)
	}
	return nil
}

// Issue creates an unbound token scoped to the given classes.
func (s *TokenService) Issue(user *entity.User, classIDs []int, expiredAt time.Time) (*entity.ReviewerToken, error) {
	if err := ensureManager(user); err != nil {
		return nil, err
	}
	if !expiredAt.After(s.Now()) {
		return nil, fmt.Errorf("%w: expiredAt must be in the future", ErrInvalidInput)
	}
	if len(classIDs) == 0 {
		return nil, fmt.Errorf("%w: classIds must not be empty", ErrInvalidInput)
	}

	var value string
	for i := 0; i < 10; i++ {
		candidate := s.Generate()
		exists, err := s.Tokens.TokenExists(candidate)
		if err != nil {
			return nil, err
		}
		if !exists {
			value = candidate
			break
		}
	}
	if value == "" {
		return nil, fmt.Errorf("could not allocate a unique token")
	}

	row := &entity.ReviewerToken{
		Token:         value,
		TokenType:     entity.TokenTypeReviewer,
		CreatorUserID: user.ID,
		ExpiredAt:     expiredAt,
	}
	if err := row.SetClassIDs(classIDs); err != nil {
		return nil, err
	}
	if err := s.Tokens.Create(s.DB, row); err != nil {
		return nil, err
	}
	return row, nil
}

// Activate binds an active token to the calling student. A prior
// binding the student held is released in the same transaction; a
// token already bound to someone else is a conflict.
func (s *TokenService) Activate(user *entity.User, tokenValue string) (*entity.ReviewerToken, error) {
	if err := ensureStudent(user); err != nil {
		return nil, err
	}

	row, err := s.Tokens.FindByToken(s.DB, tokenValue)
	if err != nil {
		return nil, orNotFound(err)
	}

	now := s.Now()
	if st := row.Status(now); st != entity.TokenActive {
		return nil, fmt.Errorf("%w: token is %s", ErrInvalidState, st)
	}
	if row.ActivatedUserID != nil && *row.ActivatedUserID != user.ID {
		return nil, fmt.Errorf("%w: token already bound to another user", ErrConflict)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		prior, err := s.Tokens.FindBoundToUser(tx, user.ID, row.ID)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := s.Tokens.ClearBinding(tx, prior.ID); err != nil {
				return err
			}
		}
		if err := s.Tokens.Bind(tx, row.ID, user.ID, now); err != nil {
			return err
		}
		return s.Users.SetReviewerBinding(tx, user.ID, row.ID)
	})
	if err != nil {
		return nil, err
	}

	user.IsReviewer = true
	tokenID := row.ID
	user.ReviewerTokenID = &tokenID

	return s.Tokens.FindByID(s.DB, row.ID)
}

// Revoke marks the token revoked and releases the bound user, if any.
// Revoking an already-revoked token is a no-op.
func (s *TokenService) Revoke(user *entity.User, tokenID uint) (*entity.ReviewerToken, error) {
	if err := ensureManager(user); err != nil {
		return nil, err
	}

	row, err := s.Tokens.FindByID(s.DB, tokenID)
	if err != nil {
		return nil, orNotFound(err)
	}
	if row.IsRevoked {
		return row, nil
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if row.ActivatedUserID != nil {
			if err := s.Users.ClearReviewerBinding(tx, *row.ActivatedUserID, row.ID); err != nil {
				return err
			}
		}
		return s.Tokens.MarkRevoked(tx, row.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Tokens.FindByID(s.DB, tokenID)
}

// sweepExpiredBindings releases bindings on non-revoked tokens whose
// expiry has passed while they still show a bound user. Both sides of
// each binding clear in one transaction.
func (s *TokenService) sweepExpiredBindings() error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		rows, err := s.Tokens.FindExpiredBound(tx, s.Now())
		if err != nil {
			return err
		}
		for i := range rows {
			row := &rows[i]
			if row.ActivatedUserID != nil {
				if err := s.Users.ClearReviewerBinding(tx, *row.ActivatedUserID, row.ID); err != nil {
					return err
				}
			}
			if err := s.Tokens.ClearBinding(tx, row.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// TokenView is the manager-facing serialization: status is computed at
// read time, never stored.
type TokenView struct {
	ID              uint               `json:"id"`
	Token           string             `json:"token"`
	Type            string             `json:"type"`
	ClassIDs        []int              `json:"classIds"`
	Status          entity.TokenStatus `json:"status"`
	ExpiredAt       time.Time          `json:"expiredAt"`
	CreatedAt       time.Time          `json:"createdAt"`
	ActivatedAt     *time.Time         `json:"activatedAt,omitempty"`
	ActivatedUserID *uint              `json:"activatedUserId,omitempty"`
}

type TokenPage struct {
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int64       `json:"total"`
	List  []TokenView `json:"list"`
}

// List pages tokens after lazily purging stale bindings.
func (s *TokenService) List(user *entity.User, tokenType string, status string, page, size int) (*TokenPage, error) {
	if err := ensureManager(user); err != nil {
		return nil, err
	}
	if err := s.sweepExpiredBindings(); err != nil {
		return nil, err
	}

	if tokenType == "" {
		tokenType = entity.TokenTypeReviewer
	}
	if tokenType != entity.TokenTypeReviewer {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrInvalidInput, tokenType)
	}

	var statusFilter entity.TokenStatus
	switch entity.TokenStatus(status) {
	case "", entity.TokenActive, entity.TokenExpired, entity.TokenRevoked:
		statusFilter = entity.TokenStatus(status)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	page, size = normalizePage(page, size)

	now := s.Now()
	rows, total, err := s.Tokens.List(tokenType, statusFilter, now, page, size)
	if err != nil {
		return nil, err
	}

	list := make([]TokenView, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		list = append(list, TokenView{
			ID:              row.ID,
			Token:           row.Token,
			Type:            row.TokenType,
			ClassIDs:        row.ClassIDs(),
			Status:          row.Status(now),
			ExpiredAt:       row.ExpiredAt,
			CreatedAt:       row.CreatedAt,
			ActivatedAt:     row.ActivatedAt,
			ActivatedUserID: row.ActivatedUserID,
		})
	}
	return &TokenPage{Page: page, Size: size, Total: total, List: list}, nil
}
