package repository

import (
	"errors"
	"time"

	"github.com/DarkStars1922/zcpt/entity"

	"gorm.io/gorm"
)

type ReviewerTokenRepository struct {
	DB *gorm.DB
}

func NewReviewerTokenRepository(db *gorm.DB) *ReviewerTokenRepository {
	return &ReviewerTokenRepository{DB: db}
}

func (r *ReviewerTokenRepository) Create(tx *gorm.DB, t *entity.ReviewerToken) error {
	return tx.Create(t).Error
}

func (r *ReviewerTokenRepository) FindByID(db *gorm.DB, id uint) (*entity.ReviewerToken, error) {
	var t entity.ReviewerToken
	if err := db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ReviewerTokenRepository) FindByToken(db *gorm.DB, token string) (*entity.ReviewerToken, error) {
	var t entity.ReviewerToken
	if err := db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ReviewerTokenRepository) TokenExists(token string) (bool, error) {
	var count int64
	err := r.DB.Model(&entity.ReviewerToken{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

// FindBoundToUser returns the token currently bound to the user, if
// any, excluding the given token id.
func (r *ReviewerTokenRepository) FindBoundToUser(db *gorm.DB, userID uint, excludeID uint) (*entity.ReviewerToken, error) {
	var t entity.ReviewerToken
	err := db.Where("activated_user_id = ? AND id <> ?", userID, excludeID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// FindExpiredBound lists non-revoked tokens past expiry that still show
// a bound user, i.e. bindings the lazy sweep must release.
func (r *ReviewerTokenRepository) FindExpiredBound(db *gorm.DB, now time.Time) ([]entity.ReviewerToken, error) {
	var rows []entity.ReviewerToken
	err := db.Where("activated_user_id IS NOT NULL AND is_revoked = ? AND expired_at < ?", false, now).
		Find(&rows).Error
	return rows, err
}

// ClearBinding drops the token's activation fields.
func (r *ReviewerTokenRepository) ClearBinding(tx *gorm.DB, tokenID uint) error {
	return tx.Model(&entity.ReviewerToken{}).Where("id = ?", tokenID).
		Updates(map[string]any{"activated_user_id": nil, "activated_at": nil}).Error
}

// Bind records the activation on the token side.
func (r *ReviewerTokenRepository) Bind(tx *gorm.DB, tokenID, userID uint, at time.Time) error {
	return tx.Model(&entity.ReviewerToken{}).Where("id = ?", tokenID).
		Updates(map[string]any{"activated_user_id": userID, "activated_at": at}).Error
}

func (r *ReviewerTokenRepository) MarkRevoked(tx *gorm.DB, tokenID uint) error {
	return tx.Model(&entity.ReviewerToken{}).Where("id = ?", tokenID).
		Updates(map[string]any{"is_revoked": true, "activated_user_id": nil, "activated_at": nil}).Error
}

// List pages tokens of one type, optionally narrowed to one effective
// status. The status is computed, never stored, so the filter is a
// condition over (is_revoked, expired_at, now).
func (r *ReviewerTokenRepository) List(tokenType string, status entity.TokenStatus, now time.Time, page, size int) ([]entity.ReviewerToken, int64, error) {
	q := r.DB.Model(&entity.ReviewerToken{}).Where("token_type = ?", tokenType)
	switch status {
	case entity.TokenActive:
		q = q.Where("is_revoked = ? AND expired_at >= ?", false, now)
	case entity.TokenExpired:
		q = q.Where("is_revoked = ? AND expired_at < ?", false, now)
	case entity.TokenRevoked:
		q = q.Where("is_revoked = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entity.ReviewerToken
	err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error
	return rows, total, err
}
