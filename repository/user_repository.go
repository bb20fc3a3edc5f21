package repository

import (
	"github.com/DarkStars1922/zcpt/entity"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByID(id uint) (*entity.User, error) {
	var u entity.User
	if err := r.DB.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByAccount(account string) (*entity.User, error) {
	var u entity.User
	if err := r.DB.Where("account = ?", account).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) CountByAccount(account string) (int64, error) {
	var count int64
	err := r.DB.Model(&entity.User{}).Where("account = ?", account).Count(&count).Error
	return count, err
}

func (r *UserRepository) Create(u *entity.User) error {
	return r.DB.Create(u).Error
}

// SetReviewerBinding points the user at the token and raises the
// reviewer flag.
func (r *UserRepository) SetReviewerBinding(tx *gorm.DB, userID, tokenID uint) error {
	return tx.Model(&entity.User{}).Where("id = ?", userID).
		Updates(map[string]any{"is_reviewer": true, "reviewer_token_id": tokenID}).Error
}

// ClearReviewerBinding drops the user's reviewer pair, but only while it
// still points at the given token. Guarded so a concurrent re-activation
// against a different token is not clobbered.
func (r *UserRepository) ClearReviewerBinding(tx *gorm.DB, userID, tokenID uint) error {
	return tx.Model(&entity.User{}).
		Where("id = ? AND reviewer_token_id = ?", userID, tokenID).
		Updates(map[string]any{"is_reviewer": false, "reviewer_token_id": nil}).Error
}

// ClearReviewerFlags drops the pair unconditionally. Used when the
// user's own binding turned out stale.
func (r *UserRepository) ClearReviewerFlags(tx *gorm.DB, userID uint) error {
	return tx.Model(&entity.User{}).Where("id = ?", userID).
		Updates(map[string]any{"is_reviewer": false, "reviewer_token_id": nil}).Error
}
