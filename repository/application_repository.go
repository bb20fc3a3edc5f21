package repository

import (
	"github.com/DarkStars1922/zcpt/entity"

	"gorm.io/gorm"
)

type ApplicationRepository struct {
	DB *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{DB: db}
}

func (r *ApplicationRepository) Create(tx *gorm.DB, app *entity.Application) error {
	return tx.Create(app).Error
}

// FindActive loads a non-deleted application by id.
func (r *ApplicationRepository) FindActive(db *gorm.DB, id uint) (*entity.Application, error) {
	var app entity.Application
	if err := db.Where("is_deleted = ?", false).First(&app, id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// FindActiveWithApplicant loads a non-deleted application together with
// its applicant, which scope checks need.
func (r *ApplicationRepository) FindActiveWithApplicant(db *gorm.DB, id uint) (*entity.Application, error) {
	var app entity.Application
	if err := db.Preload("Applicant").
		Where("is_deleted = ?", false).First(&app, id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateGuarded applies updates only while the row still carries the
// expected version and is not deleted. The caller reads RowsAffected:
// zero means a concurrent mutation won.
func (r *ApplicationRepository) UpdateGuarded(tx *gorm.DB, id uint, expectedVersion int, updates map[string]any) (int64, error) {
	res := tx.Model(&entity.Application{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, expectedVersion, false).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// MyListFilter narrows an applicant's own listing.
type MyListFilter struct {
	Status   entity.ApplicationStatus
	Category string
	SubType  string
	Keyword  string
}

func (r *ApplicationRepository) ListMine(userID uint, f MyListFilter, page, size int) ([]entity.Application, int64, error) {
	q := r.DB.Model(&entity.Application{}).
		Where("applicant_id = ? AND is_deleted = ?", userID, false)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.SubType != "" {
		q = q.Where("sub_type = ?", f.SubType)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entity.Application
	err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error
	return rows, total, err
}

// FindAllMine loads every non-deleted application of one applicant,
// for in-memory category aggregation.
func (r *ApplicationRepository) FindAllMine(userID uint) ([]entity.Application, error) {
	var rows []entity.Application
	err := r.DB.Where("applicant_id = ? AND is_deleted = ?", userID, false).
		Find(&rows).Error
	return rows, err
}

// PendingFilter narrows the review queue. ScopeClassIDs nil means the
// actor is unscoped; ClassID, when set, has already been checked
// against the scope by the service.
type PendingFilter struct {
	ScopeClassIDs []int
	ClassID       *int
	Statuses      []entity.ApplicationStatus
	Category      string
	SubType       string
	Keyword       string
}

func (r *ApplicationRepository) pendingQuery(f PendingFilter) *gorm.DB {
	q := r.DB.Model(&entity.Application{}).
		Joins("JOIN users ON users.id = applications.applicant_id").
		Where("applications.is_deleted = ?", false).
		Where("users.class_id IS NOT NULL").
		Where("applications.status IN ?", f.Statuses)
	if f.ClassID != nil {
		q = q.Where("users.class_id = ?", *f.ClassID)
	} else if f.ScopeClassIDs != nil {
		q = q.Where("users.class_id IN ?", f.ScopeClassIDs)
	}
	if f.Category != "" {
		q = q.Where("applications.category = ?", f.Category)
	}
	if f.SubType != "" {
		q = q.Where("applications.sub_type = ?", f.SubType)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		q = q.Where("applications.title LIKE ? OR users.name LIKE ? OR users.account LIKE ?",
			like, like, like)
	}
	return q
}

func (r *ApplicationRepository) ListPending(f PendingFilter, page, size int) ([]entity.Application, int64, error) {
	q := r.pendingQuery(f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entity.Application
	err := q.Preload("Applicant").
		Order("applications.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error
	return rows, total, err
}

// FindAllPending loads the whole scoped queue for summary aggregation.
func (r *ApplicationRepository) FindAllPending(f PendingFilter) ([]entity.Application, error) {
	var rows []entity.Application
	err := r.pendingQuery(f).Preload("Applicant").
		Order("applications.created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *ApplicationRepository) CountPending(f PendingFilter) (int64, error) {
	var total int64
	err := r.pendingQuery(f).Count(&total).Error
	return total, err
}
