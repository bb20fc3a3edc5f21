package repository

import (
	"time"

	"github.com/DarkStars1922/zcpt/entity"

	"gorm.io/gorm"
)

type ReviewRecordRepository struct {
	DB *gorm.DB
}

func NewReviewRecordRepository(db *gorm.DB) *ReviewRecordRepository {
	return &ReviewRecordRepository{DB: db}
}

func (r *ReviewRecordRepository) Create(tx *gorm.DB, rec *entity.ReviewRecord) error {
	return tx.Create(rec).Error
}

// HistoryFilter narrows a reviewer's own decision history.
type HistoryFilter struct {
	Result string
	From   *time.Time
	To     *time.Time
}

func (r *ReviewRecordRepository) ListByReviewer(reviewerID uint, f HistoryFilter, page, size int) ([]entity.ReviewRecord, int64, error) {
	q := r.DB.Model(&entity.ReviewRecord{}).
		Where("reviewer_user_id = ?", reviewerID)
	if f.Result != "" {
		q = q.Where("decision = ?", f.Result)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entity.ReviewRecord
	err := q.Preload("Application").Preload("Application.Applicant").
		Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error
	return rows, total, err
}
