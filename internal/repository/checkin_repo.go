package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
)

// CheckinRepository persists exam check-ins.
type CheckinRepository interface {
	Exists(ctx context.Context, examID, studentID uint) (bool, error)
	Create(ctx context.Context, checkin *models.Checkin) error
	GetByID(ctx context.Context, id uint) (models.Checkin, error)
	ListByExam(ctx context.Context, examID uint) ([]models.Checkin, error)
	DetachPlan(ctx context.Context, planID uint) error
}

type checkinRepository struct {
	db *gorm.DB
}

// NewCheckinRepository constructs a check-in repository.
func NewCheckinRepository(db *gorm.DB) CheckinRepository {
	return &checkinRepository{db: db}
}

func (r *checkinRepository) Exists(ctx context.Context, examID, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Checkin{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *checkinRepository) Create(ctx context.Context, checkin *models.Checkin) error {
	return r.db.WithContext(ctx).Create(checkin).Error
}

func (r *checkinRepository) GetByID(ctx context.Context, id uint) (models.Checkin, error) {
	var checkin models.Checkin
	err := r.db.WithContext(ctx).First(&checkin, id).Error
	return checkin, err
}

func (r *checkinRepository) ListByExam(ctx context.Context, examID uint) ([]models.Checkin, error) {
	var checkins []models.Checkin
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("checked_in_at DESC").
		Order("id DESC").
		Find(&checkins).Error
	return checkins, err
}

// DetachPlan clears plan and assignment references so check-in history
// survives plan deletion.
func (r *checkinRepository) DetachPlan(ctx context.Context, planID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Checkin{}).
		Where("seating_plan_id = ?", planID).
		Updates(map[string]interface{}{
			"seating_plan_id":    nil,
			"seat_assignment_id": nil,
		}).Error
}
