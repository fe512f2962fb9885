package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
)

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	ExamID *uint
}

// ViolationRepository persists proctor incident reports.
type ViolationRepository interface {
	Create(ctx context.Context, violation *models.Violation) error
	GetByID(ctx context.Context, id uint) (models.Violation, error)
	Update(ctx context.Context, violation *models.Violation) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ViolationFilter) ([]models.Violation, error)
}

type violationRepository struct {
	db *gorm.DB
}

// NewViolationRepository constructs a violation repository.
func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Create(ctx context.Context, violation *models.Violation) error {
	return r.db.WithContext(ctx).Create(violation).Error
}

func (r *violationRepository) GetByID(ctx context.Context, id uint) (models.Violation, error) {
	var violation models.Violation
	err := r.db.WithContext(ctx).First(&violation, id).Error
	return violation, err
}

func (r *violationRepository) Update(ctx context.Context, violation *models.Violation) error {
	return r.db.WithContext(ctx).Save(violation).Error
}

func (r *violationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Violation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *violationRepository) List(ctx context.Context, filter ViolationFilter) ([]models.Violation, error) {
	query := r.db.WithContext(ctx).Model(&models.Violation{})
	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}

	var violations []models.Violation
	err := query.Order("created_at DESC").Order("id DESC").Find(&violations).Error
	return violations, err
}
