package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
)

// ExamRepository reads exams and the rooms they are held in.
type ExamRepository interface {
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	GetRoom(ctx context.Context, id uint) (models.Room, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	err := r.db.WithContext(ctx).First(&exam, id).Error
	return exam, err
}

func (r *examRepository) GetRoom(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	return room, err
}
