package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
)

// StudentRepository reads students and exam rosters.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Student, error)
	RosteredIDs(ctx context.Context, examID uint, studentIDs []uint) ([]uint, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).First(&student, id).Error
	return student, err
}

func (r *studentRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}

	var students []models.Student
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error
	return students, err
}

// RosteredIDs returns the subset of studentIDs enrolled in the exam.
func (r *studentRepository) RosteredIDs(ctx context.Context, examID uint, studentIDs []uint) ([]uint, error) {
	if len(studentIDs) == 0 {
		return []uint{}, nil
	}

	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.ExamStudent{}).
		Where("exam_id = ? AND student_id IN ?", examID, studentIDs).
		Pluck("student_id", &ids).Error
	return ids, err
}
