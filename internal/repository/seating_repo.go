package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
)

// SeatingRepository manages seating plans, seats and seat assignments.
type SeatingRepository interface {
	GetPlanByExam(ctx context.Context, examID uint) (models.SeatingPlan, error)
	CreatePlan(ctx context.Context, plan *models.SeatingPlan, seats []models.Seat) error
	DeletePlan(ctx context.Context, planID uint) error
	ListSeats(ctx context.Context, planID uint) ([]models.Seat, error)
	ListAssignments(ctx context.Context, examID uint) ([]models.SeatAssignment, error)
	FindAssignment(ctx context.Context, examID, studentID uint) (models.SeatAssignment, error)
	AssignmentsBySeatCodes(ctx context.Context, examID uint, codes []string) ([]models.SeatAssignment, error)
	AssignmentsByStudents(ctx context.Context, examID uint, studentIDs []uint) ([]models.SeatAssignment, error)
	SaveAssignment(ctx context.Context, assignment *models.SeatAssignment) error
}

type seatingRepository struct {
	db *gorm.DB
}

// NewSeatingRepository constructs a seating repository.
func NewSeatingRepository(db *gorm.DB) SeatingRepository {
	return &seatingRepository{db: db}
}

func (r *seatingRepository) GetPlanByExam(ctx context.Context, examID uint) (models.SeatingPlan, error) {
	var plan models.SeatingPlan
	err := r.db.WithContext(ctx).Where("exam_id = ?", examID).First(&plan).Error
	return plan, err
}

// CreatePlan inserts the plan and then its seats. Callers that need both to
// land together run it inside Store.Transaction.
func (r *seatingRepository) CreatePlan(ctx context.Context, plan *models.SeatingPlan, seats []models.Seat) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(plan).Error; err != nil {
		return err
	}
	if len(seats) == 0 {
		return nil
	}

	for i := range seats {
		seats[i].SeatingPlanID = plan.ID
	}
	return db.CreateInBatches(&seats, 200).Error
}

func (r *seatingRepository) DeletePlan(ctx context.Context, planID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("seating_plan_id = ?", planID).Delete(&models.SeatAssignment{}).Error; err != nil {
		return err
	}
	if err := db.Where("seating_plan_id = ?", planID).Delete(&models.Seat{}).Error; err != nil {
		return err
	}

	result := db.Delete(&models.SeatingPlan{}, planID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *seatingRepository) ListSeats(ctx context.Context, planID uint) ([]models.Seat, error) {
	var seats []models.Seat
	err := r.db.WithContext(ctx).
		Where("seating_plan_id = ?", planID).
		Order("row_number ASC").
		Order("col_number ASC").
		Order("seat_code ASC").
		Find(&seats).Error
	return seats, err
}

func (r *seatingRepository) ListAssignments(ctx context.Context, examID uint) ([]models.SeatAssignment, error) {
	var assignments []models.SeatAssignment
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("seat_code ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *seatingRepository) FindAssignment(ctx context.Context, examID, studentID uint) (models.SeatAssignment, error) {
	var assignment models.SeatAssignment
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&assignment).Error
	return assignment, err
}

func (r *seatingRepository) AssignmentsBySeatCodes(ctx context.Context, examID uint, codes []string) ([]models.SeatAssignment, error) {
	if len(codes) == 0 {
		return []models.SeatAssignment{}, nil
	}

	var assignments []models.SeatAssignment
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND seat_code IN ?", examID, codes).
		Find(&assignments).Error
	return assignments, err
}

func (r *seatingRepository) AssignmentsByStudents(ctx context.Context, examID uint, studentIDs []uint) ([]models.SeatAssignment, error) {
	if len(studentIDs) == 0 {
		return []models.SeatAssignment{}, nil
	}

	var assignments []models.SeatAssignment
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND student_id IN ?", examID, studentIDs).
		Find(&assignments).Error
	return assignments, err
}

// SaveAssignment inserts new assignments and updates existing ones in place.
func (r *seatingRepository) SaveAssignment(ctx context.Context, assignment *models.SeatAssignment) error {
	db := r.db.WithContext(ctx)
	if assignment.ID == 0 {
		return db.Create(assignment).Error
	}
	return db.Save(assignment).Error
}
