package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories used by the seating and check-in services and
// lets callers run several of them inside a single transaction.
type Store interface {
	Exams() ExamRepository
	Students() StudentRepository
	Seating() SeatingRepository
	Checkins() CheckinRepository
	Violations() ViolationRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore constructs a GORM backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Exams() ExamRepository {
	return NewExamRepository(s.db)
}

func (s *gormStore) Students() StudentRepository {
	return NewStudentRepository(s.db)
}

func (s *gormStore) Seating() SeatingRepository {
	return NewSeatingRepository(s.db)
}

func (s *gormStore) Checkins() CheckinRepository {
	return NewCheckinRepository(s.db)
}

func (s *gormStore) Violations() ViolationRepository {
	return NewViolationRepository(s.db)
}

// Transaction commits when fn returns nil and rolls back otherwise.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
