package models

// All lists every persisted entity in migration order.
func All() []interface{} {
	return []interface{}{
		&Room{},
		&Exam{},
		&Student{},
		&ExamStudent{},
		&SeatingPlan{},
		&Seat{},
		&SeatAssignment{},
		&Checkin{},
		&Violation{},
	}
}
