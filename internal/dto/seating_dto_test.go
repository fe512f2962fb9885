package dto_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/examguard-api/internal/dto"
)

func TestSeatAssignmentItemDecodesEachStudentID(t *testing.T) {
	payload := `{"assignments": [
		{"student_id": 5, "seat_code": "A1"},
		{"student_id": "7", "seat_code": " b2 "},
		{"student_id": "abc", "seat_code": "A3"},
		{"seat_code": "A4"},
		{"student_id": 9.0, "seat_code": 12},
		{"student_id": 2.5, "seat_code": null}
	]}`

	var req dto.SeatAssignmentRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	require.Equal(t, []dto.SeatAssignmentItem{
		{StudentID: 5, SeatCode: "A1"},
		{StudentID: 7, SeatCode: "b2"},
		{InvalidStudentID: "abc", SeatCode: "A3"},
		{SeatCode: "A4"},
		{StudentID: 9, SeatCode: "12"},
		{InvalidStudentID: "2.5"},
	}, req.Assignments)
}

func TestSeatAssignmentItemRejectsNonObjects(t *testing.T) {
	var req dto.SeatAssignmentRequest
	require.Error(t, json.Unmarshal([]byte(`{"assignments": [5]}`), &req))
}
