package service

import (
	"strconv"
	"strings"
)

// RowLabel converts a zero-based row index into spreadsheet style letters:
// 0 is "A", 25 is "Z", 26 is "AA", 701 is "ZZ".
func RowLabel(index int) string {
	if index < 0 {
		return ""
	}

	var letters []byte
	n := index + 1
	for n > 0 {
		n--
		letters = append(letters, byte('A'+n%26))
		n /= 26
	}

	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters)
}

// GridSeatCode builds the code for a zero-based row and column.
func GridSeatCode(row, col int) string {
	return RowLabel(row) + strconv.Itoa(col+1)
}

// NormalizeSeatCode trims and uppercases a seat code.
func NormalizeSeatCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SeatCodesMatch compares two codes ignoring case and surrounding blanks.
// Empty codes never match.
func SeatCodesMatch(assigned, entered string) bool {
	a := NormalizeSeatCode(assigned)
	if a == "" {
		return false
	}
	return a == NormalizeSeatCode(entered)
}
