package grading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadGrade = errors.New("grading: invalid grade")

// ParseGrade reads a grade typed into a grading form.
// "" and "-" mean "no grade" and return nil. Decimal commas are accepted.
//
//	ParseGrade("7,5", 10) -> 7.5
//	ParseGrade("12", 10)  -> error (out of range)
func ParseGrade(s string, max float64) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil, nil
	}
	v, ok := parseFloatLoose(strings.Replace(s, ",", ".", 1))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadGrade, s)
	}
	if v < 0 || (max > 0 && v > max) {
		return nil, fmt.Errorf("%w: %v is outside 0..%v", ErrBadGrade, v, max)
	}
	return &v, nil
}

// FormatGrade renders a grade the way exports and tables show it, e.g.
// "7.50 / 10". Without a maximum only the grade is shown.
func FormatGrade(g *float64, max float64) string {
	if g == nil {
		return "-"
	}
	if max > 0 {
		return strconv.FormatFloat(*g, 'f', 2, 64) + " / " + strconv.FormatFloat(max, 'f', -1, 64)
	}
	return strconv.FormatFloat(*g, 'f', 2, 64)
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
