package http

import (
	"encoding/json"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/grading"
)

// formGrade is a grade as typed into a grading form: a JSON number or a
// string that may use a decimal comma. "" and "-" clear the grade.
type formGrade struct {
	num *float64
	raw string
}

func (g *formGrade) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &g.raw)
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	g.num = &v
	return nil
}

func (g formGrade) value(max int) (*float64, error) {
	if g.num != nil {
		return g.num, nil
	}
	return grading.ParseGrade(g.raw, float64(max))
}

// gradeForm decodes a GradeInput whose grades arrive as formGrade values.
type gradeForm struct {
	checkmark.GradeInput
	Grade             formGrade `json:"grade"`
	PresentationGrade formGrade `json:"presentationgrade"`
}

// input resolves the typed grades against c. Field errors use prefix.
func (f gradeForm) input(c checkmark.Checkmark, prefix string, verr *checkmark.ValidationError) checkmark.GradeInput {
	in := f.GradeInput
	var err error
	if in.Grade, err = f.Grade.value(c.Grade); err != nil {
		verr.Add(prefix+"grade", err.Error())
	}
	if in.PresentationGrade, err = f.PresentationGrade.value(c.PresentationGrade); err != nil {
		verr.Add(prefix+"presentationgrade", err.Error())
	}
	return in
}
