package checkmark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MaxExamples bounds the checklist length.
const MaxExamples = 100

// Settings is the instance settings form.
type Settings struct {
	Name                  string `json:"name" validate:"required,max=255"`
	Intro                 string `json:"intro"`
	AlwaysShowDescription bool   `json:"alwaysshowdescription"`
	Resubmit              bool   `json:"resubmit"`
	TimeAvailable         int64  `json:"timeavailable" validate:"gte=0"`
	TimeDue               int64  `json:"timedue" validate:"gte=0"`
	CutoffDate            int64  `json:"cutoffdate" validate:"gte=0"`
	GradingDue            int64  `json:"gradingdue" validate:"gte=0"`
	EmailTeachers         bool   `json:"emailteachers"`
	Grade                 int    `json:"grade" validate:"gte=0,lte=10000"`

	FlexibleNaming bool   `json:"flexiblenaming"`
	ExamplePrefix  string `json:"exampleprefix" validate:"max=255"`
	ExampleStart   int    `json:"examplestart" validate:"gte=0"`
	ExampleCount   int    `json:"examplecount" validate:"gte=0,lte=100"`
	ExampleNames   string `json:"examplenames"`
	ExampleGrades  string `json:"examplegrades"`

	TrackAttendance       bool `json:"trackattendance"`
	AttendanceGradeLink   bool `json:"attendancegradelink"`
	AttendanceGradebook   bool `json:"attendancegradebook"`
	PresentationGrading   bool `json:"presentationgrading"`
	PresentationGrade     int  `json:"presentationgrade" validate:"gte=0,lte=10000"`
	PresentationGradebook bool `json:"presentationgradebook"`
}

// ExampleSpec is a to-be-stored example in checklist order.
type ExampleSpec struct {
	Name  string `json:"name"`
	Grade int    `json:"grade"`
}

// Validate runs tag rules plus the cross-field rules of the settings form.
func (s Settings) Validate() error {
	verr := &ValidationError{}
	if err := validate.Struct(s); err != nil {
		if fes, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fes {
				verr.Add(strings.ToLower(fe.Field()), fe.Tag())
			}
		} else {
			return err
		}
	}
	checkDateOrder(verr, s.TimeAvailable, s.TimeDue, s.CutoffDate)
	if s.GradingDue != 0 {
		if s.TimeDue != 0 && s.GradingDue < s.TimeDue {
			verr.Add("gradingdue", "grading due date must not be before the due date")
		}
		if s.TimeAvailable != 0 && s.GradingDue < s.TimeAvailable {
			verr.Add("gradingdue", "grading due date must not be before allow submissions from")
		}
	}
	if s.PresentationGrading && s.PresentationGrade <= 0 {
		verr.Add("presentationgrade", "presentation grade must be positive when presentation grading is on")
	}
	if s.PresentationGradebook && !s.PresentationGrading {
		verr.Add("presentationgradebook", "requires presentation grading")
	}
	if (s.AttendanceGradebook || s.AttendanceGradeLink) && !s.TrackAttendance {
		verr.Add("trackattendance", "attendance tracking is required for attendance grade options")
	}
	if _, err := s.Examples(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			for k, v := range ve.Fields {
				verr.Add(k, v)
			}
		} else {
			return err
		}
	}
	return verr.OrNil()
}

// checkDateOrder applies available <= due <= cutoff to the set values.
func checkDateOrder(verr *ValidationError, available, due, cutoff int64) {
	if available != 0 && due != 0 && due < available {
		verr.Add("timedue", "due date must not be before allow submissions from")
	}
	if cutoff != 0 {
		if due != 0 && cutoff < due {
			verr.Add("cutoffdate", "cut-off date must not be before the due date")
		}
		if available != 0 && cutoff < available {
			verr.Add("cutoffdate", "cut-off date must not be before allow submissions from")
		}
	}
}

// Examples expands the naming settings into the checklist.
//
// Standard naming creates ExampleCount items numbered from ExampleStart, each
// worth Grade/ExampleCount points. Flexible naming takes comma separated names
// and grades whose sum has to match Grade.
func (s Settings) Examples() ([]ExampleSpec, error) {
	verr := &ValidationError{}
	if !s.FlexibleNaming {
		if s.ExampleCount < 1 {
			verr.Add("examplecount", "at least one example is required")
			return nil, verr
		}
		if s.ExampleCount > MaxExamples {
			verr.Add("examplecount", fmt.Sprintf("at most %d examples are allowed", MaxExamples))
			return nil, verr
		}
		if s.Grade%s.ExampleCount != 0 {
			verr.Add("grade", fmt.Sprintf("grade %d is not divisible by %d examples", s.Grade, s.ExampleCount))
			return nil, verr
		}
		per := s.Grade / s.ExampleCount
		out := make([]ExampleSpec, s.ExampleCount)
		for i := range out {
			out[i] = ExampleSpec{Name: strconv.Itoa(s.ExampleStart + i), Grade: per}
		}
		return out, nil
	}

	names := splitList(s.ExampleNames)
	grades := splitList(s.ExampleGrades)
	if len(names) == 0 {
		verr.Add("examplenames", "at least one example is required")
		return nil, verr
	}
	if len(names) > MaxExamples {
		verr.Add("examplenames", fmt.Sprintf("at most %d examples are allowed", MaxExamples))
		return nil, verr
	}
	if len(names) != len(grades) {
		verr.Add("examplegrades", fmt.Sprintf("%d names but %d grades", len(names), len(grades)))
		return nil, verr
	}
	out := make([]ExampleSpec, len(names))
	sum := 0
	for i, n := range names {
		if n == "" {
			verr.Add("examplenames", fmt.Sprintf("example %d has no name", i+1))
			continue
		}
		g, err := strconv.Atoi(grades[i])
		if err != nil || g < 0 {
			verr.Add("examplegrades", fmt.Sprintf("%q is not a valid grade", grades[i]))
			continue
		}
		sum += g
		out[i] = ExampleSpec{Name: n, Grade: g}
	}
	if !verr.Empty() {
		return nil, verr
	}
	if s.Grade > 0 && sum != s.Grade {
		verr.Add("examplegrades", fmt.Sprintf("example grades sum to %d but the grade is %d", sum, s.Grade))
		return nil, verr
	}
	return out, nil
}

// Apply copies the settings onto an instance row.
func (s Settings) Apply(c *Checkmark) {
	c.Name = strings.TrimSpace(s.Name)
	c.Intro = s.Intro
	c.AlwaysShowDescription = s.AlwaysShowDescription
	c.Resubmit = s.Resubmit
	c.TimeAvailable = s.TimeAvailable
	c.TimeDue = s.TimeDue
	c.CutoffDate = s.CutoffDate
	c.GradingDue = s.GradingDue
	c.EmailTeachers = s.EmailTeachers
	c.Grade = s.Grade
	c.FlexibleNaming = s.FlexibleNaming
	c.ExamplePrefix = s.ExamplePrefix
	c.ExampleStart = s.ExampleStart
	c.ExampleCount = s.ExampleCount
	c.TrackAttendance = s.TrackAttendance
	c.AttendanceGradeLink = s.TrackAttendance && s.AttendanceGradeLink
	c.AttendanceGradebook = s.TrackAttendance && s.AttendanceGradebook
	c.PresentationGrading = s.PresentationGrading
	c.PresentationGrade = s.PresentationGrade
	c.PresentationGradebook = s.PresentationGrading && s.PresentationGradebook
}

// SettingsOf rebuilds the form values of an existing instance.
func SettingsOf(c Checkmark) Settings {
	s := Settings{
		Name: c.Name, Intro: c.Intro, AlwaysShowDescription: c.AlwaysShowDescription,
		Resubmit: c.Resubmit, TimeAvailable: c.TimeAvailable, TimeDue: c.TimeDue,
		CutoffDate: c.CutoffDate, GradingDue: c.GradingDue, EmailTeachers: c.EmailTeachers,
		Grade: c.Grade, FlexibleNaming: c.FlexibleNaming, ExamplePrefix: c.ExamplePrefix,
		ExampleStart: c.ExampleStart, ExampleCount: c.ExampleCount,
		TrackAttendance: c.TrackAttendance, AttendanceGradeLink: c.AttendanceGradeLink,
		AttendanceGradebook: c.AttendanceGradebook, PresentationGrading: c.PresentationGrading,
		PresentationGrade: c.PresentationGrade, PresentationGradebook: c.PresentationGradebook,
	}
	names := make([]string, len(c.Examples))
	grades := make([]string, len(c.Examples))
	for i, e := range c.Examples {
		names[i] = e.Name
		grades[i] = strconv.Itoa(e.Grade)
	}
	s.ExampleNames = strings.Join(names, ",")
	s.ExampleGrades = strings.Join(grades, ",")
	return s
}

// Preview returns the examples the settings would produce, labelled.
func (s Settings) Preview() ([]Example, error) {
	specs, err := s.Examples()
	if err != nil {
		return nil, err
	}
	out := make([]Example, len(specs))
	for i, sp := range specs {
		out[i] = Example{Name: sp.Name, Grade: sp.Grade, SortOrder: i, Prefix: s.ExamplePrefix}
	}
	return out, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
