package checkmark

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardNamingDividesGrade(t *testing.T) {
	s := Settings{Name: "Week 1", Grade: 100, ExampleStart: 3, ExampleCount: 10, ExamplePrefix: "Ex. "}
	specs, err := s.Examples()
	require.NoError(t, err)
	require.Len(t, specs, 10)
	assert.Equal(t, ExampleSpec{Name: "3", Grade: 10}, specs[0])
	assert.Equal(t, ExampleSpec{Name: "12", Grade: 10}, specs[9])

	preview, err := s.Preview()
	require.NoError(t, err)
	assert.Equal(t, "Ex. 3", preview[0].Label())
}

func TestStandardNamingRejectsIndivisibleGrade(t *testing.T) {
	s := Settings{Name: "Week 1", Grade: 100, ExampleStart: 1, ExampleCount: 3}
	_, err := s.Examples()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "grade")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStandardNamingWithoutGrade(t *testing.T) {
	s := Settings{Name: "Ungraded", Grade: 0, ExampleStart: 1, ExampleCount: 4}
	specs, err := s.Examples()
	require.NoError(t, err)
	for _, sp := range specs {
		assert.Zero(t, sp.Grade)
	}
}

func TestFlexibleNaming(t *testing.T) {
	s := Settings{
		Name: "Sheet", Grade: 10, FlexibleNaming: true,
		ExampleNames: "1a, 1b ,2", ExampleGrades: "3,3,4",
	}
	specs, err := s.Examples()
	require.NoError(t, err)
	assert.Equal(t, []ExampleSpec{{"1a", 3}, {"1b", 3}, {"2", 4}}, specs)
}

func TestFlexibleNamingErrors(t *testing.T) {
	cases := map[string]Settings{
		"sum mismatch":     {Grade: 10, FlexibleNaming: true, ExampleNames: "a,b", ExampleGrades: "3,3"},
		"length mismatch":  {Grade: 6, FlexibleNaming: true, ExampleNames: "a,b,c", ExampleGrades: "3,3"},
		"empty name":       {Grade: 6, FlexibleNaming: true, ExampleNames: "a,,c", ExampleGrades: "2,2,2"},
		"negative grade":   {Grade: 0, FlexibleNaming: true, ExampleNames: "a", ExampleGrades: "-1"},
		"non number grade": {Grade: 0, FlexibleNaming: true, ExampleNames: "a", ExampleGrades: "x"},
		"no examples":      {Grade: 0, FlexibleNaming: true},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Examples()
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestSettingsValidateDates(t *testing.T) {
	base := Settings{Name: "x", Grade: 10, ExampleStart: 1, ExampleCount: 10}
	require.NoError(t, base.Validate())

	s := base
	s.TimeAvailable, s.TimeDue = 200, 100
	err := s.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "timedue")

	s = base
	s.TimeDue, s.CutoffDate = 200, 100
	require.True(t, errors.As(s.Validate(), &verr))
	assert.Contains(t, verr.Fields, "cutoffdate")

	s = base
	s.TimeDue, s.GradingDue = 200, 100
	require.True(t, errors.As(s.Validate(), &verr))
	assert.Contains(t, verr.Fields, "gradingdue")
}

func TestSettingsValidateTagsAndFlags(t *testing.T) {
	s := Settings{ExampleStart: 1, ExampleCount: 1, PresentationGrading: true, AttendanceGradebook: true}
	err := s.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "presentationgrade")
	assert.Contains(t, verr.Fields, "trackattendance")
}

func TestSettingsRoundTrip(t *testing.T) {
	c := Checkmark{Name: "n", Grade: 5, FlexibleNaming: true, Examples: []Example{{Name: "a", Grade: 2}, {Name: "b", Grade: 3}}}
	s := SettingsOf(c)
	assert.Equal(t, "a,b", s.ExampleNames)
	assert.Equal(t, "2,3", s.ExampleGrades)
	require.NoError(t, s.Validate())
}
