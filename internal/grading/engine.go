package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrNoGrade = errors.New("grading: activity has no point grade")

// Item is a minimal view of a checklist example needed for grading.
type Item struct {
	ID     int64
	Points float64
}

// Input is everything needed to autograde one user.
type Input struct {
	Items    []Item
	Checked  map[int64]bool // example id -> checked (teacher overwrites included)
	MaxGrade float64

	// Attendance is nil when unknown; 0 absent, 1 present.
	Attendance       *int
	AttendanceLinked bool
}

// Result is the outcome of grading a single submission.
type Result struct {
	Points      float64  // points awarded automatically
	MaxPoints   float64  // the activity's max grade
	Checked     int      // number of checked examples
	Total       int      // number of examples
	NeedsManual bool     // true if a teacher should look at it
	Feedback    []string // optional notes
}

// Strategy computes a grade from the check states.
type Strategy interface {
	Grade(ctx context.Context, in Input) (Result, error)
}

// Grader routes to the configured Strategy and applies the common rules.
type Grader interface {
	Grade(ctx context.Context, in Input) (Result, error)
}

type defaultGrader struct {
	strategy Strategy
	cfg      config
}

// Engine options

type Option func(*config)

type config struct {
	Clamp    bool // cap points at MaxGrade
	Decimals int  // rounding of the stored grade
	Strategy string
}

func WithClamp(b bool) Option        { return func(c *config) { c.Clamp = b } }
func WithDecimals(n int) Option      { return func(c *config) { c.Decimals = n } }
func WithStrategy(name string) Option { return func(c *config) { c.Strategy = name } }

var strategies = map[string]Strategy{
	"sum":        sumStrategy{},
	"proportion": proportionStrategy{},
}

// KnownStrategy reports whether name selects a registered strategy.
func KnownStrategy(name string) bool {
	_, ok := strategies[name]
	return ok
}

// NewDefaultGrader returns the sum-of-checked-points grader unless another
// strategy is selected.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := config{Clamp: true, Decimals: 2, Strategy: "sum"}
	for _, o := range opts {
		o(&cfg)
	}
	s, ok := strategies[cfg.Strategy]
	if !ok {
		s = sumStrategy{}
	}
	return &defaultGrader{strategy: s, cfg: cfg}
}

func (g *defaultGrader) Grade(ctx context.Context, in Input) (Result, error) {
	if in.MaxGrade <= 0 {
		return Result{}, ErrNoGrade
	}
	res, err := g.strategy.Grade(ctx, in)
	if err != nil {
		return res, err
	}
	res.MaxPoints = in.MaxGrade
	if in.AttendanceLinked && in.Attendance != nil && *in.Attendance == 0 {
		res.Points = 0
		res.Feedback = append(res.Feedback, "absent: grade set to 0")
	}
	if in.AttendanceLinked && in.Attendance == nil {
		res.NeedsManual = true
		res.Feedback = append(res.Feedback, "attendance unknown")
	}
	if g.cfg.Clamp && res.Points > in.MaxGrade {
		res.Feedback = append(res.Feedback, fmt.Sprintf("capped %.2f at %.2f", res.Points, in.MaxGrade))
		res.Points = in.MaxGrade
	}
	if res.Points < 0 {
		res.Points = 0
	}
	res.Points = round(res.Points, g.cfg.Decimals)
	return res, nil
}

// --- Strategies ---

// sumStrategy awards the points of every checked example.
type sumStrategy struct{}

func (sumStrategy) Grade(_ context.Context, in Input) (Result, error) {
	res := Result{Total: len(in.Items)}
	for _, it := range in.Items {
		if it.Points < 0 {
			return res, fmt.Errorf("example %d has negative points", it.ID)
		}
		if in.Checked[it.ID] {
			res.Points += it.Points
			res.Checked++
		}
	}
	return res, nil
}

// proportionStrategy awards MaxGrade * checked/total regardless of points.
type proportionStrategy struct{}

func (proportionStrategy) Grade(_ context.Context, in Input) (Result, error) {
	res := Result{Total: len(in.Items)}
	for _, it := range in.Items {
		if in.Checked[it.ID] {
			res.Checked++
		}
	}
	if res.Total > 0 {
		res.Points = in.MaxGrade * float64(res.Checked) / float64(res.Total)
	}
	return res, nil
}

func round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
