package checkmark

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/grading"
)

// GradeBook receives grades. Calls carry the active Querier so they join the
// caller's transaction.
type GradeBook interface {
	SyncItems(ctx context.Context, q db.Querier, c Checkmark) error
	PushGrades(ctx context.Context, q db.Querier, c Checkmark, fbs []Feedback) error
	// Publish hands committed grades to external consumers.
	Publish(c Checkmark, fbs []Feedback)
	ResetGrades(ctx context.Context, q db.Querier, checkmarkID int64) error
	DeleteItems(ctx context.Context, q db.Querier, checkmarkID int64) error
}

// Calendar keeps due date events in line with the instance and its overrides.
type Calendar interface {
	RefreshEvents(ctx context.Context, q db.Querier, c Checkmark) error
	RefreshOverrideEvent(ctx context.Context, q db.Querier, c Checkmark, o Override) error
	DeleteOverrideEvent(ctx context.Context, q db.Querier, o Override) error
	DeleteEvents(ctx context.Context, q db.Querier, checkmarkID int64) error
}

// EventLog records audit events.
type EventLog interface {
	Record(ctx context.Context, q db.Querier, typ, key string, payload any) error
}

// Notifier is told about new submissions when teachers asked for mail.
type Notifier interface {
	SubmissionReceived(ctx context.Context, c Checkmark, student Participant, sub Submission)
}

// Observer gets counters for metrics; all methods must be cheap.
type Observer interface {
	Submitted(c Checkmark, late bool)
	Graded(c Checkmark, source string, grade *float64)
}

type Service struct {
	store    Store
	grades   GradeBook
	calendar Calendar
	events   EventLog
	notifier Notifier
	observer Observer
	grader   grading.Grader
	now      func() time.Time
}

type Option func(*Service)

func WithGradeBook(g GradeBook) Option   { return func(s *Service) { s.grades = g } }
func WithCalendar(c Calendar) Option     { return func(s *Service) { s.calendar = c } }
func WithEventLog(e EventLog) Option     { return func(s *Service) { s.events = e } }
func WithNotifier(n Notifier) Option     { return func(s *Service) { s.notifier = n } }
func WithObserver(o Observer) Option     { return func(s *Service) { s.observer = o } }
func WithGrader(g grading.Grader) Option { return func(s *Service) { s.grader = g } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, grader: grading.NewDefaultGrader(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the underlying store for read-side packages.
func (s *Service) Store() Store { return s.store }

// Resolver returns a fresh per-request date resolver.
func (s *Service) Resolver() *Resolver { return NewResolver(s.store) }

func (s *Service) unix() int64 { return s.now().Unix() }

func (s *Service) record(ctx context.Context, st Store, typ string, key int64, payload any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Record(ctx, st.Querier(), typ, strconv.FormatInt(key, 10), payload)
}

// ---- instances ----

// AddInstance validates the settings, creates the instance with its examples,
// grade items and calendar events.
func (s *Service) AddInstance(ctx context.Context, courseID int64, set Settings) (Checkmark, error) {
	if err := set.Validate(); err != nil {
		return Checkmark{}, err
	}
	specs, _ := set.Examples()
	c := Checkmark{CourseID: courseID}
	set.Apply(&c)
	err := s.store.InTx(ctx, func(st Store) error {
		if err := st.InsertCheckmark(ctx, &c); err != nil {
			return err
		}
		if err := s.updateExamples(ctx, st, &c, specs); err != nil {
			return err
		}
		if err := s.syncSideEffects(ctx, st, c); err != nil {
			return err
		}
		return s.record(ctx, st, "checkmark_created", c.ID, map[string]any{"course_id": courseID, "name": c.Name})
	})
	if err != nil {
		return Checkmark{}, err
	}
	return c, nil
}

// UpdateInstance applies new settings and re-syncs examples, grade items and events.
func (s *Service) UpdateInstance(ctx context.Context, id int64, set Settings) (Checkmark, error) {
	if err := set.Validate(); err != nil {
		return Checkmark{}, err
	}
	specs, _ := set.Examples()
	var c Checkmark
	err := s.store.InTx(ctx, func(st Store) error {
		var err error
		if c, err = st.GetCheckmark(ctx, id); err != nil {
			return err
		}
		set.Apply(&c)
		if err := st.UpdateCheckmark(ctx, &c); err != nil {
			return err
		}
		if err := s.updateExamples(ctx, st, &c, specs); err != nil {
			return err
		}
		if err := s.syncSideEffects(ctx, st, c); err != nil {
			return err
		}
		return s.record(ctx, st, "checkmark_updated", c.ID, map[string]any{"name": c.Name})
	})
	if err != nil {
		return Checkmark{}, err
	}
	return c, nil
}

func (s *Service) syncSideEffects(ctx context.Context, st Store, c Checkmark) error {
	if s.grades != nil {
		if err := s.grades.SyncItems(ctx, st.Querier(), c); err != nil {
			return fmt.Errorf("grade items: %w", err)
		}
	}
	if s.calendar != nil {
		if err := s.calendar.RefreshEvents(ctx, st.Querier(), c); err != nil {
			return fmt.Errorf("calendar: %w", err)
		}
	}
	return nil
}

// updateExamples matches stored examples to specs by position: matching rows
// are renamed/regraded in place, missing ones inserted and surplus rows
// deleted together with their checks.
func (s *Service) updateExamples(ctx context.Context, st Store, c *Checkmark, specs []ExampleSpec) error {
	existing, err := st.ListExamples(ctx, c.ID)
	if err != nil {
		return err
	}
	out := make([]Example, 0, len(specs))
	for i, sp := range specs {
		if i < len(existing) {
			e := existing[i]
			e.Name, e.Grade, e.SortOrder = sp.Name, sp.Grade, i
			if err := st.UpdateExample(ctx, e); err != nil {
				return fmt.Errorf("update example %d: %w", e.ID, err)
			}
			out = append(out, e)
			continue
		}
		e := Example{CheckmarkID: c.ID, Name: sp.Name, Grade: sp.Grade, SortOrder: i}
		if err := st.InsertExample(ctx, &e); err != nil {
			return err
		}
		out = append(out, e)
	}
	for _, e := range existing[min(len(specs), len(existing)):] {
		if err := st.DeleteExample(ctx, e.ID); err != nil {
			return fmt.Errorf("delete example %d: %w", e.ID, err)
		}
	}
	for i := range out {
		out[i].Prefix = c.ExamplePrefix
	}
	c.Examples = out
	return nil
}

// DeleteInstance removes an instance with all its data in one transaction.
func (s *Service) DeleteInstance(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(st Store) error {
		c, err := st.GetCheckmark(ctx, id)
		if err != nil {
			return err
		}
		if s.calendar != nil {
			if err := s.calendar.DeleteEvents(ctx, st.Querier(), id); err != nil {
				return err
			}
		}
		if s.grades != nil {
			if err := s.grades.DeleteItems(ctx, st.Querier(), id); err != nil {
				return err
			}
		}
		if err := st.DeleteCheckmark(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, st, "checkmark_deleted", id, map[string]any{"course_id": c.CourseID, "name": c.Name})
	})
}

func (s *Service) Get(ctx context.Context, id int64) (Checkmark, error) {
	return s.store.GetCheckmark(ctx, id)
}

func (s *Service) ListByCourse(ctx context.Context, courseID int64) ([]Checkmark, error) {
	return s.store.ListCheckmarksByCourse(ctx, courseID)
}

// Role returns the caller's enrolment role in the instance's course, "" if none.
func (s *Service) Role(ctx context.Context, c Checkmark, userID int64) (string, error) {
	return s.store.EnrolmentRole(ctx, c.CourseID, userID)
}
