package checkmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/checkmark/internal/grading"
)

// GradeInput is the single-user grading form.
type GradeInput struct {
	Grade                *float64 `json:"grade"`
	Feedback             string   `json:"feedback"`
	Attendance           *int     `json:"attendance" validate:"omitempty,oneof=0 1"`
	PresentationGrade    *float64 `json:"presentationgrade"`
	PresentationFeedback string   `json:"presentationfeedback"`
}

// Validate checks the form against the instance settings and applies the
// attendance link (absent users get 0).
func (in *GradeInput) Validate(c Checkmark) error {
	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		verr.Add("attendance", "must be 0 (absent) or 1 (present)")
	}
	if in.Grade != nil {
		switch {
		case !c.Graded():
			verr.Add("grade", "grading is disabled")
		case *in.Grade < 0 || *in.Grade > float64(c.Grade):
			verr.Add("grade", fmt.Sprintf("must be between 0 and %d", c.Grade))
		}
	}
	if in.Attendance != nil && !c.TrackAttendance {
		verr.Add("attendance", "attendance is not tracked")
	}
	if in.PresentationGrade != nil {
		switch {
		case !c.PresentationGrading:
			verr.Add("presentationgrade", "presentation grading is disabled")
		case *in.PresentationGrade < 0 || *in.PresentationGrade > float64(c.PresentationGrade):
			verr.Add("presentationgrade", fmt.Sprintf("must be between 0 and %d", c.PresentationGrade))
		}
	}
	if !verr.Empty() {
		return verr
	}
	if c.AttendanceGradeLink && c.Graded() && in.Attendance != nil && *in.Attendance == Absent {
		zero := 0.0
		in.Grade = &zero
	}
	return nil
}

// NeedsGrading is true for a submission without a grade or one changed
// after it was graded.
func NeedsGrading(sub *Submission, fb *Feedback) bool {
	if sub == nil {
		return false
	}
	return fb == nil || fb.Grade == nil || fb.TimeModified < sub.TimeModified
}

// Grade stores the grader's feedback for one user and pushes it to the grade book.
func (s *Service) Grade(ctx context.Context, checkmarkID, userID, graderID int64, in GradeInput) (Feedback, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return Feedback{}, err
	}
	if err := in.Validate(c); err != nil {
		return Feedback{}, err
	}
	if err := s.requireStudent(ctx, c, userID); err != nil {
		return Feedback{}, err
	}
	var out Feedback
	err = s.store.InTx(ctx, func(st Store) error {
		fb, err := s.writeFeedback(ctx, st, c, userID, graderID, in)
		out = fb
		return err
	})
	if err != nil {
		return Feedback{}, err
	}
	if s.observer != nil {
		s.observer.Graded(c, "manual", out.Grade)
	}
	return out, nil
}

// QuickGrade grades several users at once. All rows are validated before
// anything is written; the writes share one transaction.
func (s *Service) QuickGrade(ctx context.Context, checkmarkID, graderID int64, rows map[int64]GradeInput) (int, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return 0, err
	}
	verr := &ValidationError{}
	for uid, in := range rows {
		in := in
		if err := in.Validate(c); err != nil {
			verr.Add(fmt.Sprintf("user %d", uid), err.Error())
			continue
		}
		rows[uid] = in
	}
	if !verr.Empty() {
		return 0, verr
	}
	for uid := range rows {
		if err := s.requireStudent(ctx, c, uid); err != nil {
			return 0, err
		}
	}
	n := 0
	err = s.store.InTx(ctx, func(st Store) error {
		for uid, in := range rows {
			if _, err := s.writeFeedback(ctx, st, c, uid, graderID, in); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.observer != nil {
		for _, in := range rows {
			s.observer.Graded(c, "quick", in.Grade)
		}
	}
	return n, nil
}

func (s *Service) requireStudent(ctx context.Context, c Checkmark, userID int64) error {
	role, err := s.store.EnrolmentRole(ctx, c.CourseID, userID)
	if err != nil {
		return err
	}
	if role != "student" {
		return fmt.Errorf("user %d is not a student of course %d: %w", userID, c.CourseID, ErrNotFound)
	}
	return nil
}

func (s *Service) writeFeedback(ctx context.Context, st Store, c Checkmark, userID, graderID int64, in GradeInput) (Feedback, error) {
	fb, err := st.GetFeedback(ctx, c.ID, userID)
	if err != nil {
		return Feedback{}, err
	}
	if fb == nil {
		fb = &Feedback{CheckmarkID: c.ID, UserID: userID}
	}
	fb.Grade = in.Grade
	fb.Feedback = in.Feedback
	fb.Attendance = in.Attendance
	fb.PresentationGrade = in.PresentationGrade
	fb.PresentationFeedback = in.PresentationFeedback
	fb.GraderID = graderID
	fb.Mailed = false
	fb.TimeModified = s.unix()
	if fb.TimeCreated == 0 {
		fb.TimeCreated = fb.TimeModified
	}
	if err := st.UpsertFeedback(ctx, fb); err != nil {
		return Feedback{}, err
	}
	if s.grades != nil {
		pushed := []Feedback{*fb}
		if err := s.grades.PushGrades(ctx, st.Querier(), c, pushed); err != nil {
			return Feedback{}, fmt.Errorf("grade book: %w", err)
		}
		st.AfterCommit(func() { s.grades.Publish(c, pushed) })
	}
	if err := s.record(ctx, st, "grade_updated", c.ID, map[string]any{
		"user_id": userID, "grader_id": graderID, "grade": fb.Grade,
	}); err != nil {
		return Feedback{}, err
	}
	return *fb, nil
}

// AutogradeFilter selects the users Autograde touches.
type AutogradeFilter string

const (
	AutogradeAll      AutogradeFilter = "all"
	AutogradeRequired AutogradeFilter = "required"
	AutogradeSelected AutogradeFilter = "selected"
)

func (f AutogradeFilter) Valid() bool {
	switch f {
	case AutogradeAll, AutogradeRequired, AutogradeSelected:
		return true
	}
	return false
}

// Autograde sets each chosen user's grade to the sum of the points of their
// checked examples. Users are committed one by one; the first failure stops
// the run and is returned together with the number graded so far.
func (s *Service) Autograde(ctx context.Context, checkmarkID, graderID int64, filter AutogradeFilter, selected []int64) (int, error) {
	if !filter.Valid() {
		return 0, fmt.Errorf("autograde filter %q: %w", filter, ErrInvalidArgument)
	}
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return 0, err
	}
	if !c.Graded() {
		return 0, ErrGradingDisabled
	}
	users, err := s.store.ListParticipants(ctx, c.CourseID, 0)
	if err != nil {
		return 0, err
	}
	want := map[int64]bool{}
	for _, id := range selected {
		want[id] = true
	}
	subs, err := s.store.ListSubmissions(ctx, c.ID, nil)
	if err != nil {
		return 0, err
	}
	feedbacks, err := s.store.ListFeedbacks(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	fbByUser := map[int64]*Feedback{}
	for i := range feedbacks {
		fbByUser[feedbacks[i].UserID] = &feedbacks[i]
	}

	items := make([]grading.Item, len(c.Examples))
	for i, e := range c.Examples {
		items[i] = grading.Item{ID: e.ID, Points: float64(e.Grade)}
	}

	graded := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return graded, err
		}
		var sub *Submission
		if v, ok := subs[u.ID]; ok {
			sub = &v
		}
		fb := fbByUser[u.ID]
		switch filter {
		case AutogradeRequired:
			if !NeedsGrading(sub, fb) {
				continue
			}
		case AutogradeSelected:
			if !want[u.ID] {
				continue
			}
		}

		in := grading.Input{Items: items, Checked: map[int64]bool{}, MaxGrade: float64(c.Grade), AttendanceLinked: c.AttendanceGradeLink}
		if sub != nil {
			for _, chk := range sub.Checks {
				in.Checked[chk.ExampleID] = chk.State.IsChecked()
			}
		}
		form := GradeInput{}
		if fb != nil {
			in.Attendance = fb.Attendance
			form = GradeInput{
				Feedback: fb.Feedback, Attendance: fb.Attendance,
				PresentationGrade: fb.PresentationGrade, PresentationFeedback: fb.PresentationFeedback,
			}
		}
		res, err := s.grader.Grade(ctx, in)
		if err != nil {
			if errors.Is(err, grading.ErrNoGrade) {
				return graded, ErrGradingDisabled
			}
			return graded, fmt.Errorf("autograde user %d: %w", u.ID, err)
		}
		points := res.Points
		form.Grade = &points

		err = s.store.InTx(ctx, func(st Store) error {
			_, err := s.writeFeedback(ctx, st, c, u.ID, graderID, form)
			return err
		})
		if err != nil {
			return graded, fmt.Errorf("autograde user %d: %w", u.ID, err)
		}
		if s.observer != nil {
			s.observer.Graded(c, "auto", form.Grade)
		}
		graded++
	}
	return graded, nil
}
