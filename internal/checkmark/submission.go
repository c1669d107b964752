package checkmark

import (
	"context"
	"fmt"
)

// Submit stores the student's checklist. checked holds the ids of the
// examples the student claims; every other example is stored unchecked.
// States a teacher overwrote are left alone.
func (s *Service) Submit(ctx context.Context, checkmarkID, userID int64, checked []int64) (Submission, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return Submission{}, err
	}
	role, err := s.store.EnrolmentRole(ctx, c.CourseID, userID)
	if err != nil {
		return Submission{}, err
	}
	if role != "student" {
		return Submission{}, fmt.Errorf("user %d is not a student of course %d: %w", userID, c.CourseID, ErrForbidden)
	}

	want := map[int64]bool{}
	known := map[int64]bool{}
	for _, e := range c.Examples {
		known[e.ID] = true
	}
	for _, id := range checked {
		if !known[id] {
			return Submission{}, fmt.Errorf("example %d does not belong to checkmark %d: %w", id, c.ID, ErrInvalidArgument)
		}
		want[id] = true
	}

	dates, err := s.Resolver().Dates(ctx, c, userID)
	if err != nil {
		return Submission{}, err
	}
	now := s.unix()
	if !dates.Open(now) {
		return Submission{}, ErrNotOpen
	}

	var out Submission
	err = s.store.InTx(ctx, func(st Store) error {
		sub, err := st.GetSubmission(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if sub != nil && !c.Resubmit {
			fb, err := st.GetFeedback(ctx, c.ID, userID)
			if err != nil {
				return err
			}
			if fb != nil && fb.Grade != nil {
				return ErrAlreadyGraded
			}
		}
		if sub == nil {
			sub = &Submission{CheckmarkID: c.ID, UserID: userID, TimeCreated: now, TimeModified: now}
			if err := st.CreateSubmission(ctx, sub); err != nil {
				return err
			}
		}
		for _, e := range c.Examples {
			if prev, ok := sub.StateOf(e.ID); ok && prev.IsOverwritten() {
				continue
			}
			state := Unchecked
			if want[e.ID] {
				state = Checked
			}
			if err := st.SetCheck(ctx, sub.ID, e.ID, state); err != nil {
				return err
			}
		}
		if err := st.TouchSubmission(ctx, sub.ID, now); err != nil {
			return err
		}
		fresh, err := st.GetSubmission(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		out = *fresh
		return s.record(ctx, st, "submission_updated", c.ID, map[string]any{
			"user_id": userID, "checked": checked,
		})
	})
	if err != nil {
		return Submission{}, err
	}

	if s.observer != nil {
		s.observer.Submitted(c, dates.Late(now))
	}
	if c.EmailTeachers && s.notifier != nil {
		if p, err := s.store.GetParticipant(ctx, userID); err == nil {
			s.notifier.SubmissionReceived(ctx, c, p, out)
		}
	}
	return out, nil
}

// ExampleCheck is one entry of a web-service submission.
type ExampleCheck struct {
	ID      int64 `json:"id" validate:"required"`
	Checked bool  `json:"checked"`
}

// SubmitExact is Submit for API callers: the posted example ids must be
// exactly the instance's example set, each listed once.
func (s *Service) SubmitExact(ctx context.Context, checkmarkID, userID int64, list []ExampleCheck) (Submission, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return Submission{}, err
	}
	if err := MatchExampleSet(c, list); err != nil {
		return Submission{}, err
	}
	var checked []int64
	for _, ec := range list {
		if ec.Checked {
			checked = append(checked, ec.ID)
		}
	}
	return s.Submit(ctx, checkmarkID, userID, checked)
}

// MatchExampleSet fails with ErrInvalidArgument unless list names every
// example of c exactly once and nothing else.
func MatchExampleSet(c Checkmark, list []ExampleCheck) error {
	if len(list) != len(c.Examples) {
		return fmt.Errorf("got %d examples, checkmark has %d: %w", len(list), len(c.Examples), ErrInvalidArgument)
	}
	seen := map[int64]bool{}
	for _, e := range c.Examples {
		seen[e.ID] = false
	}
	for _, ec := range list {
		used, ok := seen[ec.ID]
		if !ok {
			return fmt.Errorf("example %d is not part of checkmark %d: %w", ec.ID, c.ID, ErrInvalidArgument)
		}
		if used {
			return fmt.Errorf("example %d listed twice: %w", ec.ID, ErrInvalidArgument)
		}
		seen[ec.ID] = true
	}
	return nil
}

func (s *Service) GetSubmission(ctx context.Context, checkmarkID, userID int64) (*Submission, error) {
	return s.store.GetSubmission(ctx, checkmarkID, userID)
}

// OverwriteChecks lets a teacher set check states. The states are stored with
// the overwritten flag so later student submissions keep them.
func (s *Service) OverwriteChecks(ctx context.Context, checkmarkID, userID, graderID int64, states map[int64]bool) (Submission, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return Submission{}, err
	}
	known := map[int64]bool{}
	for _, e := range c.Examples {
		known[e.ID] = true
	}
	for id := range states {
		if !known[id] {
			return Submission{}, fmt.Errorf("example %d does not belong to checkmark %d: %w", id, c.ID, ErrInvalidArgument)
		}
	}
	role, err := s.store.EnrolmentRole(ctx, c.CourseID, userID)
	if err != nil {
		return Submission{}, err
	}
	if role != "student" {
		return Submission{}, fmt.Errorf("user %d is not a student of course %d: %w", userID, c.CourseID, ErrNotFound)
	}

	var out Submission
	now := s.unix()
	err = s.store.InTx(ctx, func(st Store) error {
		sub, err := st.GetSubmission(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			sub = &Submission{CheckmarkID: c.ID, UserID: userID, TimeCreated: now, TimeModified: now}
			if err := st.CreateSubmission(ctx, sub); err != nil {
				return err
			}
		}
		for _, e := range c.Examples {
			v, ok := states[e.ID]
			if !ok {
				continue
			}
			if err := st.SetCheck(ctx, sub.ID, e.ID, Overwrite(v)); err != nil {
				return err
			}
		}
		fresh, err := st.GetSubmission(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		out = *fresh
		return s.record(ctx, st, "checks_overwritten", c.ID, map[string]any{
			"user_id": userID, "grader_id": graderID, "states": states,
		})
	})
	return out, err
}
