package checkmark

import (
	"context"
	"fmt"
)

// ResetOptions selects what ResetCourse clears.
type ResetOptions struct {
	Submissions bool  `json:"submissions"`
	Overrides   bool  `json:"overrides"`
	ShiftDates  int64 `json:"shiftdates"` // seconds added to every set instance date
}

// ResetStatus is one line of the reset report.
type ResetStatus struct {
	CheckmarkID int64  `json:"checkmark_id"`
	Item        string `json:"item"`
}

// ResetCourse clears user data of every checkmark in a course in one transaction.
func (s *Service) ResetCourse(ctx context.Context, courseID int64, opts ResetOptions) ([]ResetStatus, error) {
	var report []ResetStatus
	err := s.store.InTx(ctx, func(st Store) error {
		cms, err := st.ListCheckmarksByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		for _, c := range cms {
			if opts.Submissions {
				if err := st.DeleteSubmissions(ctx, c.ID); err != nil {
					return fmt.Errorf("reset submissions of %d: %w", c.ID, err)
				}
				if err := st.DeleteFeedbacks(ctx, c.ID); err != nil {
					return fmt.Errorf("reset feedback of %d: %w", c.ID, err)
				}
				if s.grades != nil {
					if err := s.grades.ResetGrades(ctx, st.Querier(), c.ID); err != nil {
						return fmt.Errorf("reset grades of %d: %w", c.ID, err)
					}
				}
				report = append(report, ResetStatus{CheckmarkID: c.ID, Item: "submissions"})
			}
			if opts.Overrides {
				all, err := s.allOverrides(ctx, st, c.ID)
				if err != nil {
					return err
				}
				if s.calendar != nil {
					for _, o := range all {
						if err := s.calendar.DeleteOverrideEvent(ctx, st.Querier(), o); err != nil {
							return err
						}
					}
				}
				if err := st.DeleteOverrides(ctx, c.ID); err != nil {
					return fmt.Errorf("reset overrides of %d: %w", c.ID, err)
				}
				report = append(report, ResetStatus{CheckmarkID: c.ID, Item: "overrides"})
			}
			if opts.ShiftDates != 0 {
				shift(&c.TimeAvailable, opts.ShiftDates)
				shift(&c.TimeDue, opts.ShiftDates)
				shift(&c.CutoffDate, opts.ShiftDates)
				shift(&c.GradingDue, opts.ShiftDates)
				if err := st.UpdateCheckmark(ctx, &c); err != nil {
					return err
				}
				if s.calendar != nil {
					if err := s.calendar.RefreshEvents(ctx, st.Querier(), c); err != nil {
						return err
					}
				}
				report = append(report, ResetStatus{CheckmarkID: c.ID, Item: "dates"})
			}
		}
		return s.record(ctx, st, "course_reset", courseID, opts)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) allOverrides(ctx context.Context, st Store, checkmarkID int64) ([]Override, error) {
	users, err := st.ListOverrides(ctx, checkmarkID, false)
	if err != nil {
		return nil, err
	}
	groups, err := st.ListOverrides(ctx, checkmarkID, true)
	if err != nil {
		return nil, err
	}
	return append(users, groups...), nil
}

func shift(v *int64, delta int64) {
	if *v != 0 {
		*v += delta
	}
}
