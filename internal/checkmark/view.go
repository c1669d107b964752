package checkmark

import "context"

// ExampleState is an example as one user sees it.
type ExampleState struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Grade       int    `json:"grade"`
	Known       bool   `json:"known"`
	Checked     bool   `json:"checked"`
	Overwritten bool   `json:"overwritten"`
}

// ExampleStates lists the examples of c with the states stored in sub.
// A nil submission yields unknown states.
func ExampleStates(c Checkmark, sub *Submission) []ExampleState {
	out := make([]ExampleState, len(c.Examples))
	for i, e := range c.Examples {
		es := ExampleState{ID: e.ID, Name: e.Name, Label: e.Label(), Grade: e.Grade}
		if sub != nil {
			if st, ok := sub.StateOf(e.ID); ok {
				es.Known = true
				es.Checked = st.IsChecked()
				es.Overwritten = st.IsOverwritten()
			}
		}
		out[i] = es
	}
	return out
}

// CheckedTotals counts checked examples and their points.
func CheckedTotals(states []ExampleState) (count, points int) {
	for _, es := range states {
		if es.Checked {
			count++
			points += es.Grade
		}
	}
	return count, points
}

// StudentView is everything the activity page shows one user.
type StudentView struct {
	Checkmark     Checkmark      `json:"checkmark"`
	ShowIntro     bool           `json:"showintro"`
	Dates         Dates          `json:"dates"`
	Open          bool           `json:"open"`
	Late          bool           `json:"late"`
	Examples      []ExampleState `json:"examples"`
	CheckedCount  int            `json:"checkedcount"`
	CheckedPoints int            `json:"checkedpoints"`
	Submission    *Submission    `json:"submission,omitempty"`
	Feedback      *Feedback      `json:"feedback,omitempty"`
	CanSubmit     bool           `json:"cansubmit"`
}

// View assembles the activity page for userID.
func (s *Service) View(ctx context.Context, checkmarkID, userID int64) (StudentView, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return StudentView{}, err
	}
	return s.ViewOf(ctx, s.Resolver(), c, userID)
}

// ViewOf is View for an already loaded instance and a shared resolver.
func (s *Service) ViewOf(ctx context.Context, r *Resolver, c Checkmark, userID int64) (StudentView, error) {
	dates, err := r.Dates(ctx, c, userID)
	if err != nil {
		return StudentView{}, err
	}
	sub, err := s.store.GetSubmission(ctx, c.ID, userID)
	if err != nil {
		return StudentView{}, err
	}
	fb, err := s.store.GetFeedback(ctx, c.ID, userID)
	if err != nil {
		return StudentView{}, err
	}
	role, err := s.store.EnrolmentRole(ctx, c.CourseID, userID)
	if err != nil {
		return StudentView{}, err
	}
	now := s.unix()
	v := StudentView{
		Checkmark:  c,
		ShowIntro:  c.AlwaysShowDescription || dates.TimeAvailable == 0 || now >= dates.TimeAvailable,
		Dates:      dates,
		Open:       dates.Open(now),
		Late:       dates.Late(now),
		Examples:   ExampleStates(c, sub),
		Submission: sub,
		Feedback:   fb,
	}
	if sub != nil {
		v.Late = dates.Late(sub.TimeModified)
	}
	v.CheckedCount, v.CheckedPoints = CheckedTotals(v.Examples)
	graded := fb != nil && fb.Grade != nil
	v.CanSubmit = role == "student" && v.Open && (sub == nil || c.Resubmit || !graded)
	return v, nil
}
