package checkmark

import (
	"context"
	"fmt"
)

// CreateOverride adds a user or group override. Group overrides are appended
// at the lowest precedence (highest priority number).
func (s *Service) CreateOverride(ctx context.Context, checkmarkID, modifierID int64, in OverrideInput) (Override, error) {
	c, err := s.store.GetCheckmark(ctx, checkmarkID)
	if err != nil {
		return Override{}, err
	}
	if err := in.Validate(c); err != nil {
		return Override{}, err
	}
	if err := s.checkTarget(ctx, c, in); err != nil {
		return Override{}, err
	}
	o := Override{
		CheckmarkID: c.ID, UserID: in.UserID, GroupID: in.GroupID,
		TimeAvailable: in.TimeAvailable, TimeDue: in.TimeDue, CutoffDate: in.CutoffDate,
		ModifierID: modifierID, TimeCreated: s.unix(),
	}
	err = s.store.InTx(ctx, func(st Store) error {
		if o.IsGroup() {
			p, err := st.MaxGroupPriority(ctx, c.ID)
			if err != nil {
				return err
			}
			p++
			o.GroupPriority = &p
		}
		if err := st.InsertOverride(ctx, &o); err != nil {
			return err
		}
		if s.calendar != nil {
			if err := s.calendar.RefreshOverrideEvent(ctx, st.Querier(), c, o); err != nil {
				return fmt.Errorf("calendar: %w", err)
			}
		}
		return s.record(ctx, st, "override_created", c.ID, o)
	})
	if err != nil {
		return Override{}, err
	}
	return o, nil
}

func (s *Service) checkTarget(ctx context.Context, c Checkmark, in OverrideInput) error {
	if in.UserID != nil {
		role, err := s.store.EnrolmentRole(ctx, c.CourseID, *in.UserID)
		if err != nil {
			return err
		}
		if role != "student" {
			return fmt.Errorf("user %d is not a student of course %d: %w", *in.UserID, c.CourseID, ErrInvalidArgument)
		}
		return nil
	}
	course, err := s.store.GroupCourse(ctx, *in.GroupID)
	if err != nil {
		return err
	}
	if course != c.CourseID {
		return fmt.Errorf("group %d is not part of course %d: %w", *in.GroupID, c.CourseID, ErrInvalidArgument)
	}
	return nil
}

// UpdateOverride replaces the dates of an override. The target stays fixed.
func (s *Service) UpdateOverride(ctx context.Context, overrideID, modifierID int64, in OverrideInput) (Override, error) {
	o, err := s.store.GetOverride(ctx, overrideID)
	if err != nil {
		return Override{}, err
	}
	c, err := s.store.GetCheckmark(ctx, o.CheckmarkID)
	if err != nil {
		return Override{}, err
	}
	in.UserID, in.GroupID = o.UserID, o.GroupID
	if err := in.Validate(c); err != nil {
		return Override{}, err
	}
	o.TimeAvailable, o.TimeDue, o.CutoffDate = in.TimeAvailable, in.TimeDue, in.CutoffDate
	o.ModifierID = modifierID
	err = s.store.InTx(ctx, func(st Store) error {
		if err := st.UpdateOverride(ctx, o); err != nil {
			return err
		}
		if s.calendar != nil {
			if err := s.calendar.RefreshOverrideEvent(ctx, st.Querier(), c, o); err != nil {
				return fmt.Errorf("calendar: %w", err)
			}
		}
		return s.record(ctx, st, "override_updated", c.ID, o)
	})
	if err != nil {
		return Override{}, err
	}
	return o, nil
}

// DeleteOverride removes an override; remaining group priorities are renumbered 1..n.
func (s *Service) DeleteOverride(ctx context.Context, overrideID int64) error {
	return s.store.InTx(ctx, func(st Store) error {
		o, err := st.GetOverride(ctx, overrideID)
		if err != nil {
			return err
		}
		if err := st.DeleteOverride(ctx, o.ID); err != nil {
			return err
		}
		if s.calendar != nil {
			if err := s.calendar.DeleteOverrideEvent(ctx, st.Querier(), o); err != nil {
				return fmt.Errorf("calendar: %w", err)
			}
		}
		if o.IsGroup() {
			if err := compactPriorities(ctx, st, o.CheckmarkID); err != nil {
				return err
			}
		}
		return s.record(ctx, st, "override_deleted", o.CheckmarkID, o)
	})
}

func compactPriorities(ctx context.Context, st Store, checkmarkID int64) error {
	groups, err := st.ListOverrides(ctx, checkmarkID, true)
	if err != nil {
		return err
	}
	for i, g := range groups {
		if g.GroupPriority != nil && *g.GroupPriority == i+1 {
			continue
		}
		if err := st.SetGroupPriority(ctx, g.ID, i+1); err != nil {
			return err
		}
	}
	return nil
}

// ListOverrides returns user overrides, or group overrides in priority order.
func (s *Service) ListOverrides(ctx context.Context, checkmarkID int64, groups bool) ([]Override, error) {
	if _, err := s.store.GetCheckmark(ctx, checkmarkID); err != nil {
		return nil, err
	}
	return s.store.ListOverrides(ctx, checkmarkID, groups)
}

// MoveGroupOverride swaps a group override with its neighbour. Moving the
// first one up or the last one down is a no-op.
func (s *Service) MoveGroupOverride(ctx context.Context, overrideID int64, up bool) ([]Override, error) {
	var out []Override
	err := s.store.InTx(ctx, func(st Store) error {
		o, err := st.GetOverride(ctx, overrideID)
		if err != nil {
			return err
		}
		if !o.IsGroup() {
			return fmt.Errorf("override %d is not a group override: %w", o.ID, ErrInvalidArgument)
		}
		if err := compactPriorities(ctx, st, o.CheckmarkID); err != nil {
			return err
		}
		groups, err := st.ListOverrides(ctx, o.CheckmarkID, true)
		if err != nil {
			return err
		}
		idx := -1
		for i, g := range groups {
			if g.ID == o.ID {
				idx = i
			}
		}
		other := idx + 1
		if up {
			other = idx - 1
		}
		if idx >= 0 && other >= 0 && other < len(groups) {
			if err := st.SetGroupPriority(ctx, groups[idx].ID, other+1); err != nil {
				return err
			}
			if err := st.SetGroupPriority(ctx, groups[other].ID, idx+1); err != nil {
				return err
			}
			if err := s.record(ctx, st, "override_moved", o.CheckmarkID, map[string]any{"override_id": o.ID, "up": up}); err != nil {
				return err
			}
		}
		out, err = st.ListOverrides(ctx, o.CheckmarkID, true)
		return err
	})
	return out, err
}

// ExtendRequest grants the same dates to many users or groups.
type ExtendRequest struct {
	Type          string  `json:"type" validate:"required,oneof=users groups"`
	IDs           []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	TimeAvailable *int64  `json:"timeavailable"`
	TimeDue       *int64  `json:"timedue"`
	CutoffDate    *int64  `json:"cutoffdate"`
}

// ExtendResult reports the outcome per target id.
type ExtendResult struct {
	Saved  []Override       `json:"saved"`
	Errors map[int64]string `json:"errors,omitempty"`
}

// Extend creates or updates an override for every target. Supplied dates
// replace the target's current override values; omitted ones are kept.
// A failing target is reported and the batch continues.
func (s *Service) Extend(ctx context.Context, checkmarkID, modifierID int64, req ExtendRequest) (ExtendResult, error) {
	if err := validate.Struct(req); err != nil {
		verr := &ValidationError{}
		verr.Add("extend", err.Error())
		return ExtendResult{}, verr
	}
	if _, err := s.store.GetCheckmark(ctx, checkmarkID); err != nil {
		return ExtendResult{}, err
	}
	res := ExtendResult{Errors: map[int64]string{}}
	existing, err := s.store.ListOverrides(ctx, checkmarkID, req.Type == "groups")
	if err != nil {
		return ExtendResult{}, err
	}
	byTarget := map[int64]Override{}
	for _, o := range existing {
		switch {
		case o.UserID != nil:
			byTarget[*o.UserID] = o
		case o.GroupID != nil:
			byTarget[*o.GroupID] = o
		}
	}
	for _, id := range req.IDs {
		id := id
		in := OverrideInput{TimeAvailable: req.TimeAvailable, TimeDue: req.TimeDue, CutoffDate: req.CutoffDate}
		if req.Type == "users" {
			in.UserID = &id
		} else {
			in.GroupID = &id
		}
		var (
			o   Override
			err error
		)
		if prev, ok := byTarget[id]; ok {
			in.TimeAvailable = firstSet(in.TimeAvailable, prev.TimeAvailable)
			in.TimeDue = firstSet(in.TimeDue, prev.TimeDue)
			in.CutoffDate = firstSet(in.CutoffDate, prev.CutoffDate)
			o, err = s.UpdateOverride(ctx, prev.ID, modifierID, in)
		} else {
			o, err = s.CreateOverride(ctx, checkmarkID, modifierID, in)
		}
		if err != nil {
			res.Errors[id] = err.Error()
			continue
		}
		res.Saved = append(res.Saved, o)
	}
	return res, nil
}

func firstSet(a, b *int64) *int64 {
	if a != nil {
		return a
	}
	return b
}
