package checkmark

import (
	"context"
	"sort"
	"sync"
)

// ResolveDates picks the effective dates for a user. Per field, a non-nil
// value of the user override wins; otherwise the first non-nil value among
// the group overrides by ascending priority; otherwise the instance value.
func ResolveDates(c Checkmark, user *Override, groups []Override) Dates {
	ordered := make([]Override, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priority(ordered[i]) < priority(ordered[j])
	})

	pick := func(instance int64, field func(Override) *int64) int64 {
		if user != nil {
			if v := field(*user); v != nil {
				return *v
			}
		}
		for _, g := range ordered {
			if v := field(g); v != nil {
				return *v
			}
		}
		return instance
	}
	return Dates{
		TimeAvailable: pick(c.TimeAvailable, func(o Override) *int64 { return o.TimeAvailable }),
		TimeDue:       pick(c.TimeDue, func(o Override) *int64 { return o.TimeDue }),
		CutoffDate:    pick(c.CutoffDate, func(o Override) *int64 { return o.CutoffDate }),
	}
}

// InstanceDates are the dates without any override applied.
func InstanceDates(c Checkmark) Dates {
	return Dates{TimeAvailable: c.TimeAvailable, TimeDue: c.TimeDue, CutoffDate: c.CutoffDate}
}

func priority(o Override) int {
	if o.GroupPriority == nil {
		return int(^uint(0) >> 1)
	}
	return *o.GroupPriority
}

// OverrideSource is the part of the store the Resolver reads from.
type OverrideSource interface {
	UserOverride(ctx context.Context, checkmarkID, userID int64) (*Override, error)
	GroupOverridesForUser(ctx context.Context, checkmarkID, userID int64) ([]Override, error)
}

// Resolver caches resolved dates. Create one per request; it is never shared
// between requests so edits are visible on the next one.
type Resolver struct {
	src OverrideSource

	mu    sync.Mutex
	cache map[[2]int64]Dates
}

func NewResolver(src OverrideSource) *Resolver {
	return &Resolver{src: src, cache: map[[2]int64]Dates{}}
}

func (r *Resolver) Dates(ctx context.Context, c Checkmark, userID int64) (Dates, error) {
	k := [2]int64{c.ID, userID}
	r.mu.Lock()
	d, ok := r.cache[k]
	r.mu.Unlock()
	if ok {
		return d, nil
	}
	user, err := r.src.UserOverride(ctx, c.ID, userID)
	if err != nil {
		return Dates{}, err
	}
	groups, err := r.src.GroupOverridesForUser(ctx, c.ID, userID)
	if err != nil {
		return Dates{}, err
	}
	d = ResolveDates(c, user, groups)
	r.mu.Lock()
	r.cache[k] = d
	r.mu.Unlock()
	return d, nil
}

// OverrideInput is the override form. Exactly one of UserID and GroupID is set.
type OverrideInput struct {
	UserID        *int64 `json:"user_id,omitempty"`
	GroupID       *int64 `json:"group_id,omitempty"`
	TimeAvailable *int64 `json:"timeavailable"`
	TimeDue       *int64 `json:"timedue"`
	CutoffDate    *int64 `json:"cutoffdate"`
}

// Validate checks the override against the instance it belongs to.
// Fields equal to the instance value are cleared so they keep following it.
func (in *OverrideInput) Validate(c Checkmark) error {
	verr := &ValidationError{}
	if (in.UserID == nil) == (in.GroupID == nil) {
		verr.Add("target", "exactly one of user_id and group_id is required")
		return verr
	}
	in.TimeAvailable = dropSame(in.TimeAvailable, c.TimeAvailable)
	in.TimeDue = dropSame(in.TimeDue, c.TimeDue)
	in.CutoffDate = dropSame(in.CutoffDate, c.CutoffDate)
	if in.TimeAvailable == nil && in.TimeDue == nil && in.CutoffDate == nil {
		verr.Add("dates", "the override does not change any date")
		return verr
	}
	for name, v := range map[string]*int64{"timeavailable": in.TimeAvailable, "timedue": in.TimeDue, "cutoffdate": in.CutoffDate} {
		if v != nil && *v < 0 {
			verr.Add(name, "must not be negative")
		}
	}
	d := ResolveDates(c, &Override{TimeAvailable: in.TimeAvailable, TimeDue: in.TimeDue, CutoffDate: in.CutoffDate}, nil)
	checkDateOrder(verr, d.TimeAvailable, d.TimeDue, d.CutoffDate)
	return verr.OrNil()
}

func dropSame(v *int64, instance int64) *int64 {
	if v != nil && *v == instance {
		return nil
	}
	return v
}
