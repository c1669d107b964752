// Package calendar maintains the due date events of checkmark instances.
package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

const (
	TypeDue         = "due"
	TypeGradingDue  = "gradingdue"
	TypeOverrideDue = "override_due"
)

type Event struct {
	ID          int64  `db:"id" json:"id"`
	CheckmarkID int64  `db:"checkmark_id" json:"checkmark_id"`
	CourseID    int64  `db:"course_id" json:"course_id"`
	UserID      *int64 `db:"user_id" json:"user_id,omitempty"`
	GroupID     *int64 `db:"group_id" json:"group_id,omitempty"`
	EventType   string `db:"eventtype" json:"eventtype"`
	Name        string `db:"name" json:"name"`
	TimeStart   int64  `db:"timestart" json:"timestart"`
}

const eventCols = `id, checkmark_id, course_id, user_id, group_id, eventtype, name, timestart`

// Calendar implements checkmark.Calendar.
type Calendar struct{}

func New() *Calendar { return &Calendar{} }

// RefreshEvents creates, moves or removes the instance-wide events.
func (cal *Calendar) RefreshEvents(ctx context.Context, q db.Querier, c checkmark.Checkmark) error {
	if err := upsertInstanceEvent(ctx, q, c, TypeDue, c.TimeDue, c.Name+" is due"); err != nil {
		return err
	}
	return upsertInstanceEvent(ctx, q, c, TypeGradingDue, c.GradingDue, c.Name+" is due to be graded")
}

func upsertInstanceEvent(ctx context.Context, q db.Querier, c checkmark.Checkmark, typ string, at int64, name string) error {
	var id int64
	err := q.GetContext(ctx, &id, q.Rebind(
		`SELECT id FROM calendar_events WHERE checkmark_id=? AND eventtype=? AND user_id IS NULL AND group_id IS NULL`),
		c.ID, typ)
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s event: %w", typ, err)
	}
	switch {
	case at == 0 && found:
		_, err = q.ExecContext(ctx, q.Rebind(`DELETE FROM calendar_events WHERE id=?`), id)
	case at == 0:
		return nil
	case found:
		_, err = q.ExecContext(ctx, q.Rebind(`UPDATE calendar_events SET name=?, timestart=?, course_id=? WHERE id=?`),
			name, at, c.CourseID, id)
	default:
		_, err = q.ExecContext(ctx, q.Rebind(`INSERT INTO calendar_events (checkmark_id, course_id, eventtype, name, timestart)
			VALUES (?,?,?,?,?)`), c.ID, c.CourseID, typ, name, at)
	}
	if err != nil {
		return fmt.Errorf("%s event: %w", typ, err)
	}
	return nil
}

// RefreshOverrideEvent keeps one event per override that moves the due date.
func (cal *Calendar) RefreshOverrideEvent(ctx context.Context, q db.Querier, c checkmark.Checkmark, o checkmark.Override) error {
	if err := cal.DeleteOverrideEvent(ctx, q, o); err != nil {
		return err
	}
	if o.TimeDue == nil || *o.TimeDue == 0 {
		return nil
	}
	name := c.Name + " is due"
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO calendar_events (checkmark_id, course_id, user_id, group_id, eventtype, name, timestart)
		VALUES (?,?,?,?,?,?,?)`), o.CheckmarkID, c.CourseID, o.UserID, o.GroupID, TypeOverrideDue, name, *o.TimeDue)
	if err != nil {
		return fmt.Errorf("override event: %w", err)
	}
	return nil
}

func (cal *Calendar) DeleteOverrideEvent(ctx context.Context, q db.Querier, o checkmark.Override) error {
	var err error
	if o.UserID != nil {
		_, err = q.ExecContext(ctx, q.Rebind(`DELETE FROM calendar_events WHERE checkmark_id=? AND eventtype=? AND user_id=?`),
			o.CheckmarkID, TypeOverrideDue, *o.UserID)
	} else if o.GroupID != nil {
		_, err = q.ExecContext(ctx, q.Rebind(`DELETE FROM calendar_events WHERE checkmark_id=? AND eventtype=? AND group_id=?`),
			o.CheckmarkID, TypeOverrideDue, *o.GroupID)
	}
	return err
}

func (cal *Calendar) DeleteEvents(ctx context.Context, q db.Querier, checkmarkID int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM calendar_events WHERE checkmark_id=?`), checkmarkID)
	return err
}

// ListForCheckmark returns all events of one instance ordered by time.
func (cal *Calendar) ListForCheckmark(ctx context.Context, q db.Querier, checkmarkID int64) ([]Event, error) {
	var out []Event
	err := q.SelectContext(ctx, &out, q.Rebind(`SELECT `+eventCols+` FROM calendar_events WHERE checkmark_id=? ORDER BY timestart, id`), checkmarkID)
	return out, err
}

// ForUser lists the events of a course a user sees: instance events,
// override events for the user and the event of the user's group override
// that takes precedence (lowest group priority). A user override event hides
// group ones; any override event hides the instance due event.
func (cal *Calendar) ForUser(ctx context.Context, q db.Querier, courseID, userID int64) ([]Event, error) {
	var all []struct {
		Event
		Priority *int `db:"grouppriority"`
	}
	err := q.SelectContext(ctx, &all, q.Rebind(`SELECT `+eventCols+`,
			(SELECT o.grouppriority FROM checkmark_overrides o
				WHERE o.checkmark_id=calendar_events.checkmark_id AND o.group_id=calendar_events.group_id) AS grouppriority
		FROM calendar_events
		WHERE course_id=? AND (
			(user_id IS NULL AND group_id IS NULL)
			OR user_id=?
			OR group_id IN (SELECT group_id FROM group_members WHERE user_id=?))
		ORDER BY timestart, id`), courseID, userID, userID)
	if err != nil {
		return nil, err
	}
	userOverride := map[int64]bool{}
	// winning group event per instance
	groupEvent := map[int64]int64{}
	groupPrio := map[int64]int{}
	for _, e := range all {
		if e.EventType != TypeOverrideDue {
			continue
		}
		if e.UserID != nil {
			userOverride[e.CheckmarkID] = true
			continue
		}
		p := int(^uint(0) >> 1)
		if e.Priority != nil {
			p = *e.Priority
		}
		cur, seen := groupPrio[e.CheckmarkID]
		if !seen || p < cur || (p == cur && e.ID < groupEvent[e.CheckmarkID]) {
			groupPrio[e.CheckmarkID] = p
			groupEvent[e.CheckmarkID] = e.ID
		}
	}
	out := []Event{}
	for _, e := range all {
		_, grouped := groupEvent[e.CheckmarkID]
		switch {
		case e.EventType == TypeDue && (userOverride[e.CheckmarkID] || grouped):
			continue
		case e.EventType == TypeOverrideDue && e.UserID == nil &&
			(userOverride[e.CheckmarkID] || groupEvent[e.CheckmarkID] != e.ID):
			continue
		}
		out = append(out, e.Event)
	}
	return out, nil
}
