// Package gradebook keeps the grade items and grades of checkmark instances.
package gradebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

// Item numbers of the grade items an instance can own.
const (
	ItemMain         = 0
	ItemAttendance   = 1
	ItemPresentation = 2
)

type Item struct {
	ID          int64   `db:"id" json:"id"`
	CheckmarkID int64   `db:"checkmark_id" json:"checkmark_id"`
	ItemNumber  int     `db:"itemnumber" json:"itemnumber"`
	Name        string  `db:"name" json:"name"`
	GradeMax    float64 `db:"grademax" json:"grademax"`
}

type Grade struct {
	ItemID       int64    `db:"item_id" json:"item_id"`
	UserID       int64    `db:"user_id" json:"user_id"`
	Grade        *float64 `db:"grade" json:"grade"`
	Feedback     string   `db:"feedback" json:"feedback"`
	TimeModified int64    `db:"timemodified" json:"timemodified"`
}

// UserGrade is one grade row with its item, for the user grade report.
type UserGrade struct {
	Item
	Grade *float64 `db:"grade" json:"grade"`
}

// Publisher is told which grade records changed. Implementations must not
// block; the record is read again when it is published.
type Publisher interface {
	Enqueue(checkmarkID, userID int64)
}

// Book implements checkmark.GradeBook on the grade_items and grade_grades tables.
type Book struct {
	pub Publisher
	now func() time.Time
}

func New(pub Publisher) *Book {
	return &Book{pub: pub, now: time.Now}
}

// wantedItems returns the items c should own, keyed by item number.
func wantedItems(c checkmark.Checkmark) map[int]Item {
	out := map[int]Item{}
	if c.Graded() {
		out[ItemMain] = Item{CheckmarkID: c.ID, ItemNumber: ItemMain, Name: c.Name, GradeMax: float64(c.Grade)}
	}
	if c.TrackAttendance && c.AttendanceGradebook {
		out[ItemAttendance] = Item{CheckmarkID: c.ID, ItemNumber: ItemAttendance, Name: c.Name + " (attendance)", GradeMax: 1}
	}
	if c.PresentationGrading && c.PresentationGradebook && c.PresentationGrade > 0 {
		out[ItemPresentation] = Item{CheckmarkID: c.ID, ItemNumber: ItemPresentation, Name: c.Name + " (presentation)", GradeMax: float64(c.PresentationGrade)}
	}
	return out
}

// SyncItems creates, updates and removes grade items to match the settings.
func (b *Book) SyncItems(ctx context.Context, q db.Querier, c checkmark.Checkmark) error {
	current, err := b.Items(ctx, q, c.ID)
	if err != nil {
		return err
	}
	want := wantedItems(c)
	for _, it := range current {
		if _, ok := want[it.ItemNumber]; ok {
			continue
		}
		if err := deleteItem(ctx, q, it.ID); err != nil {
			return err
		}
	}
	for _, it := range want {
		_, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO grade_items (checkmark_id, itemnumber, name, grademax) VALUES (?,?,?,?)
			ON CONFLICT (checkmark_id, itemnumber) DO UPDATE SET name=EXCLUDED.name, grademax=EXCLUDED.grademax`),
			it.CheckmarkID, it.ItemNumber, it.Name, it.GradeMax)
		if err != nil {
			return fmt.Errorf("upsert grade item %d/%d: %w", c.ID, it.ItemNumber, err)
		}
	}
	return nil
}

func deleteItem(ctx context.Context, q db.Querier, id int64) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM grade_grades WHERE item_id=?`), id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM grade_items WHERE id=?`), id)
	return err
}

func (b *Book) Items(ctx context.Context, q db.Querier, checkmarkID int64) ([]Item, error) {
	var out []Item
	err := q.SelectContext(ctx, &out, q.Rebind(
		`SELECT id, checkmark_id, itemnumber, name, grademax FROM grade_items WHERE checkmark_id=? ORDER BY itemnumber`), checkmarkID)
	return out, err
}

func (b *Book) item(ctx context.Context, q db.Querier, checkmarkID int64, number int) (*Item, error) {
	var it Item
	err := q.GetContext(ctx, &it, q.Rebind(
		`SELECT id, checkmark_id, itemnumber, name, grademax FROM grade_items WHERE checkmark_id=? AND itemnumber=?`),
		checkmarkID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &it, err
}

// PushGrades writes feedback values into every item the instance owns.
func (b *Book) PushGrades(ctx context.Context, q db.Querier, c checkmark.Checkmark, fbs []checkmark.Feedback) error {
	values := map[int]func(checkmark.Feedback) (*float64, string){
		ItemMain: func(f checkmark.Feedback) (*float64, string) { return f.Grade, f.Feedback },
		ItemAttendance: func(f checkmark.Feedback) (*float64, string) {
			if f.Attendance == nil {
				return nil, ""
			}
			v := float64(*f.Attendance)
			return &v, ""
		},
		ItemPresentation: func(f checkmark.Feedback) (*float64, string) { return f.PresentationGrade, f.PresentationFeedback },
	}
	for number, value := range values {
		it, err := b.item(ctx, q, c.ID, number)
		if err != nil {
			return err
		}
		if it == nil {
			continue
		}
		grades := make(map[int64]Grade, len(fbs))
		for _, f := range fbs {
			g, fb := value(f)
			grades[f.UserID] = Grade{ItemID: it.ID, UserID: f.UserID, Grade: g, Feedback: fb}
		}
		if err := b.UpdateGrades(ctx, q, c.ID, number, grades); err != nil {
			return err
		}
	}
	return nil
}

// Publish queues graded records for the external publisher. Callers run it
// after the grades are committed.
func (b *Book) Publish(c checkmark.Checkmark, fbs []checkmark.Feedback) {
	if b.pub == nil || !c.Graded() {
		return
	}
	for _, f := range fbs {
		if f.Grade != nil {
			b.pub.Enqueue(c.ID, f.UserID)
		}
	}
}

// UpdateGrades stores grades of one item, keyed by user.
func (b *Book) UpdateGrades(ctx context.Context, q db.Querier, checkmarkID int64, number int, grades map[int64]Grade) error {
	it, err := b.item(ctx, q, checkmarkID, number)
	if err != nil {
		return err
	}
	if it == nil {
		return fmt.Errorf("grade item %d/%d: %w", checkmarkID, number, checkmark.ErrNotFound)
	}
	now := b.now().Unix()
	for uid, g := range grades {
		if g.Grade != nil && (*g.Grade < 0 || *g.Grade > it.GradeMax) {
			return fmt.Errorf("grade %.2f outside 0..%.2f: %w", *g.Grade, it.GradeMax, checkmark.ErrInvalidArgument)
		}
		_, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO grade_grades (item_id, user_id, grade, feedback, timemodified) VALUES (?,?,?,?,?)
			ON CONFLICT (item_id, user_id) DO UPDATE SET grade=EXCLUDED.grade, feedback=EXCLUDED.feedback, timemodified=EXCLUDED.timemodified`),
			it.ID, uid, g.Grade, g.Feedback, now)
		if err != nil {
			return fmt.Errorf("store grade for user %d: %w", uid, err)
		}
	}
	return nil
}

// ResetGrades clears all grades of the instance but keeps its items.
func (b *Book) ResetGrades(ctx context.Context, q db.Querier, checkmarkID int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(
		`DELETE FROM grade_grades WHERE item_id IN (SELECT id FROM grade_items WHERE checkmark_id=?)`), checkmarkID)
	return err
}

func (b *Book) DeleteItems(ctx context.Context, q db.Querier, checkmarkID int64) error {
	if err := b.ResetGrades(ctx, q, checkmarkID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM grade_items WHERE checkmark_id=?`), checkmarkID)
	return err
}

// UserGrades lists a user's grades over all items of one instance.
func (b *Book) UserGrades(ctx context.Context, q db.Querier, checkmarkID, userID int64) ([]UserGrade, error) {
	var out []UserGrade
	err := q.SelectContext(ctx, &out, q.Rebind(`
		SELECT i.id, i.checkmark_id, i.itemnumber, i.name, i.grademax, g.grade
		FROM grade_items i LEFT JOIN grade_grades g ON g.item_id = i.id AND g.user_id=?
		WHERE i.checkmark_id=? ORDER BY i.itemnumber`), userID, checkmarkID)
	return out, err
}

// Regrade re-pushes every feedback of every instance. It stops when budget
// runs out and returns the number of instances done.
func (b *Book) Regrade(ctx context.Context, store checkmark.Store, budget time.Duration) (int, error) {
	cms, err := store.ListCheckmarks(ctx)
	if err != nil {
		return 0, err
	}
	deadline := b.now().Add(budget)
	done := 0
	for _, c := range cms {
		if budget > 0 && b.now().After(deadline) {
			log.Printf("regrade: budget exhausted after %d of %d instances", done, len(cms))
			break
		}
		err := store.InTx(ctx, func(st checkmark.Store) error {
			if err := b.SyncItems(ctx, st.Querier(), c); err != nil {
				return err
			}
			fbs, err := st.ListFeedbacks(ctx, c.ID)
			if err != nil {
				return err
			}
			if err := b.PushGrades(ctx, st.Querier(), c, fbs); err != nil {
				return err
			}
			st.AfterCommit(func() { b.Publish(c, fbs) })
			return nil
		})
		if err != nil {
			return done, fmt.Errorf("regrade checkmark %d: %w", c.ID, err)
		}
		done++
	}
	return done, nil
}
