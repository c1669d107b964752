// Package course is the minimal course host around the checkmark activity:
// users, courses, enrolments and groups.
package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

var validate = validator.New()

func fieldErrors(err error) string {
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err.Error()
	}
	msgs := make([]string, len(fes))
	for i, fe := range fes {
		msgs[i] = strings.ToLower(fe.Field()) + ": " + fe.Tag()
	}
	return strings.Join(msgs, ", ")
}

type Course struct {
	ID        int64  `db:"id" json:"id"`
	FullName  string `db:"fullname" json:"fullname" validate:"required,max=254"`
	ShortName string `db:"shortname" json:"shortname" validate:"max=100"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

type Enrolment struct {
	CourseID int64  `db:"course_id" json:"course_id"`
	UserID   int64  `db:"user_id" json:"user_id" validate:"required,gt=0"`
	Role     string `db:"role" json:"role" validate:"omitempty,oneof=student teacher"`
	Status   string `db:"status" json:"status" validate:"omitempty,oneof=active suspended"`
}

type Group struct {
	ID       int64   `db:"id" json:"id"`
	CourseID int64   `db:"course_id" json:"course_id"`
	Name     string  `db:"name" json:"name" validate:"required,max=254"`
	Members  []int64 `db:"-" json:"members"`
}

type Service struct {
	db   *sqlx.DB
	now  func() time.Time
	cost int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(c int) Option { return func(s *Service) { s.cost = c } }

func New(dbx *sqlx.DB, opts ...Option) *Service {
	s := &Service{db: dbx, now: time.Now, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if err := validate.Struct(c); err != nil {
		verr := &checkmark.ValidationError{}
		verr.Add("course", fieldErrors(err))
		return Course{}, verr
	}
	c.CreatedAt = s.now().Unix()
	err := s.db.GetContext(ctx, &c.ID, s.db.Rebind(`INSERT INTO courses (fullname, shortname, created_at)
		VALUES (?, ?, ?) RETURNING id`), c.FullName, c.ShortName, c.CreatedAt)
	if err != nil {
		return Course{}, fmt.Errorf("insert course: %w", err)
	}
	return c, nil
}

func (s *Service) GetCourse(ctx context.Context, id int64) (Course, error) {
	var c Course
	err := s.db.GetContext(ctx, &c, s.db.Rebind(`SELECT id, fullname, shortname, created_at FROM courses WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("course %d: %w", id, checkmark.ErrNotFound)
	}
	return c, err
}

// Courses lists the courses userID is actively enrolled in; all courses
// when userID is 0.
func (s *Service) Courses(ctx context.Context, userID int64) ([]Course, error) {
	out := []Course{}
	var err error
	if userID == 0 {
		err = s.db.SelectContext(ctx, &out, `SELECT id, fullname, shortname, created_at FROM courses ORDER BY id`)
	} else {
		err = s.db.SelectContext(ctx, &out, s.db.Rebind(`SELECT c.id, c.fullname, c.shortname, c.created_at
			FROM courses c JOIN enrolments e ON e.course_id = c.id
			WHERE e.user_id=? AND e.status='active' ORDER BY c.id`), userID)
	}
	return out, err
}

// Enrol adds or updates enrolments of a course in one transaction.
func (s *Service) Enrol(ctx context.Context, courseID int64, es []Enrolment) (int, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return 0, err
	}
	verr := &checkmark.ValidationError{}
	for i, e := range es {
		if err := validate.Struct(e); err != nil {
			verr.Add(fmt.Sprintf("enrolment %d", i+1), fieldErrors(err))
		}
	}
	if !verr.Empty() {
		return 0, verr
	}
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, e := range es {
			if e.Role == "" {
				e.Role = RoleStudent
			}
			if e.Status == "" {
				e.Status = "active"
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO enrolments (course_id, user_id, role, status)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (course_id, user_id) DO UPDATE SET role=excluded.role, status=excluded.status`),
				courseID, e.UserID, e.Role, e.Status)
			if err != nil {
				return fmt.Errorf("enrol user %d: %w", e.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(es), nil
}

// Unenrol removes the user from the course and its groups.
func (s *Service) Unenrol(ctx context.Context, courseID, userID int64) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM group_members WHERE user_id=?
			AND group_id IN (SELECT id FROM course_groups WHERE course_id=?)`), userID, courseID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM enrolments WHERE course_id=? AND user_id=?`), courseID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("enrolment: %w", checkmark.ErrNotFound)
		}
		return nil
	})
}

// CreateGroup creates a group; every member must be enrolled in the course.
func (s *Service) CreateGroup(ctx context.Context, g Group) (Group, error) {
	if err := validate.Struct(g); err != nil {
		verr := &checkmark.ValidationError{}
		verr.Add("group", fieldErrors(err))
		return Group{}, verr
	}
	if _, err := s.GetCourse(ctx, g.CourseID); err != nil {
		return Group{}, err
	}
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &g.ID, tx.Rebind(`INSERT INTO course_groups (course_id, name) VALUES (?, ?) RETURNING id`),
			g.CourseID, g.Name); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		return addMembers(ctx, tx, g.CourseID, g.ID, g.Members)
	})
	if err != nil {
		return Group{}, err
	}
	if g.Members == nil {
		g.Members = []int64{}
	}
	return g, nil
}

// AddMembers puts enrolled users into an existing group.
func (s *Service) AddMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	var courseID int64
	err := s.db.GetContext(ctx, &courseID, s.db.Rebind(`SELECT course_id FROM course_groups WHERE id=?`), groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %d: %w", groupID, checkmark.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return addMembers(ctx, tx, courseID, groupID, userIDs)
	})
}

func addMembers(ctx context.Context, tx *sqlx.Tx, courseID, groupID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM enrolments WHERE course_id=? AND user_id=?`),
			courseID, uid); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %d is not enrolled in course %d: %w", uid, courseID, checkmark.ErrInvalidArgument)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
			ON CONFLICT (group_id, user_id) DO NOTHING`), groupID, uid); err != nil {
			return err
		}
	}
	return nil
}

// Groups lists the groups of a course with their members.
func (s *Service) Groups(ctx context.Context, courseID int64) ([]Group, error) {
	out := []Group{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(`SELECT id, course_id, name FROM course_groups
		WHERE course_id=? ORDER BY name, id`), courseID); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]int64, len(out))
	for i, g := range out {
		ids[i] = g.ID
	}
	q, args, err := db.In(s.db, `SELECT group_id, user_id FROM group_members WHERE group_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return nil, err
	}
	var ms []struct {
		GroupID int64 `db:"group_id"`
		UserID  int64 `db:"user_id"`
	}
	if err := s.db.SelectContext(ctx, &ms, q, args...); err != nil {
		return nil, err
	}
	byID := map[int64][]int64{}
	for _, m := range ms {
		byID[m.GroupID] = append(byID[m.GroupID], m.UserID)
	}
	for i := range out {
		out[i].Members = byID[out[i].ID]
		if out[i].Members == nil {
			out[i].Members = []int64{}
		}
	}
	return out, nil
}
