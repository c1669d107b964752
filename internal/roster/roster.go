// Package roster builds the submissions table of a checkmark: one row per
// student with check states, grades and effective dates.
package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

type Filter string

const (
	FilterAll                   Filter = "all"
	FilterSubmitted             Filter = "submitted"
	FilterRequireGrading        Filter = "requiregrading"
	FilterNotSubmitted          Filter = "notsubmitted"
	FilterGraded                Filter = "graded"
	FilterSelected              Filter = "selected"
	FilterExtension             Filter = "extension"
	FilterAttendant             Filter = "attendant"
	FilterAbsent                Filter = "absent"
	FilterUnknownAttendance     Filter = "unknownattendance"
	FilterPresentationGraded    Filter = "presentationgraded"
	FilterPresentationNotGraded Filter = "presentationnotgraded"
)

// Columns that can be hidden. Fullname is always shown.
const (
	ColIDNumber             = "idnumber"
	ColEmail                = "email"
	ColGroups               = "groups"
	ColTimeSubmitted        = "timesubmitted"
	ColExamples             = "examples"
	ColChecks               = "checks"
	ColPoints               = "points"
	ColGrade                = "grade"
	ColFeedback             = "feedback"
	ColTimeMarked           = "timemarked"
	ColAttendance           = "attendance"
	ColPresentationGrade    = "presentationgrade"
	ColPresentationFeedback = "presentationfeedback"
	ColOverride             = "override"
)

var allColumns = []string{
	ColIDNumber, ColEmail, ColGroups, ColTimeSubmitted, ColExamples, ColChecks, ColPoints,
	ColGrade, ColFeedback, ColTimeMarked, ColAttendance, ColPresentationGrade,
	ColPresentationFeedback, ColOverride,
}

// Columns returns the columns c can show in table order, minus hidden ones.
func Columns(c checkmark.Checkmark, hidden []string) []string {
	skip := map[string]bool{}
	for _, h := range hidden {
		skip[h] = true
	}
	out := make([]string, 0, len(allColumns))
	for _, col := range allColumns {
		switch {
		case skip[col]:
			continue
		case (col == ColGrade || col == ColPoints) && !c.Graded():
			continue
		case col == ColAttendance && !c.TrackAttendance:
			continue
		case (col == ColPresentationGrade || col == ColPresentationFeedback) && !c.PresentationGrading:
			continue
		}
		out = append(out, col)
	}
	return out
}

// IsColumn reports whether name is a hideable column.
func IsColumn(name string) bool {
	for _, col := range allColumns {
		if col == name {
			return true
		}
	}
	return false
}

// sortable maps sort keys to SQL expressions. NULLs are coalesced so both
// dialects order them the same way.
var sortable = map[string]string{
	"lastname":      "u.lastname",
	"firstname":     "u.firstname",
	"email":         "u.email",
	"idnumber":      "u.idnumber",
	"timesubmitted": "COALESCE(s.timemodified, 0)",
	"grade":         "COALESCE(f.grade, -1)",
	"timemarked":    "COALESCE(f.timemodified, 0)",
	"checks":        "checks",
	"points":        "points",
}

// Query selects and orders the table rows.
type Query struct {
	Filter       Filter   `json:"filter" validate:"omitempty,oneof=all submitted requiregrading notsubmitted graded selected extension attendant absent unknownattendance presentationgraded presentationnotgraded"`
	Selected     []int64  `json:"selected,omitempty"`
	GroupID      int64    `json:"group_id" validate:"gte=0"`
	FirstInitial string   `json:"tifirst" validate:"omitempty,len=1,alphaunicode"`
	LastInitial  string   `json:"tilast" validate:"omitempty,len=1,alphaunicode"`
	Sort         string   `json:"sort" validate:"omitempty,oneof=lastname firstname email idnumber timesubmitted grade timemarked checks points"`
	Desc         bool     `json:"desc"`
	Page         int      `json:"page" validate:"gte=0"`
	PerPage      int      `json:"perpage" validate:"gte=0,lte=5000"` // 0 = all
	Hidden       []string `json:"hidden,omitempty"`
}

var validate = validator.New()

func (q Query) Validate() error {
	verr := &checkmark.ValidationError{}
	if err := validate.Struct(q); err != nil {
		if fes, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fes {
				verr.Add(strings.ToLower(fe.Field()), fe.Tag())
			}
		} else {
			return err
		}
	}
	for _, h := range q.Hidden {
		if !IsColumn(h) {
			verr.Add("hidden", fmt.Sprintf("unknown column %q", h))
		}
	}
	return verr.OrNil()
}

// Row is one line of the table.
type Row struct {
	User                 checkmark.Participant    `json:"user"`
	Groups               []string                 `json:"groups"`
	SubmissionID         *int64                   `json:"submission_id,omitempty"`
	TimeSubmitted        int64                    `json:"timesubmitted"`
	Examples             []checkmark.ExampleState `json:"examples"`
	CheckedCount         int                      `json:"checks"`
	CheckedPoints        int                      `json:"points"`
	Grade                *float64                 `json:"grade"`
	Feedback             string                   `json:"feedback"`
	TimeMarked           int64                    `json:"timemarked"`
	Attendance           *int                     `json:"attendance"`
	PresentationGrade    *float64                 `json:"presentationgrade"`
	PresentationFeedback string                   `json:"presentationfeedback"`
	Dates                checkmark.Dates          `json:"dates"`
	HasOverride          bool                     `json:"hasoverride"`
	Late                 bool                     `json:"late"`
}

func (r Row) Submitted() bool { return r.SubmissionID != nil }

// Page is a loaded slice of the table.
type Page struct {
	Rows    []Row    `json:"rows"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"perpage"`
	Columns []string `json:"columns"`
}

// Builder runs table queries against the checkmark store.
type Builder struct {
	store checkmark.Store
}

func New(store checkmark.Store) *Builder { return &Builder{store: store} }

type rawRow struct {
	ID                   int64    `db:"id"`
	Username             string   `db:"username"`
	FirstName            string   `db:"firstname"`
	LastName             string   `db:"lastname"`
	Email                string   `db:"email"`
	IDNumber             string   `db:"idnumber"`
	SubmissionID         *int64   `db:"submission_id"`
	TimeSubmitted        int64    `db:"timesubmitted"`
	Grade                *float64 `db:"grade"`
	Feedback             string   `db:"feedback"`
	TimeMarked           int64    `db:"timemarked"`
	Attendance           *int     `db:"attendance"`
	PresentationGrade    *float64 `db:"presentationgrade"`
	PresentationFeedback string   `db:"presentationfeedback"`
	Checks               int      `db:"checks"`
	Points               int      `db:"points"`
}

const selectCols = `u.id, u.username, u.firstname, u.lastname, u.email, u.idnumber,
	s.id AS submission_id, COALESCE(s.timemodified, 0) AS timesubmitted,
	f.grade, COALESCE(f.feedback, '') AS feedback, COALESCE(f.timemodified, 0) AS timemarked,
	f.attendance, f.presentationgrade, COALESCE(f.presentationfeedback, '') AS presentationfeedback,
	(SELECT COUNT(*) FROM checkmark_checks ch
		WHERE ch.submission_id = s.id AND ch.state IN (1, 3)) AS checks,
	(SELECT COALESCE(SUM(e.grade), 0) FROM checkmark_checks ch JOIN checkmark_examples e ON e.id = ch.example_id
		WHERE ch.submission_id = s.id AND ch.state IN (1, 3)) AS points`

// from returns the FROM/WHERE part shared by the count and the page query.
func from(c checkmark.Checkmark, q Query) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(` FROM users u
	JOIN enrolments en ON en.user_id = u.id AND en.course_id = ? AND en.role = 'student' AND en.status = 'active'
	LEFT JOIN checkmark_submissions s ON s.user_id = u.id AND s.checkmark_id = ?
	LEFT JOIN checkmark_feedbacks f ON f.user_id = u.id AND f.checkmark_id = ?
	WHERE 1=1`)
	args := []interface{}{c.CourseID, c.ID, c.ID}

	if q.GroupID > 0 {
		sb.WriteString(` AND u.id IN (SELECT user_id FROM group_members WHERE group_id = ?)`)
		args = append(args, q.GroupID)
	}
	// both cases are matched since UPPER and LIKE fold only ASCII on sqlite
	if q.FirstInitial != "" {
		sb.WriteString(` AND (u.firstname LIKE ? OR u.firstname LIKE ?)`)
		args = append(args, strings.ToUpper(q.FirstInitial)+"%", strings.ToLower(q.FirstInitial)+"%")
	}
	if q.LastInitial != "" {
		sb.WriteString(` AND (u.lastname LIKE ? OR u.lastname LIKE ?)`)
		args = append(args, strings.ToUpper(q.LastInitial)+"%", strings.ToLower(q.LastInitial)+"%")
	}

	switch q.Filter {
	case FilterSubmitted:
		sb.WriteString(` AND s.id IS NOT NULL`)
	case FilterRequireGrading:
		sb.WriteString(` AND s.id IS NOT NULL AND (f.id IS NULL OR f.grade IS NULL OR f.timemodified < s.timemodified)`)
	case FilterNotSubmitted:
		sb.WriteString(` AND s.id IS NULL`)
	case FilterGraded:
		sb.WriteString(` AND f.grade IS NOT NULL`)
	case FilterSelected:
		if len(q.Selected) == 0 {
			sb.WriteString(` AND 1=0`)
			break
		}
		sb.WriteString(` AND u.id IN (?)`)
		args = append(args, q.Selected)
	case FilterExtension:
		sb.WriteString(` AND EXISTS (SELECT 1 FROM checkmark_overrides o WHERE o.checkmark_id = ?
			AND (o.user_id = u.id OR o.group_id IN (SELECT group_id FROM group_members WHERE user_id = u.id)))`)
		args = append(args, c.ID)
	case FilterAttendant:
		sb.WriteString(` AND f.attendance = 1`)
	case FilterAbsent:
		sb.WriteString(` AND f.attendance = 0`)
	case FilterUnknownAttendance:
		sb.WriteString(` AND f.attendance IS NULL`)
	case FilterPresentationGraded:
		sb.WriteString(` AND (f.presentationgrade IS NOT NULL OR COALESCE(f.presentationfeedback, '') <> '')`)
	case FilterPresentationNotGraded:
		sb.WriteString(` AND f.presentationgrade IS NULL AND COALESCE(f.presentationfeedback, '') = ''`)
	}
	return sb.String(), args
}

func orderBy(q Query) string {
	key := q.Sort
	if _, ok := sortable[key]; !ok {
		key = "lastname"
	}
	dir := " ASC"
	if q.Desc {
		dir = " DESC"
	}
	return ` ORDER BY ` + sortable[key] + dir + `, u.lastname, u.firstname, u.id`
}

// Count returns the number of rows q matches.
func (b *Builder) Count(ctx context.Context, c checkmark.Checkmark, q Query) (int, error) {
	qx := b.store.Querier()
	where, args := from(c, q)
	query, params, err := db.In(qx, `SELECT COUNT(*)`+where, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := qx.GetContext(ctx, &n, query, params...); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// Load returns one page of the table.
func (b *Builder) Load(ctx context.Context, c checkmark.Checkmark, q Query) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{}, err
	}
	total, err := b.Count(ctx, c, q)
	if err != nil {
		return Page{}, err
	}
	raws, err := b.rows(ctx, c, q, true)
	if err != nil {
		return Page{}, err
	}
	rows, err := b.fill(ctx, c, raws)
	if err != nil {
		return Page{}, err
	}
	return Page{Rows: rows, Total: total, Page: q.Page, PerPage: q.PerPage, Columns: Columns(c, q.Hidden)}, nil
}

func (b *Builder) rows(ctx context.Context, c checkmark.Checkmark, q Query, paged bool) ([]rawRow, error) {
	qx := b.store.Querier()
	where, args := from(c, q)
	raw := `SELECT ` + selectCols + where + orderBy(q)
	if paged && q.PerPage > 0 {
		raw += ` LIMIT ? OFFSET ?`
		args = append(args, q.PerPage, q.Page*q.PerPage)
	}
	query, params, err := db.In(qx, raw, args...)
	if err != nil {
		return nil, err
	}
	var out []rawRow
	if err := qx.SelectContext(ctx, &out, query, params...); err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	return out, nil
}

// fill loads the checks, groups and dates of the page's users.
func (b *Builder) fill(ctx context.Context, c checkmark.Checkmark, raws []rawRow) ([]Row, error) {
	if len(raws) == 0 {
		return []Row{}, nil
	}
	ids := make([]int64, len(raws))
	for i, r := range raws {
		ids[i] = r.ID
	}
	subs, err := b.store.ListSubmissions(ctx, c.ID, ids)
	if err != nil {
		return nil, err
	}
	groups, err := b.groupNames(ctx, c.CourseID, ids)
	if err != nil {
		return nil, err
	}
	resolver := checkmark.NewResolver(b.store)
	out := make([]Row, len(raws))
	for i, r := range raws {
		row := Row{
			User: checkmark.Participant{
				ID: r.ID, Username: r.Username, FirstName: r.FirstName, LastName: r.LastName,
				Email: r.Email, IDNumber: r.IDNumber,
			},
			Groups:               groups[r.ID],
			SubmissionID:         r.SubmissionID,
			TimeSubmitted:        r.TimeSubmitted,
			CheckedCount:         r.Checks,
			CheckedPoints:        r.Points,
			Grade:                r.Grade,
			Feedback:             r.Feedback,
			TimeMarked:           r.TimeMarked,
			Attendance:           r.Attendance,
			PresentationGrade:    r.PresentationGrade,
			PresentationFeedback: r.PresentationFeedback,
		}
		var sub *checkmark.Submission
		if s, ok := subs[r.ID]; ok {
			sub = &s
		}
		row.Examples = checkmark.ExampleStates(c, sub)
		if row.Dates, err = resolver.Dates(ctx, c, r.ID); err != nil {
			return nil, err
		}
		row.HasOverride = row.Dates != checkmark.InstanceDates(c)
		if row.Submitted() {
			row.Late = row.Dates.Late(r.TimeSubmitted)
		}
		out[i] = row
	}
	return out, nil
}

func (b *Builder) groupNames(ctx context.Context, courseID int64, userIDs []int64) (map[int64][]string, error) {
	qx := b.store.Querier()
	query, args, err := db.In(qx, `SELECT gm.user_id, g.name FROM group_members gm
		JOIN course_groups g ON g.id = gm.group_id
		WHERE g.course_id = ? AND gm.user_id IN (?) ORDER BY g.name`, courseID, userIDs)
	if err != nil {
		return nil, err
	}
	var pairs []struct {
		UserID int64  `db:"user_id"`
		Name   string `db:"name"`
	}
	if err := qx.SelectContext(ctx, &pairs, query, args...); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	out := map[int64][]string{}
	for _, p := range pairs {
		out[p.UserID] = append(out[p.UserID], p.Name)
	}
	return out, nil
}

// All returns every matching row, ignoring paging. Exports use it.
func (b *Builder) All(ctx context.Context, c checkmark.Checkmark, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	raws, err := b.rows(ctx, c, q, false)
	if err != nil {
		return nil, err
	}
	return b.fill(ctx, c, raws)
}

// Neighbours returns the users before and after userID in the table order,
// 0 where there is none. The grading page uses it for previous/next.
func (b *Builder) Neighbours(ctx context.Context, c checkmark.Checkmark, q Query, userID int64) (prev, next int64, err error) {
	raws, err := b.rows(ctx, c, q, false)
	if err != nil {
		return 0, 0, err
	}
	for i, r := range raws {
		if r.ID != userID {
			continue
		}
		if i > 0 {
			prev = raws[i-1].ID
		}
		if i+1 < len(raws) {
			next = raws[i+1].ID
		}
		return prev, next, nil
	}
	return 0, 0, fmt.Errorf("user %d is not in the table: %w", userID, checkmark.ErrNotFound)
}
