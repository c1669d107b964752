package roster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func iptr(v int) *int        { return &v }

type world struct {
	b   *Builder
	svc *checkmark.Service
	c   checkmark.Checkmark
}

// setup: Ada submitted two examples and was graded, Bob submitted one and has
// an override, Cy did nothing. Ada and Bob are in group 5.
func setup(t *testing.T) world {
	t.Helper()
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	for _, s := range []string{
		`INSERT INTO users (id, username, firstname, lastname, email, idnumber, created_at) VALUES
			(1, 'teach', 'Tea', 'Cher', 't@example.org', '', 0),
			(10, 'ada', 'Ada', 'Lovelace', 'ada@example.org', 'S3', 0),
			(11, 'bob', 'Bob', 'Babbage', 'bob@example.org', 'S1', 0),
			(12, 'cy', 'Cy', 'Curie', 'cy@example.org', 'S2', 0)`,
		`INSERT INTO courses (id, fullname, created_at) VALUES (1, 'Algebra', 0)`,
		`INSERT INTO enrolments (course_id, user_id, role) VALUES (1, 1, 'teacher'), (1, 10, 'student'), (1, 11, 'student'), (1, 12, 'student')`,
		`INSERT INTO course_groups (id, course_id, name) VALUES (5, 1, 'Red')`,
		`INSERT INTO group_members (group_id, user_id) VALUES (5, 10), (5, 11)`,
	} {
		_, err := dbx.Exec(s)
		require.NoError(t, err)
	}
	now := int64(1_700_000_000)
	store := checkmark.NewSQLStore(dbx)
	svc := checkmark.NewService(store, checkmark.WithClock(func() time.Time { return time.Unix(now, 0) }))
	c, err := svc.AddInstance(ctx, 1, checkmark.Settings{
		Name: "Sheet", Grade: 10, ExampleStart: 1, ExampleCount: 5, TimeDue: now + 100,
		TrackAttendance: true,
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, c.ID, 10, []int64{c.Examples[0].ID, c.Examples[1].ID})
	require.NoError(t, err)
	_, err = svc.Grade(ctx, c.ID, 10, 1, checkmark.GradeInput{Grade: f64(4), Attendance: iptr(checkmark.Present)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, c.ID, 11, []int64{c.Examples[2].ID})
	require.NoError(t, err)
	_, err = svc.CreateOverride(ctx, c.ID, 1, checkmark.OverrideInput{UserID: i64(11), TimeDue: i64(now + 5000)})
	require.NoError(t, err)
	return world{b: New(store), svc: svc, c: c}
}

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.User.Username
	}
	return out
}

func TestLoadDefaultOrderAndRowContents(t *testing.T) {
	w := setup(t)
	p, err := w.b.Load(context.Background(), w.c, Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, []string{"bob", "cy", "ada"}, names(p.Rows), "lastname order")

	ada := p.Rows[2]
	require.True(t, ada.Submitted())
	assert.Equal(t, 2, ada.CheckedCount)
	assert.Equal(t, 4, ada.CheckedPoints)
	require.NotNil(t, ada.Grade)
	assert.Equal(t, 4.0, *ada.Grade)
	assert.Equal(t, []string{"Red"}, ada.Groups)
	require.Len(t, ada.Examples, 5)
	assert.True(t, ada.Examples[0].Checked)
	assert.True(t, ada.Examples[4].Known)

	bob := p.Rows[0]
	assert.True(t, bob.HasOverride)
	assert.Equal(t, w.c.TimeDue+4900, bob.Dates.TimeDue)
	cy := p.Rows[1]
	assert.False(t, cy.Submitted())
	assert.False(t, cy.Examples[0].Known)
	assert.Empty(t, cy.Groups)

	assert.NotContains(t, p.Columns, ColPresentationGrade)
	assert.Contains(t, p.Columns, ColAttendance)
}

func TestFilters(t *testing.T) {
	w := setup(t)
	ctx := context.Background()
	cases := []struct {
		q    Query
		want []string
	}{
		{Query{Filter: FilterSubmitted}, []string{"bob", "ada"}},
		{Query{Filter: FilterNotSubmitted}, []string{"cy"}},
		{Query{Filter: FilterRequireGrading}, []string{"bob"}},
		{Query{Filter: FilterGraded}, []string{"ada"}},
		{Query{Filter: FilterSelected, Selected: []int64{12, 10}}, []string{"cy", "ada"}},
		{Query{Filter: FilterSelected}, []string{}},
		{Query{Filter: FilterExtension}, []string{"bob"}},
		{Query{Filter: FilterAttendant}, []string{"ada"}},
		{Query{Filter: FilterAbsent}, []string{}},
		{Query{Filter: FilterUnknownAttendance}, []string{"bob", "cy"}},
		{Query{GroupID: 5}, []string{"bob", "ada"}},
		{Query{FirstInitial: "c"}, []string{"cy"}},
		{Query{LastInitial: "L"}, []string{"ada"}},
	}
	for _, tc := range cases {
		p, err := w.b.Load(ctx, w.c, tc.q)
		require.NoError(t, err)
		assert.Equal(t, tc.want, names(p.Rows), "%+v", tc.q)
		assert.Equal(t, len(tc.want), p.Total, "%+v", tc.q)
	}
}

func TestSortAndPaging(t *testing.T) {
	w := setup(t)
	ctx := context.Background()

	p, err := w.b.Load(ctx, w.c, Query{Sort: "points", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "bob", "cy"}, names(p.Rows))

	p, err = w.b.Load(ctx, w.c, Query{Sort: "idnumber"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "cy", "ada"}, names(p.Rows))

	p, err = w.b.Load(ctx, w.c, Query{Sort: "grade", Desc: true, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, []string{"ada", "bob"}, names(p.Rows))

	p, err = w.b.Load(ctx, w.c, Query{Sort: "grade", Desc: true, PerPage: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"cy"}, names(p.Rows))
}

func TestInitialsAcceptUnicodeLetters(t *testing.T) {
	w := setup(t)
	ctx := context.Background()
	_, err := w.svc.Store().Querier().ExecContext(ctx, `UPDATE users SET lastname = 'Ørsted' WHERE id = 12`)
	require.NoError(t, err)
	for _, initial := range []string{"Ø", "ø"} {
		p, err := w.b.Load(ctx, w.c, Query{LastInitial: initial})
		require.NoError(t, err, initial)
		assert.Equal(t, []string{"cy"}, names(p.Rows), initial)
	}
	p, err := w.b.Load(ctx, w.c, Query{LastInitial: "Ä"})
	require.NoError(t, err)
	assert.Empty(t, p.Rows)
}

func TestQueryValidation(t *testing.T) {
	w := setup(t)
	for _, q := range []Query{
		{Sort: "u.password_hash"},
		{Filter: "everything"},
		{FirstInitial: "ab"},
		{LastInitial: "Äb"},
		{LastInitial: "1"},
		{Hidden: []string{"nope"}},
		{PerPage: -1},
	} {
		_, err := w.b.Load(context.Background(), w.c, q)
		assert.ErrorIs(t, err, checkmark.ErrInvalidArgument, "%+v", q)
	}
}

func TestNeighbours(t *testing.T) {
	w := setup(t)
	prev, next, err := w.b.Neighbours(context.Background(), w.c, Query{}, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(11), prev)
	assert.Equal(t, int64(10), next)

	_, _, err = w.b.Neighbours(context.Background(), w.c, Query{}, 1)
	assert.ErrorIs(t, err, checkmark.ErrNotFound)
}

func TestColumnsHideAndDisable(t *testing.T) {
	c := checkmark.Checkmark{Grade: 0}
	cols := Columns(c, []string{ColEmail})
	assert.NotContains(t, cols, ColEmail)
	assert.NotContains(t, cols, ColGrade)
	assert.NotContains(t, cols, ColAttendance)
	assert.Contains(t, cols, ColExamples)
}
