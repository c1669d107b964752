package checkmark_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/calendar"
	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/gradebook"
	"github.com/mind-engage/checkmark/internal/grading"
	syncx "github.com/mind-engage/checkmark/internal/sync"
)

const (
	teacherID = 1
	adaID     = 10
	bobID     = 11
	cyID      = 12
	courseID  = 1
	groupA    = 5
)

type fixture struct {
	t    *testing.T
	ctx  context.Context
	dbx  *sqlx.DB
	svc  *checkmark.Service
	book *gradebook.Book
	cal  *calendar.Calendar
	now  int64
}

type observed struct {
	submitted int
	graded    map[string]int
}

func (o *observed) Submitted(checkmark.Checkmark, bool) { o.submitted++ }
func (o *observed) Graded(_ checkmark.Checkmark, source string, _ *float64) {
	o.graded[source]++
}

func newFixture(t *testing.T, opts ...checkmark.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	for _, s := range []string{
		`INSERT INTO users (id, username, firstname, lastname, email, role, created_at) VALUES
			(1, 'teach', 'Tea', 'Cher', 't@example.org', 'teacher', 0),
			(10, 'ada', 'Ada', 'Lovelace', 'ada@example.org', 'student', 0),
			(11, 'bob', 'Bob', 'Babbage', 'bob@example.org', 'student', 0),
			(12, 'cy', 'Cy', 'Curie', 'cy@example.org', 'student', 0)`,
		`INSERT INTO courses (id, fullname, shortname, created_at) VALUES (1, 'Algebra', 'ALG', 0), (2, 'Other', 'OTH', 0)`,
		`INSERT INTO enrolments (course_id, user_id, role) VALUES (1, 1, 'teacher'), (1, 10, 'student'), (1, 11, 'student'), (1, 12, 'student')`,
		`INSERT INTO course_groups (id, course_id, name) VALUES (5, 1, 'A'), (6, 1, 'B'), (9, 2, 'Foreign')`,
		`INSERT INTO group_members (group_id, user_id) VALUES (5, 10), (5, 11), (6, 10)`,
	} {
		_, err := dbx.Exec(s)
		require.NoError(t, err)
	}
	f := &fixture{t: t, ctx: ctx, dbx: dbx, book: gradebook.New(nil), cal: calendar.New(), now: 1_700_000_000}
	all := append([]checkmark.Option{
		checkmark.WithGradeBook(f.book),
		checkmark.WithCalendar(f.cal),
		checkmark.WithEventLog(syncx.NewEventRepo(dbx, "test")),
		checkmark.WithClock(func() time.Time { return time.Unix(f.now, 0) }),
	}, opts...)
	f.svc = checkmark.NewService(checkmark.NewSQLStore(dbx), all...)
	return f
}

func basicSettings() checkmark.Settings {
	return checkmark.Settings{Name: "Sheet 1", Grade: 10, ExampleStart: 1, ExampleCount: 5, ExamplePrefix: "Ex. "}
}

func (f *fixture) add(set checkmark.Settings) checkmark.Checkmark {
	f.t.Helper()
	c, err := f.svc.AddInstance(f.ctx, courseID, set)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) count(query string, args ...interface{}) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.dbx.Get(&n, query, args...))
	return n
}

func ids(c checkmark.Checkmark, idx ...int) []int64 {
	out := make([]int64, len(idx))
	for i, x := range idx {
		out[i] = c.Examples[x].ID
	}
	return out
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func iptr(v int) *int        { return &v }

func TestAddInstanceCreatesExamplesItemsAndEvents(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 3600
	c := f.add(set)

	require.Len(t, c.Examples, 5)
	assert.Equal(t, "Ex. 1", c.Examples[0].Label())
	assert.Equal(t, 2, c.Examples[4].Grade)

	items, err := f.book.Items(f.ctx, f.dbx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10.0, items[0].GradeMax)

	evs, err := f.cal.ListForCheckmark(f.ctx, f.dbx, c.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, calendar.TypeDue, evs[0].EventType)

	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM event_log WHERE typ='checkmark_created'`))
}

func TestAddInstanceRejectsIndivisibleGrade(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.Grade = 11
	_, err := f.svc.AddInstance(f.ctx, courseID, set)
	require.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM checkmarks`))
}

func TestUpdateInstanceKeepsExamplesByPosition(t *testing.T) {
	f := newFixture(t)
	c := f.add(basicSettings())
	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 4))
	require.NoError(t, err)

	set := basicSettings()
	set.FlexibleNaming = true
	set.ExampleNames = "a,b,c"
	set.ExampleGrades = "5,3,2"
	upd, err := f.svc.UpdateInstance(f.ctx, c.ID, set)
	require.NoError(t, err)
	require.Len(t, upd.Examples, 3)
	assert.Equal(t, c.Examples[0].ID, upd.Examples[0].ID, "existing rows are reused")
	assert.Equal(t, "a", upd.Examples[0].Name)
	assert.Equal(t, 5, upd.Examples[0].Grade)

	sub, err := f.svc.GetSubmission(f.ctx, c.ID, adaID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Len(t, sub.Checks, 3, "checks of removed examples are gone")
	st, ok := sub.StateOf(upd.Examples[0].ID)
	assert.True(t, ok)
	assert.True(t, st.IsChecked())
}

func TestDeleteInstanceRemovesEverything(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 100
	c := f.add(set)
	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 1))
	require.NoError(t, err)
	_, err = f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(2)})
	require.NoError(t, err)
	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(bobID), TimeDue: i64(f.now + 500)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteInstance(f.ctx, c.ID))
	for _, table := range []string{
		"checkmarks", "checkmark_examples", "checkmark_submissions", "checkmark_checks",
		"checkmark_feedbacks", "checkmark_overrides", "grade_items", "grade_grades", "calendar_events",
	} {
		assert.Zero(t, f.count(`SELECT COUNT(*) FROM `+table), table)
	}
	_, err = f.svc.Get(f.ctx, c.ID)
	assert.ErrorIs(t, err, checkmark.ErrNotFound)
}

func TestSubmitStoresEveryExample(t *testing.T) {
	obs := &observed{graded: map[string]int{}}
	f := newFixture(t, checkmark.WithObserver(obs))
	c := f.add(basicSettings())

	sub, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 2))
	require.NoError(t, err)
	require.Len(t, sub.Checks, 5)
	for i, e := range c.Examples {
		st, ok := sub.StateOf(e.ID)
		require.True(t, ok)
		assert.Equal(t, i == 0 || i == 2, st.IsChecked(), e.Name)
	}
	assert.Equal(t, 1, obs.submitted)

	_, err = f.svc.Submit(f.ctx, c.ID, adaID, []int64{99999})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	_, err = f.svc.Submit(f.ctx, c.ID, teacherID, nil)
	assert.ErrorIs(t, err, checkmark.ErrForbidden)
}

func TestSubmitHonoursDatesAndOverrides(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeAvailable = f.now + 100
	c := f.add(set)

	_, err := f.svc.Submit(f.ctx, c.ID, adaID, nil)
	assert.ErrorIs(t, err, checkmark.ErrNotOpen)

	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(adaID), TimeAvailable: i64(f.now - 100)})
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, c.ID, adaID, nil)
	assert.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, c.ID, bobID, nil)
	assert.ErrorIs(t, err, checkmark.ErrNotOpen)
}

func TestSubmitAfterGradingNeedsResubmit(t *testing.T) {
	f := newFixture(t)
	c := f.add(basicSettings())
	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0))
	require.NoError(t, err)
	_, err = f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(2)})
	require.NoError(t, err)

	_, err = f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 1))
	assert.ErrorIs(t, err, checkmark.ErrAlreadyGraded)

	set := basicSettings()
	set.Resubmit = true
	_, err = f.svc.UpdateInstance(f.ctx, c.ID, set)
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 1))
	assert.NoError(t, err)
}

func TestOverwrittenChecksSurviveSubmission(t *testing.T) {
	f := newFixture(t)
	c := f.add(basicSettings())
	_, err := f.svc.OverwriteChecks(f.ctx, c.ID, adaID, teacherID, map[int64]bool{c.Examples[0].ID: false, c.Examples[1].ID: true})
	require.NoError(t, err)

	sub, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0))
	require.NoError(t, err)
	st0, _ := sub.StateOf(c.Examples[0].ID)
	st1, _ := sub.StateOf(c.Examples[1].ID)
	assert.Equal(t, checkmark.UncheckedOverwritten, st0)
	assert.Equal(t, checkmark.CheckedOverwritten, st1)
}

func TestSubmitExactRequiresTheWholeSet(t *testing.T) {
	f := newFixture(t)
	c := f.add(basicSettings())
	list := make([]checkmark.ExampleCheck, 0, len(c.Examples))
	for i, e := range c.Examples {
		list = append(list, checkmark.ExampleCheck{ID: e.ID, Checked: i%2 == 0})
	}
	_, err := f.svc.SubmitExact(f.ctx, c.ID, adaID, list[:4])
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)

	dup := append(append([]checkmark.ExampleCheck{}, list[:4]...), list[0])
	_, err = f.svc.SubmitExact(f.ctx, c.ID, adaID, dup)
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)

	sub, err := f.svc.SubmitExact(f.ctx, c.ID, adaID, list)
	require.NoError(t, err)
	v, err := f.svc.View(f.ctx, c.ID, adaID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.CheckedCount)
	assert.Equal(t, 6, v.CheckedPoints)
	assert.Equal(t, sub.ID, v.Submission.ID)
}

func TestGradeAppliesAttendanceLinkAndPushes(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TrackAttendance, set.AttendanceGradeLink, set.AttendanceGradebook = true, true, true
	c := f.add(set)

	fb, err := f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(8), Attendance: iptr(checkmark.Absent)})
	require.NoError(t, err)
	require.NotNil(t, fb.Grade)
	assert.Equal(t, 0.0, *fb.Grade)
	assert.False(t, fb.Mailed)

	ug, err := f.book.UserGrades(f.ctx, f.dbx, c.ID, adaID)
	require.NoError(t, err)
	require.Len(t, ug, 2)
	assert.Equal(t, 0.0, *ug[0].Grade)
	assert.Equal(t, 0.0, *ug[1].Grade)

	_, err = f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(11)})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	_, err = f.svc.Grade(f.ctx, c.ID, teacherID, teacherID, checkmark.GradeInput{Grade: f64(1)})
	assert.ErrorIs(t, err, checkmark.ErrNotFound)
}

type keyPublisher struct{ keys [][2]int64 }

func (p *keyPublisher) Enqueue(cm, user int64) { p.keys = append(p.keys, [2]int64{cm, user}) }

// failingLog refuses one event type so the surrounding transaction rolls back.
type failingLog struct {
	checkmark.EventLog
	typ string
}

func (l failingLog) Record(ctx context.Context, q db.Querier, typ, key string, payload any) error {
	if typ == l.typ {
		return errors.New("event log unavailable")
	}
	return l.EventLog.Record(ctx, q, typ, key, payload)
}

func TestGradePublishesOnlyCommittedGrades(t *testing.T) {
	pub := &keyPublisher{}
	f := newFixture(t)
	book := gradebook.New(pub)
	f.book = book
	events := failingLog{EventLog: syncx.NewEventRepo(f.dbx, "test"), typ: "grade_updated"}
	f.svc = checkmark.NewService(checkmark.NewSQLStore(f.dbx), checkmark.WithGradeBook(book), checkmark.WithEventLog(events))
	c := f.add(basicSettings())

	_, err := f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(4)})
	require.Error(t, err)
	assert.Empty(t, pub.keys)
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM grade_grades`))

	f.svc = checkmark.NewService(checkmark.NewSQLStore(f.dbx), checkmark.WithGradeBook(book))
	_, err = f.svc.QuickGrade(f.ctx, c.ID, teacherID, map[int64]checkmark.GradeInput{
		adaID: {Grade: f64(4)},
		bobID: {},
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{c.ID, adaID}}, pub.keys, "ungraded rows are not published")
}

func TestQuickGradeValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	c := f.add(basicSettings())
	_, err := f.svc.QuickGrade(f.ctx, c.ID, teacherID, map[int64]checkmark.GradeInput{
		adaID: {Grade: f64(4)},
		bobID: {Grade: f64(40)},
	})
	require.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM checkmark_feedbacks`))

	n, err := f.svc.QuickGrade(f.ctx, c.ID, teacherID, map[int64]checkmark.GradeInput{
		adaID: {Grade: f64(4)},
		bobID: {Grade: f64(6), Feedback: "ok"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.count(`SELECT COUNT(*) FROM checkmark_feedbacks`))
}

func TestAutogradeSumsCheckedPoints(t *testing.T) {
	obs := &observed{graded: map[string]int{}}
	f := newFixture(t, checkmark.WithObserver(obs))
	set := basicSettings()
	set.FlexibleNaming = true
	set.ExampleNames = "a,b,c"
	set.ExampleGrades = "5,3,2"
	c := f.add(set)

	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 2))
	require.NoError(t, err)
	_, err = f.svc.OverwriteChecks(f.ctx, c.ID, bobID, teacherID, map[int64]bool{c.Examples[1].ID: true})
	require.NoError(t, err)
	_, err = f.svc.Grade(f.ctx, c.ID, cyID, teacherID, checkmark.GradeInput{Grade: f64(9), Feedback: "keep me"})
	require.NoError(t, err)

	n, err := f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, obs.graded["auto"])

	grade := func(uid int64) float64 {
		var g float64
		require.NoError(t, f.dbx.Get(&g, `SELECT grade FROM checkmark_feedbacks WHERE checkmark_id=? AND user_id=?`, c.ID, uid))
		return g
	}
	assert.Equal(t, 7.0, grade(adaID))
	assert.Equal(t, 3.0, grade(bobID), "overwritten checked states count")
	assert.Equal(t, 0.0, grade(cyID), "no submission grades 0")

	var text string
	require.NoError(t, f.dbx.Get(&text, `SELECT feedback FROM checkmark_feedbacks WHERE user_id=?`, cyID))
	assert.Equal(t, "keep me", text)
}

func TestAutogradeUsesConfiguredStrategy(t *testing.T) {
	f := newFixture(t, checkmark.WithGrader(grading.NewDefaultGrader(grading.WithStrategy("proportion"))))
	set := basicSettings()
	set.FlexibleNaming = true
	set.ExampleNames = "a,b,c"
	set.ExampleGrades = "5,3,2"
	c := f.add(set)

	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 2))
	require.NoError(t, err)
	_, err = f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeAll, nil)
	require.NoError(t, err)

	var g float64
	require.NoError(t, f.dbx.Get(&g, `SELECT grade FROM checkmark_feedbacks WHERE checkmark_id=? AND user_id=?`, c.ID, adaID))
	assert.InDelta(t, 6.67, g, 1e-9, "two of three examples ignore their points")
}

func TestAutogradeRequiredAndSelected(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.Resubmit = true
	c := f.add(set)
	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0))
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, c.ID, bobID, ids(c, 0, 1))
	require.NoError(t, err)
	_, err = f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(2)})
	require.NoError(t, err)

	n, err := f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeRequired, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only bob needs grading")

	f.now += 60
	_, err = f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0, 1, 2))
	require.NoError(t, err)
	n, err = f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeRequired, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "ada changed her submission after grading")

	n, err = f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeSelected, []int64{cyID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.Autograde(f.ctx, c.ID, teacherID, "everyone", nil)
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
}

func TestAutogradeDisabledWithoutGrade(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.Grade = 0
	c := f.add(set)
	_, err := f.svc.Autograde(f.ctx, c.ID, teacherID, checkmark.AutogradeAll, nil)
	assert.ErrorIs(t, err, checkmark.ErrGradingDisabled)
}

func TestGroupOverridePriorities(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 1000
	c := f.add(set)

	a, err := f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{GroupID: i64(groupA), TimeDue: i64(f.now + 2000)})
	require.NoError(t, err)
	b, err := f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{GroupID: i64(6), TimeDue: i64(f.now + 3000)})
	require.NoError(t, err)
	assert.Equal(t, 1, *a.GroupPriority)
	assert.Equal(t, 2, *b.GroupPriority)

	d, err := f.svc.Resolver().Dates(f.ctx, c, adaID)
	require.NoError(t, err)
	assert.Equal(t, f.now+2000, d.TimeDue, "ada is in both groups; priority 1 wins")

	list, err := f.svc.MoveGroupOverride(f.ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	d, err = f.svc.Resolver().Dates(f.ctx, c, adaID)
	require.NoError(t, err)
	assert.Equal(t, f.now+3000, d.TimeDue)

	list, err = f.svc.MoveGroupOverride(f.ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, b.ID, list[0].ID, "moving the first one up changes nothing")

	require.NoError(t, f.svc.DeleteOverride(f.ctx, b.ID))
	groups, err := f.svc.ListOverrides(f.ctx, c.ID, true)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, *groups[0].GroupPriority, "priorities are compacted")

	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{GroupID: i64(groupA), TimeDue: i64(f.now + 5)})
	assert.ErrorIs(t, err, checkmark.ErrConflict)
	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{GroupID: i64(9), TimeDue: i64(f.now + 5)})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument, "group of another course")
}

func TestOverrideMustChangeSomething(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 1000
	c := f.add(set)
	_, err := f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(adaID), TimeDue: i64(f.now + 1000)})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(adaID), CutoffDate: i64(f.now + 10)})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument, "cut-off before due")
}

func TestExtendReportsPerTarget(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 1000
	c := f.add(set)
	_, err := f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(adaID), TimeAvailable: i64(f.now - 10)})
	require.NoError(t, err)

	res, err := f.svc.Extend(f.ctx, c.ID, teacherID, checkmark.ExtendRequest{
		Type: "users", IDs: []int64{adaID, bobID, teacherID}, TimeDue: i64(f.now + 5000),
	})
	require.NoError(t, err)
	assert.Len(t, res.Saved, 2)
	assert.Contains(t, res.Errors, int64(teacherID))

	d, err := f.svc.Resolver().Dates(f.ctx, c, adaID)
	require.NoError(t, err)
	assert.Equal(t, f.now-10, d.TimeAvailable, "existing override values are kept")
	assert.Equal(t, f.now+5000, d.TimeDue)

	_, err = f.svc.Extend(f.ctx, c.ID, teacherID, checkmark.ExtendRequest{Type: "cohorts", IDs: []int64{1}})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
}

func TestResetCourse(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now + 1000
	c := f.add(set)
	_, err := f.svc.Submit(f.ctx, c.ID, adaID, ids(c, 0))
	require.NoError(t, err)
	_, err = f.svc.Grade(f.ctx, c.ID, adaID, teacherID, checkmark.GradeInput{Grade: f64(2)})
	require.NoError(t, err)
	_, err = f.svc.CreateOverride(f.ctx, c.ID, teacherID, checkmark.OverrideInput{UserID: i64(bobID), TimeDue: i64(f.now + 2000)})
	require.NoError(t, err)

	report, err := f.svc.ResetCourse(f.ctx, courseID, checkmark.ResetOptions{Submissions: true, Overrides: true, ShiftDates: 86400})
	require.NoError(t, err)
	assert.Len(t, report, 3)
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM checkmark_submissions`))
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM checkmark_feedbacks`))
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM checkmark_overrides`))
	assert.Zero(t, f.count(`SELECT COUNT(*) FROM grade_grades`))
	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM grade_items`))

	got, err := f.svc.Get(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now+1000+86400, got.TimeDue)
	assert.Zero(t, got.TimeAvailable, "unset dates stay unset")
}

func TestViewCanSubmit(t *testing.T) {
	f := newFixture(t)
	set := basicSettings()
	set.TimeDue = f.now - 10
	c := f.add(set)

	v, err := f.svc.View(f.ctx, c.ID, adaID)
	require.NoError(t, err)
	assert.True(t, v.Open)
	assert.True(t, v.Late)
	assert.True(t, v.CanSubmit)
	for _, es := range v.Examples {
		assert.False(t, es.Known)
	}

	v, err = f.svc.View(f.ctx, c.ID, teacherID)
	require.NoError(t, err)
	assert.False(t, v.CanSubmit)
}
