package checkmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mind-engage/checkmark/internal/db"
)

// SQLStore implements Store on sqlx. Queries use '?' and are rebound for
// the active driver.
type SQLStore struct {
	db    *sqlx.DB
	q     db.Querier
	tx    bool
	hooks *[]func()
}

func NewSQLStore(dbx *sqlx.DB) *SQLStore {
	return &SQLStore{db: dbx, q: dbx}
}

func (s *SQLStore) Querier() db.Querier { return s.q }

func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx {
		return fn(s)
	}
	var hooks []func()
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&SQLStore{db: s.db, q: tx, tx: true, hooks: &hooks})
	})
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h()
	}
	return nil
}

// AfterCommit queues f until the enclosing transaction commits. Outside a
// transaction f runs at once. Hooks of a rolled back transaction are dropped.
func (s *SQLStore) AfterCommit(f func()) {
	if !s.tx {
		f()
		return
	}
	*s.hooks = append(*s.hooks, f)
}

func (s *SQLStore) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.GetContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *SQLStore) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.SelectContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

// insertReturning runs a named INSERT ... RETURNING id.
func (s *SQLStore) insertReturning(ctx context.Context, query string, arg interface{}) (int64, error) {
	bound, args, err := s.q.BindNamed(query, arg)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.q.GetContext(ctx, &id, bound, args...); err != nil {
		return 0, err
	}
	return id, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// ---- instances ----

const checkmarkCols = `id, course_id, name, intro, alwaysshowdescription, resubmit,
	timeavailable, timedue, cutoffdate, gradingdue, emailteachers, grade,
	flexiblenaming, exampleprefix, examplestart, examplecount,
	trackattendance, attendancegradelink, attendancegradebook,
	presentationgrading, presentationgrade, presentationgradebook,
	timecreated, timemodified`

func (s *SQLStore) InsertCheckmark(ctx context.Context, c *Checkmark) error {
	now := time.Now().Unix()
	if c.TimeCreated == 0 {
		c.TimeCreated = now
	}
	c.TimeModified = now
	id, err := s.insertReturning(ctx, `
		INSERT INTO checkmarks (course_id, name, intro, alwaysshowdescription, resubmit,
			timeavailable, timedue, cutoffdate, gradingdue, emailteachers, grade,
			flexiblenaming, exampleprefix, examplestart, examplecount,
			trackattendance, attendancegradelink, attendancegradebook,
			presentationgrading, presentationgrade, presentationgradebook,
			timecreated, timemodified)
		VALUES (:course_id, :name, :intro, :alwaysshowdescription, :resubmit,
			:timeavailable, :timedue, :cutoffdate, :gradingdue, :emailteachers, :grade,
			:flexiblenaming, :exampleprefix, :examplestart, :examplecount,
			:trackattendance, :attendancegradelink, :attendancegradebook,
			:presentationgrading, :presentationgrade, :presentationgradebook,
			:timecreated, :timemodified)
		RETURNING id`, c)
	if err != nil {
		return fmt.Errorf("insert checkmark: %w", err)
	}
	c.ID = id
	return nil
}

func (s *SQLStore) UpdateCheckmark(ctx context.Context, c *Checkmark) error {
	c.TimeModified = time.Now().Unix()
	res, err := s.q.NamedExecContext(ctx, `
		UPDATE checkmarks SET name=:name, intro=:intro, alwaysshowdescription=:alwaysshowdescription,
			resubmit=:resubmit, timeavailable=:timeavailable, timedue=:timedue, cutoffdate=:cutoffdate,
			gradingdue=:gradingdue, emailteachers=:emailteachers, grade=:grade,
			flexiblenaming=:flexiblenaming, exampleprefix=:exampleprefix, examplestart=:examplestart,
			examplecount=:examplecount, trackattendance=:trackattendance,
			attendancegradelink=:attendancegradelink, attendancegradebook=:attendancegradebook,
			presentationgrading=:presentationgrading, presentationgrade=:presentationgrade,
			presentationgradebook=:presentationgradebook, timemodified=:timemodified
		WHERE id=:id`, c)
	if err != nil {
		return fmt.Errorf("update checkmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("checkmark %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) GetCheckmark(ctx context.Context, id int64) (Checkmark, error) {
	var c Checkmark
	if err := s.get(ctx, &c, `SELECT `+checkmarkCols+` FROM checkmarks WHERE id=?`, id); err != nil {
		return Checkmark{}, notFound(err, fmt.Sprintf("checkmark %d", id))
	}
	ex, err := s.ListExamples(ctx, id)
	if err != nil {
		return Checkmark{}, err
	}
	for i := range ex {
		ex[i].Prefix = c.ExamplePrefix
	}
	c.Examples = ex
	return c, nil
}

func (s *SQLStore) ListCheckmarksByCourse(ctx context.Context, courseID int64) ([]Checkmark, error) {
	var out []Checkmark
	if err := s.sel(ctx, &out, `SELECT `+checkmarkCols+` FROM checkmarks WHERE course_id=? ORDER BY id`, courseID); err != nil {
		return nil, fmt.Errorf("list checkmarks: %w", err)
	}
	return s.withExamples(ctx, out)
}

func (s *SQLStore) ListCheckmarks(ctx context.Context) ([]Checkmark, error) {
	var out []Checkmark
	if err := s.sel(ctx, &out, `SELECT `+checkmarkCols+` FROM checkmarks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list checkmarks: %w", err)
	}
	return s.withExamples(ctx, out)
}

func (s *SQLStore) withExamples(ctx context.Context, cs []Checkmark) ([]Checkmark, error) {
	if len(cs) == 0 {
		return cs, nil
	}
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	query, args, err := db.In(s.q, `SELECT id, checkmark_id, name, grade, sortorder
		FROM checkmark_examples WHERE checkmark_id IN (?) ORDER BY checkmark_id, sortorder, id`, ids)
	if err != nil {
		return nil, err
	}
	var all []Example
	if err := s.q.SelectContext(ctx, &all, query, args...); err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}
	byID := map[int64]int{}
	for i, c := range cs {
		byID[c.ID] = i
	}
	for _, e := range all {
		i := byID[e.CheckmarkID]
		e.Prefix = cs[i].ExamplePrefix
		cs[i].Examples = append(cs[i].Examples, e)
	}
	return cs, nil
}

// DeleteCheckmark removes the instance and every dependent row. Tables are
// cleared explicitly so the result does not depend on foreign key support.
func (s *SQLStore) DeleteCheckmark(ctx context.Context, id int64) error {
	stmts := []string{
		`DELETE FROM checkmark_checks WHERE submission_id IN (SELECT id FROM checkmark_submissions WHERE checkmark_id=?)`,
		`DELETE FROM checkmark_checks WHERE example_id IN (SELECT id FROM checkmark_examples WHERE checkmark_id=?)`,
		`DELETE FROM checkmark_submissions WHERE checkmark_id=?`,
		`DELETE FROM checkmark_feedbacks WHERE checkmark_id=?`,
		`DELETE FROM checkmark_overrides WHERE checkmark_id=?`,
		`DELETE FROM checkmark_examples WHERE checkmark_id=?`,
		`DELETE FROM lti_links WHERE checkmark_id=?`,
	}
	for _, q := range stmts {
		if _, err := s.exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete checkmark %d: %w", id, err)
		}
	}
	res, err := s.exec(ctx, `DELETE FROM checkmarks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete checkmark %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("checkmark %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---- examples ----

func (s *SQLStore) ListExamples(ctx context.Context, checkmarkID int64) ([]Example, error) {
	var out []Example
	err := s.sel(ctx, &out, `SELECT id, checkmark_id, name, grade, sortorder
		FROM checkmark_examples WHERE checkmark_id=? ORDER BY sortorder, id`, checkmarkID)
	if err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}
	return out, nil
}

func (s *SQLStore) InsertExample(ctx context.Context, e *Example) error {
	id, err := s.insertReturning(ctx, `INSERT INTO checkmark_examples (checkmark_id, name, grade, sortorder)
		VALUES (:checkmark_id, :name, :grade, :sortorder) RETURNING id`, e)
	if err != nil {
		return fmt.Errorf("insert example: %w", err)
	}
	e.ID = id
	return nil
}

func (s *SQLStore) UpdateExample(ctx context.Context, e Example) error {
	_, err := s.exec(ctx, `UPDATE checkmark_examples SET name=?, grade=?, sortorder=? WHERE id=?`,
		e.Name, e.Grade, e.SortOrder, e.ID)
	return err
}

func (s *SQLStore) DeleteExample(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `DELETE FROM checkmark_checks WHERE example_id=?`, id); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM checkmark_examples WHERE id=?`, id)
	return err
}

// ---- submissions ----

func (s *SQLStore) GetSubmission(ctx context.Context, checkmarkID, userID int64) (*Submission, error) {
	var sub Submission
	err := s.get(ctx, &sub, `SELECT id, checkmark_id, user_id, timecreated, timemodified
		FROM checkmark_submissions WHERE checkmark_id=? AND user_id=?`, checkmarkID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if err := s.sel(ctx, &sub.Checks, `SELECT id, submission_id, example_id, state
		FROM checkmark_checks WHERE submission_id=? ORDER BY id`, sub.ID); err != nil {
		return nil, fmt.Errorf("get checks: %w", err)
	}
	return &sub, nil
}

// ListSubmissions loads submissions with checks for the given users, or for
// everyone when userIDs is nil.
func (s *SQLStore) ListSubmissions(ctx context.Context, checkmarkID int64, userIDs []int64) (map[int64]Submission, error) {
	out := map[int64]Submission{}
	if userIDs != nil && len(userIDs) == 0 {
		return out, nil
	}
	var (
		subs   []Submission
		checks []struct {
			Check
			UserID int64 `db:"user_id"`
		}
	)
	subQ := `SELECT id, checkmark_id, user_id, timecreated, timemodified FROM checkmark_submissions WHERE checkmark_id=?`
	chkQ := `SELECT c.id, c.submission_id, c.example_id, c.state, s.user_id
		FROM checkmark_checks c JOIN checkmark_submissions s ON s.id = c.submission_id
		WHERE s.checkmark_id=?`
	args := []interface{}{checkmarkID}
	if userIDs != nil {
		subQ += ` AND user_id IN (?)`
		chkQ += ` AND s.user_id IN (?)`
		args = append(args, userIDs)
	}
	q1, a1, err := db.In(s.q, subQ, args...)
	if err != nil {
		return nil, err
	}
	if err := s.q.SelectContext(ctx, &subs, q1, a1...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	q2, a2, err := db.In(s.q, chkQ+` ORDER BY c.id`, args...)
	if err != nil {
		return nil, err
	}
	if err := s.q.SelectContext(ctx, &checks, q2, a2...); err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	for _, sub := range subs {
		out[sub.UserID] = sub
	}
	for _, c := range checks {
		sub := out[c.UserID]
		sub.Checks = append(sub.Checks, c.Check)
		out[c.UserID] = sub
	}
	return out, nil
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	now := time.Now().Unix()
	if sub.TimeCreated == 0 {
		sub.TimeCreated = now
	}
	if sub.TimeModified == 0 {
		sub.TimeModified = now
	}
	id, err := s.insertReturning(ctx, `INSERT INTO checkmark_submissions (checkmark_id, user_id, timecreated, timemodified)
		VALUES (:checkmark_id, :user_id, :timecreated, :timemodified) RETURNING id`, sub)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("submission exists: %w", ErrConflict)
		}
		return fmt.Errorf("create submission: %w", err)
	}
	sub.ID = id
	return nil
}

func (s *SQLStore) TouchSubmission(ctx context.Context, id, t int64) error {
	_, err := s.exec(ctx, `UPDATE checkmark_submissions SET timemodified=? WHERE id=?`, t, id)
	return err
}

func (s *SQLStore) SetCheck(ctx context.Context, submissionID, exampleID int64, st State) error {
	_, err := s.exec(ctx, `INSERT INTO checkmark_checks (submission_id, example_id, state) VALUES (?,?,?)
		ON CONFLICT (submission_id, example_id) DO UPDATE SET state=EXCLUDED.state`,
		submissionID, exampleID, int(st))
	if err != nil {
		return fmt.Errorf("set check: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteSubmissions(ctx context.Context, checkmarkID int64) error {
	if _, err := s.exec(ctx, `DELETE FROM checkmark_checks WHERE submission_id IN
		(SELECT id FROM checkmark_submissions WHERE checkmark_id=?)`, checkmarkID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM checkmark_submissions WHERE checkmark_id=?`, checkmarkID)
	return err
}

// ---- feedback ----

const feedbackCols = `id, checkmark_id, user_id, grade, feedback, attendance, presentationgrade,
	presentationfeedback, grader_id, mailed, timecreated, timemodified`

func (s *SQLStore) GetFeedback(ctx context.Context, checkmarkID, userID int64) (*Feedback, error) {
	var f Feedback
	err := s.get(ctx, &f, `SELECT `+feedbackCols+` FROM checkmark_feedbacks WHERE checkmark_id=? AND user_id=?`,
		checkmarkID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return &f, nil
}

func (s *SQLStore) ListFeedbacks(ctx context.Context, checkmarkID int64) ([]Feedback, error) {
	var out []Feedback
	if err := s.sel(ctx, &out, `SELECT `+feedbackCols+` FROM checkmark_feedbacks WHERE checkmark_id=? ORDER BY user_id`, checkmarkID); err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	return out, nil
}

func (s *SQLStore) UpsertFeedback(ctx context.Context, f *Feedback) error {
	now := time.Now().Unix()
	if f.TimeCreated == 0 {
		f.TimeCreated = now
	}
	if f.TimeModified == 0 {
		f.TimeModified = now
	}
	id, err := s.insertReturning(ctx, `
		INSERT INTO checkmark_feedbacks (checkmark_id, user_id, grade, feedback, attendance,
			presentationgrade, presentationfeedback, grader_id, mailed, timecreated, timemodified)
		VALUES (:checkmark_id, :user_id, :grade, :feedback, :attendance,
			:presentationgrade, :presentationfeedback, :grader_id, :mailed, :timecreated, :timemodified)
		ON CONFLICT (checkmark_id, user_id) DO UPDATE SET
			grade=EXCLUDED.grade, feedback=EXCLUDED.feedback, attendance=EXCLUDED.attendance,
			presentationgrade=EXCLUDED.presentationgrade, presentationfeedback=EXCLUDED.presentationfeedback,
			grader_id=EXCLUDED.grader_id, mailed=EXCLUDED.mailed, timemodified=EXCLUDED.timemodified
		RETURNING id`, f)
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	f.ID = id
	return nil
}

func (s *SQLStore) ListUnmailedFeedback(ctx context.Context, modifiedBefore int64) ([]Feedback, error) {
	var out []Feedback
	err := s.sel(ctx, &out, `SELECT `+feedbackCols+` FROM checkmark_feedbacks
		WHERE mailed=? AND timemodified<=? ORDER BY timemodified`, false, modifiedBefore)
	if err != nil {
		return nil, fmt.Errorf("list unmailed: %w", err)
	}
	return out, nil
}

func (s *SQLStore) MarkMailed(ctx context.Context, feedbackID int64) error {
	_, err := s.exec(ctx, `UPDATE checkmark_feedbacks SET mailed=? WHERE id=?`, true, feedbackID)
	return err
}

func (s *SQLStore) DeleteFeedbacks(ctx context.Context, checkmarkID int64) error {
	_, err := s.exec(ctx, `DELETE FROM checkmark_feedbacks WHERE checkmark_id=?`, checkmarkID)
	return err
}

// ---- overrides ----

const overrideCols = `id, checkmark_id, user_id, group_id, timeavailable, timedue, cutoffdate,
	grouppriority, modifier_id, timecreated`

func (s *SQLStore) UserOverride(ctx context.Context, checkmarkID, userID int64) (*Override, error) {
	var o Override
	err := s.get(ctx, &o, `SELECT `+overrideCols+` FROM checkmark_overrides WHERE checkmark_id=? AND user_id=?`,
		checkmarkID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user override: %w", err)
	}
	return &o, nil
}

func (s *SQLStore) GroupOverridesForUser(ctx context.Context, checkmarkID, userID int64) ([]Override, error) {
	var out []Override
	err := s.sel(ctx, &out, `SELECT o.id, o.checkmark_id, o.user_id, o.group_id, o.timeavailable, o.timedue,
			o.cutoffdate, o.grouppriority, o.modifier_id, o.timecreated
		FROM checkmark_overrides o
		JOIN group_members gm ON gm.group_id = o.group_id
		WHERE o.checkmark_id=? AND gm.user_id=?
		ORDER BY o.grouppriority ASC, o.id ASC`, checkmarkID, userID)
	if err != nil {
		return nil, fmt.Errorf("group overrides: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetOverride(ctx context.Context, id int64) (Override, error) {
	var o Override
	if err := s.get(ctx, &o, `SELECT `+overrideCols+` FROM checkmark_overrides WHERE id=?`, id); err != nil {
		return Override{}, notFound(err, fmt.Sprintf("override %d", id))
	}
	return o, nil
}

func (s *SQLStore) ListOverrides(ctx context.Context, checkmarkID int64, groups bool) ([]Override, error) {
	var out []Override
	query := `SELECT ` + overrideCols + ` FROM checkmark_overrides WHERE checkmark_id=? AND user_id IS NOT NULL ORDER BY user_id`
	if groups {
		query = `SELECT ` + overrideCols + ` FROM checkmark_overrides WHERE checkmark_id=? AND group_id IS NOT NULL ORDER BY grouppriority, id`
	}
	if err := s.sel(ctx, &out, query, checkmarkID); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return out, nil
}

func (s *SQLStore) InsertOverride(ctx context.Context, o *Override) error {
	if o.TimeCreated == 0 {
		o.TimeCreated = time.Now().Unix()
	}
	id, err := s.insertReturning(ctx, `
		INSERT INTO checkmark_overrides (checkmark_id, user_id, group_id, timeavailable, timedue,
			cutoffdate, grouppriority, modifier_id, timecreated)
		VALUES (:checkmark_id, :user_id, :group_id, :timeavailable, :timedue,
			:cutoffdate, :grouppriority, :modifier_id, :timecreated)
		RETURNING id`, o)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("override exists: %w", ErrConflict)
		}
		return fmt.Errorf("insert override: %w", err)
	}
	o.ID = id
	return nil
}

func (s *SQLStore) UpdateOverride(ctx context.Context, o Override) error {
	_, err := s.exec(ctx, `UPDATE checkmark_overrides SET timeavailable=?, timedue=?, cutoffdate=?, modifier_id=?
		WHERE id=?`, o.TimeAvailable, o.TimeDue, o.CutoffDate, o.ModifierID, o.ID)
	return err
}

func (s *SQLStore) DeleteOverride(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM checkmark_overrides WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("override %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) DeleteOverrides(ctx context.Context, checkmarkID int64) error {
	_, err := s.exec(ctx, `DELETE FROM checkmark_overrides WHERE checkmark_id=?`, checkmarkID)
	return err
}

func (s *SQLStore) MaxGroupPriority(ctx context.Context, checkmarkID int64) (int, error) {
	var p sql.NullInt64
	if err := s.get(ctx, &p, `SELECT MAX(grouppriority) FROM checkmark_overrides WHERE checkmark_id=? AND group_id IS NOT NULL`, checkmarkID); err != nil {
		return 0, err
	}
	return int(p.Int64), nil
}

func (s *SQLStore) SetGroupPriority(ctx context.Context, id int64, p int) error {
	_, err := s.exec(ctx, `UPDATE checkmark_overrides SET grouppriority=? WHERE id=?`, p, id)
	return err
}

// ---- participants ----

func (s *SQLStore) GetParticipant(ctx context.Context, userID int64) (Participant, error) {
	var p Participant
	if err := s.get(ctx, &p, `SELECT id, username, firstname, lastname, email, idnumber FROM users WHERE id=?`, userID); err != nil {
		return Participant{}, notFound(err, fmt.Sprintf("user %d", userID))
	}
	return p, nil
}

// ListParticipants returns active students of a course, optionally limited to a group.
func (s *SQLStore) ListParticipants(ctx context.Context, courseID, groupID int64) ([]Participant, error) {
	var out []Participant
	query := `SELECT u.id, u.username, u.firstname, u.lastname, u.email, u.idnumber
		FROM users u JOIN enrolments e ON e.user_id = u.id
		WHERE e.course_id=? AND e.role='student' AND e.status='active'`
	args := []interface{}{courseID}
	if groupID > 0 {
		query += ` AND u.id IN (SELECT user_id FROM group_members WHERE group_id=?)`
		args = append(args, groupID)
	}
	query += ` ORDER BY u.lastname, u.firstname, u.id`
	if err := s.sel(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

func (s *SQLStore) EnrolmentRole(ctx context.Context, courseID, userID int64) (string, error) {
	var role string
	err := s.get(ctx, &role, `SELECT role FROM enrolments WHERE course_id=? AND user_id=? AND status='active'`, courseID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

func (s *SQLStore) UserCourses(ctx context.Context, userID int64) ([]int64, error) {
	var out []int64
	err := s.sel(ctx, &out, `SELECT course_id FROM enrolments WHERE user_id=? AND status='active' ORDER BY course_id`, userID)
	return out, err
}

func (s *SQLStore) UserGroups(ctx context.Context, courseID, userID int64) ([]int64, error) {
	var out []int64
	err := s.sel(ctx, &out, `SELECT g.id FROM course_groups g JOIN group_members gm ON gm.group_id = g.id
		WHERE g.course_id=? AND gm.user_id=? ORDER BY g.id`, courseID, userID)
	return out, err
}

func (s *SQLStore) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	var out []int64
	err := s.sel(ctx, &out, `SELECT user_id FROM group_members WHERE group_id=? ORDER BY user_id`, groupID)
	return out, err
}

func (s *SQLStore) GroupCourse(ctx context.Context, groupID int64) (int64, error) {
	var id int64
	if err := s.get(ctx, &id, `SELECT course_id FROM course_groups WHERE id=?`, groupID); err != nil {
		return 0, notFound(err, fmt.Sprintf("group %d", groupID))
	}
	return id, nil
}
