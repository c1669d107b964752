package course

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

func newService(t *testing.T) *Service {
	t.Helper()
	dbx, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	return New(dbx, WithBcryptCost(bcrypt.MinCost), WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
}

func TestParseUsers(t *testing.T) {
	rows, err := ParseUsers(strings.NewReader("\xEF\xBB\xBFusername,firstname,lastname,email,role,password\n" +
		"ada,Ada,Lovelace,ada@example.org,Student,secret12\n" +
		"tea,Tea,Cher,t@example.org,teacher,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0].Username)
	assert.Equal(t, "student", rows[0].Role)
	assert.Equal(t, "secret12", rows[0].Password)
	assert.Equal(t, "", rows[1].Password)

	rows, err = ParseUsers(strings.NewReader(`  [{"id": 7, "username": "bob", "password": "x"}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0].ID)

	_, err = ParseUsers(strings.NewReader("  \n"))
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
	_, err = ParseUsers(strings.NewReader(`[{"username": 1}]`))
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
}

func TestWriteUsersReimports(t *testing.T) {
	var buf strings.Builder
	err := WriteUsers(&buf, []User{
		{ID: 3, Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org", Role: RoleStudent, PasswordHash: "x"},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,username,firstname,lastname,email,idnumber,role,password", lines[0])
	assert.Equal(t, "3,ada,Ada,Lovelace,ada@example.org,,student,", lines[1])

	rows, err := ParseUsers(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)
	assert.Empty(t, rows[0].Password)
}

func TestBulkUpsertUsers(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	ins, upd, err := s.BulkUpsertUsers(ctx, []UserRow{
		{Username: "ada", FirstName: "Ada", Password: "secret12"},
		{ID: 40, Username: "tea", Role: RoleTeacher, Password: "secret34"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ins)
	assert.Zero(t, upd)

	ins, upd, err = s.BulkUpsertUsers(ctx, []UserRow{{Username: "ada", FirstName: "Augusta", Email: "ada@example.org"}})
	require.NoError(t, err)
	assert.Zero(t, ins)
	assert.Equal(t, 1, upd)

	users, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Augusta", users[0].FirstName)
	assert.Equal(t, RoleStudent, users[0].Role)

	teachers, err := s.ListUsers(ctx, RoleTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, int64(40), teachers[0].ID)

	// the password survived the update without one
	_, err = s.Authenticate(ctx, "ada", "secret12")
	require.NoError(t, err)
}

func TestBulkUpsertUsersRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, _, err := s.BulkUpsertUsers(ctx, []UserRow{
		{Username: "ada", Password: "secret12"},
		{Username: "bob"},
	})
	var verr *checkmark.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["row 2"], "password required")

	_, _, err = s.BulkUpsertUsers(ctx, []UserRow{{Username: "cy", Email: "nope", Role: "root", Password: "x"}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["row 1"], "email")
	assert.Contains(t, verr.Fields["row 1"], "role")

	users, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAuthenticateAndChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, _, err := s.BulkUpsertUsers(ctx, []UserRow{{Username: "ada", Password: "secret12"}})
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "ada", "secret12")
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "ada", "wrong")
	assert.ErrorIs(t, err, checkmark.ErrForbidden)
	_, err = s.Authenticate(ctx, "nobody", "secret12")
	assert.ErrorIs(t, err, checkmark.ErrForbidden)

	assert.ErrorIs(t, s.ChangePassword(ctx, u.ID, "wrong", "newsecret"), checkmark.ErrForbidden)
	assert.ErrorIs(t, s.ChangePassword(ctx, u.ID, "secret12", "short"), checkmark.ErrInvalidArgument)
	assert.ErrorIs(t, s.ChangePassword(ctx, 999, "secret12", "newsecret"), checkmark.ErrNotFound)
	require.NoError(t, s.ChangePassword(ctx, u.ID, "secret12", "newsecret"))
	_, err = s.Authenticate(ctx, "ada", "newsecret")
	assert.NoError(t, err)
}

func TestCoursesEnrolmentsGroups(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, _, err := s.BulkUpsertUsers(ctx, []UserRow{
		{ID: 10, Username: "ada", Password: "secret12"},
		{ID: 11, Username: "bob", Password: "secret12"},
		{ID: 12, Username: "cy", Password: "secret12"},
	})
	require.NoError(t, err)

	c, err := s.CreateCourse(ctx, Course{FullName: "Algebra", ShortName: "ALG"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	other, err := s.CreateCourse(ctx, Course{FullName: "Geometry"})
	require.NoError(t, err)
	_, err = s.CreateCourse(ctx, Course{})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)

	n, err := s.Enrol(ctx, c.ID, []Enrolment{{UserID: 10}, {UserID: 11, Role: RoleTeacher}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = s.Enrol(ctx, c.ID, []Enrolment{{UserID: 11, Status: "suspended"}})
	require.NoError(t, err)
	_, err = s.Enrol(ctx, 999, []Enrolment{{UserID: 10}})
	assert.ErrorIs(t, err, checkmark.ErrNotFound)
	_, err = s.Enrol(ctx, c.ID, []Enrolment{{UserID: 10, Role: "owner"}})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)

	mine, err := s.Courses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Algebra", mine[0].FullName)
	suspended, err := s.Courses(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, suspended)
	all, err := s.Courses(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	g, err := s.CreateGroup(ctx, Group{CourseID: c.ID, Name: "Red", Members: []int64{10}})
	require.NoError(t, err)
	_, err = s.CreateGroup(ctx, Group{CourseID: c.ID, Name: "Blue", Members: []int64{12}})
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument, "cy is not enrolled")
	_, err = s.CreateGroup(ctx, Group{CourseID: other.ID, Name: "Empty"})
	require.NoError(t, err)

	require.NoError(t, s.AddMembers(ctx, g.ID, []int64{11, 10}))
	assert.ErrorIs(t, s.AddMembers(ctx, 999, []int64{10}), checkmark.ErrNotFound)

	groups, err := s.Groups(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1, "the failed Blue insert was rolled back")
	assert.Equal(t, []int64{10, 11}, groups[0].Members)

	require.NoError(t, s.Unenrol(ctx, c.ID, 11))
	assert.ErrorIs(t, s.Unenrol(ctx, c.ID, 11), checkmark.ErrNotFound)
	groups, err = s.Groups(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, groups[0].Members)
}
