package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/checkmark"
)

func TestCheckerDefaults(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has("student", CapSubmit))
	assert.False(t, c.Has("student", CapGrade))
	assert.True(t, c.Has("teacher", CapGrade), "checkmark:* covers grade")
	assert.True(t, c.Has("teacher", CapExport))
	assert.False(t, c.Has("teacher", CapUsersBulk))
	assert.True(t, c.Has("admin", CapUsersBulk))
	assert.False(t, c.Has("guest", CapView))
	assert.True(t, c.Any("student", CapGrade, CapView))
	assert.False(t, c.All("student", CapGrade, CapView))
}

type roles map[[2]int64]string

func (r roles) EnrolmentRole(_ context.Context, courseID, userID int64) (string, error) {
	return r[[2]int64{courseID, userID}], nil
}

func TestGuard(t *testing.T) {
	g := NewGuard(nil, roles{{1, 10}: "student", {1, 1}: "teacher"})
	ctx := context.Background()

	ok, err := g.Can(ctx, 1, 10, CapSubmit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, g.Require(ctx, 1, 10, CapGrade), checkmark.ErrForbidden)
	assert.NoError(t, g.Require(ctx, 1, 1, CapGrade))
	assert.ErrorIs(t, g.Require(ctx, 2, 1, CapView), checkmark.ErrForbidden, "not enrolled in course 2")

	admin := WithRole(ctx, "admin")
	assert.NoError(t, g.Require(admin, 2, 99, CapManageOverrides))
	role, err := g.CourseRole(admin, 2, 99)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)
}

func TestRequireMiddleware(t *testing.T) {
	h := Require(CapUsersBulk)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users/bulk", nil)
	h.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), "teacher")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), "admin")))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	RequireAny(CapUsersList, CapUsersBulk)(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "no role at all")
}
