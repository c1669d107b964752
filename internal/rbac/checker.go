package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/checkmark/internal/checkmark"
)

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == "*" || matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return true
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// RoleSource tells the course role of a user; "" means not enrolled.
type RoleSource interface {
	EnrolmentRole(ctx context.Context, courseID, userID int64) (string, error)
}

// Guard answers capability questions for the authenticated caller.
type Guard struct {
	checker *Checker
	roles   RoleSource
}

func NewGuard(c *Checker, roles RoleSource) *Guard {
	if c == nil {
		c = defaultChecker
	}
	return &Guard{checker: c, roles: roles}
}

// CourseRole is the role that decides course capabilities. Site admins
// act as "admin" everywhere.
func (g *Guard) CourseRole(ctx context.Context, courseID, userID int64) (string, error) {
	if RoleFromContext(ctx) == "admin" {
		return "admin", nil
	}
	return g.roles.EnrolmentRole(ctx, courseID, userID)
}

// Can reports whether userID holds perm in the course.
func (g *Guard) Can(ctx context.Context, courseID, userID int64, perm string) (bool, error) {
	role, err := g.CourseRole(ctx, courseID, userID)
	if err != nil {
		return false, err
	}
	return role != "" && g.checker.Has(role, perm), nil
}

// Require is Can returning checkmark.ErrForbidden when the capability is missing.
func (g *Guard) Require(ctx context.Context, courseID, userID int64, perm string) error {
	ok, err := g.Can(ctx, courseID, userID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s in course %d: %w", perm, courseID, checkmark.ErrForbidden)
	}
	return nil
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
