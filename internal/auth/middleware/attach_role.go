package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/rbac"
)

// AttachRoleFromDB replaces the claimed role with the one stored on the
// user, so role changes apply before the token expires. Deleted users are
// rejected.
func AttachRoleFromDB(q db.Querier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var role string
			err := q.GetContext(ctx, &role, q.Rebind(`SELECT role FROM users WHERE id=?`), UserFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown user"})
			default:
				log.Printf("auth: load role: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		})
	}
}
