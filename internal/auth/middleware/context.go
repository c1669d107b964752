package auth

import "context"

type ctxKey string

const ctxKeySub ctxKey = "sub"

// WithUser stores the authenticated user id.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKeySub, userID)
}

// UserFromContext returns the authenticated user id, 0 if none.
func UserFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(ctxKeySub).(int64); ok {
		return v
	}
	return 0
}
