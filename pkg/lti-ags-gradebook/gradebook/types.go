// pkg/gradebook/types.go
package gradebook

import (
	"context"
	"time"
)

// Activity is a gradable item on the tool side.
type Activity struct {
	ID     string
	Title  string
	MaxPts float64
}

// GradeRecord is one user's grade for an activity plus the launch context
// it has to be reported to.
type GradeRecord struct {
	Key, ActivityID, UserID string
	Score                   float64
	GradedAt                *time.Time
	PlatformIssuer          string
	DeploymentID            string
	ContextID               string
	ResourceLinkID          string
}

type LTILink struct {
	ActivityID                                              string
	PlatformIssuer, DeploymentID, ContextID, ResourceLinkID string
	LineItemsURL                                            string
	Scopes                                                  []string
}

type GradebookLineItem struct {
	ID                                                                  int64
	ActivityID, PlatformIssuer, DeploymentID, ContextID, ResourceLinkID string
	Label                                                               string
	ScoreMax                                                            float64
	LineItemURL                                                         string // absolute URL
}

// Store: implement this in your app, or use pkg/sqlstore.Store
type Store interface {
	GetActivity(ctx context.Context, id string) (Activity, error)
	GetGradeRecord(ctx context.Context, key string) (GradeRecord, error)

	GetLatestLinkForContext(ctx context.Context, issuer, dep, contextID, rl string) (LTILink, error)
	UpsertLineItem(ctx context.Context, li GradebookLineItem) (GradebookLineItem, error)
	FindLineItem(ctx context.Context, activityID, issuer, dep, contextID, rl string) (GradebookLineItem, error)
	GetPlatformUserID(ctx context.Context, issuer, localUserID string) (string, error)

	MarkSyncPending(ctx context.Context, key string) error
	MarkSyncOK(ctx context.Context, key string) error
	MarkSyncFailed(ctx context.Context, key, lastErr string) error

	// Optional, used by helpers (agshttp): fetch platform client creds
	GetPlatform(ctx context.Context, issuer string) (Platform, error)
}

type Platform struct {
	Issuer, ClientID, TokenURL, JWKSURL, AuthURL string
}

type LineItem struct {
	ID, Label, ResourceID, ResourceLinkID string
	ScoreMaximum                          float64
}

type CreateLineItemReq struct {
	Label          string
	ScoreMaximum   float64
	ResourceID     string
	ResourceLinkID string
}

type Score struct {
	UserID, ActivityProgress, GradingProgress string
	ScoreGiven, ScoreMaximum                  float64
	Timestamp                                 time.Time
}

type AGSClient interface {
	ListLineItems(ctx context.Context, lineItemsURL string, q map[string]string) ([]LineItem, error)
	CreateLineItem(ctx context.Context, lineItemsURL string, req CreateLineItemReq) (LineItem, error)
	PostScore(ctx context.Context, lineItemURL string, s Score) error
}
