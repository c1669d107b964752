// pkg/gradebook/syncer.go
package gradebook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Clock func() time.Time

var ErrNotGraded = errors.New("grade record has no grade")

type Syncer struct {
	Store Store
	AGS   AGSClient
	Now   Clock
}

func New(store Store, ags AGSClient, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{Store: store, AGS: ags, Now: now}
}

// EnsureLineItem finds or creates the platform line item for the record's
// activity and launch context.
func (s *Syncer) EnsureLineItem(ctx context.Context, rec GradeRecord) (GradebookLineItem, error) {
	if li, err := s.Store.FindLineItem(ctx, rec.ActivityID, rec.PlatformIssuer, rec.DeploymentID, rec.ContextID, rec.ResourceLinkID); err == nil && li.LineItemURL != "" {
		return li, nil
	}
	link, err := s.Store.GetLatestLinkForContext(ctx, rec.PlatformIssuer, rec.DeploymentID, rec.ContextID, rec.ResourceLinkID)
	if err != nil {
		return GradebookLineItem{}, fmt.Errorf("no LTI link context: %w", err)
	}
	if link.LineItemsURL == "" {
		return GradebookLineItem{}, errors.New("missing lineitems_url")
	}

	act, err := s.Store.GetActivity(ctx, rec.ActivityID)
	if err != nil {
		return GradebookLineItem{}, fmt.Errorf("activity: %w", err)
	}

	base := GradebookLineItem{
		ActivityID: act.ID, PlatformIssuer: rec.PlatformIssuer, DeploymentID: rec.DeploymentID,
		ContextID: rec.ContextID, ResourceLinkID: rec.ResourceLinkID,
	}
	items, err := s.AGS.ListLineItems(ctx, link.LineItemsURL, map[string]string{
		"resource_id":      act.ID,
		"resource_link_id": rec.ResourceLinkID,
	})
	if err == nil {
		for _, it := range items {
			if it.ResourceID == act.ID && it.ResourceLinkID == rec.ResourceLinkID {
				base.Label, base.ScoreMax, base.LineItemURL = it.Label, it.ScoreMaximum, it.ID
				return s.Store.UpsertLineItem(ctx, base)
			}
		}
	}
	created, err := s.AGS.CreateLineItem(ctx, link.LineItemsURL, CreateLineItemReq{
		Label: act.Title, ScoreMaximum: act.MaxPts, ResourceID: act.ID, ResourceLinkID: rec.ResourceLinkID,
	})
	if err != nil {
		return GradebookLineItem{}, fmt.Errorf("create line item: %w", err)
	}
	base.Label, base.ScoreMax, base.LineItemURL = created.Label, created.ScoreMaximum, created.ID
	return s.Store.UpsertLineItem(ctx, base)
}

// SyncRecord posts one grade to the platform and tracks the outcome in the
// sync status table.
func (s *Syncer) SyncRecord(ctx context.Context, key string) error {
	rec, err := s.Store.GetGradeRecord(ctx, key)
	if err != nil {
		return err
	}
	if rec.GradedAt == nil {
		return ErrNotGraded
	}
	_ = s.Store.MarkSyncPending(ctx, rec.Key)

	fail := func(err error) error {
		_ = s.Store.MarkSyncFailed(ctx, rec.Key, err.Error())
		return err
	}

	li, err := s.EnsureLineItem(ctx, rec)
	if err != nil {
		return fail(err)
	}

	platformUserID, err := s.Store.GetPlatformUserID(ctx, rec.PlatformIssuer, rec.UserID)
	if err != nil || platformUserID == "" {
		_ = s.Store.MarkSyncFailed(ctx, rec.Key, "no platform user mapping")
		return fmt.Errorf("no platform user mapping for %s", rec.UserID)
	}

	act, err := s.Store.GetActivity(ctx, rec.ActivityID)
	if err != nil {
		return fail(err)
	}

	if err := s.AGS.PostScore(ctx, li.LineItemURL, Score{
		UserID: platformUserID, ScoreGiven: rec.Score, ScoreMaximum: act.MaxPts,
		ActivityProgress: "Completed", GradingProgress: "FullyGraded",
		Timestamp: s.Now(),
	}); err != nil {
		return fail(err)
	}
	return s.Store.MarkSyncOK(ctx, rec.Key)
}
