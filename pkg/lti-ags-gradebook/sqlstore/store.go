package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/gradebook"
)

// Store reads checkmark grades and LTI link data. Grade record keys are
// "<checkmark id>:<user id>".
type Store struct{ DB *sqlx.DB }

func RecordKey(checkmarkID, userID int64) string {
	return strconv.FormatInt(checkmarkID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func parseKey(key string) (int64, int64, error) {
	a, b, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("bad record key %q", key)
	}
	cm, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad record key %q", key)
	}
	uid, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad record key %q", key)
	}
	return cm, uid, nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (gradebook.Activity, error) {
	var row struct {
		ID    int64  `db:"id"`
		Name  string `db:"name"`
		Grade int    `db:"grade"`
	}
	cmID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return gradebook.Activity{}, fmt.Errorf("activity id %q: %w", id, err)
	}
	err = s.DB.GetContext(ctx, &row, s.DB.Rebind(`SELECT id, name, grade FROM checkmarks WHERE id=?`), cmID)
	if err != nil {
		return gradebook.Activity{}, err
	}
	return gradebook.Activity{ID: strconv.FormatInt(row.ID, 10), Title: row.Name, MaxPts: float64(row.Grade)}, nil
}

func (s *Store) GetGradeRecord(ctx context.Context, key string) (gradebook.GradeRecord, error) {
	cmID, userID, err := parseKey(key)
	if err != nil {
		return gradebook.GradeRecord{}, err
	}
	rec := gradebook.GradeRecord{Key: key, ActivityID: strconv.FormatInt(cmID, 10), UserID: strconv.FormatInt(userID, 10)}
	var fb struct {
		Grade        sql.NullFloat64 `db:"grade"`
		TimeModified int64           `db:"timemodified"`
	}
	err = s.DB.GetContext(ctx, &fb, s.DB.Rebind(
		`SELECT grade, timemodified FROM checkmark_feedbacks WHERE checkmark_id=? AND user_id=?`), cmID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return gradebook.GradeRecord{}, err
	case fb.Grade.Valid:
		t := time.Unix(fb.TimeModified, 0)
		rec.Score, rec.GradedAt = fb.Grade.Float64, &t
	}
	var link struct {
		Issuer       string `db:"platform_issuer"`
		DeploymentID string `db:"deployment_id"`
		ContextID    string `db:"context_id"`
		ResourceLink string `db:"resource_link_id"`
	}
	err = s.DB.GetContext(ctx, &link, s.DB.Rebind(`
		SELECT platform_issuer, deployment_id, context_id, resource_link_id
		FROM lti_links WHERE checkmark_id=? ORDER BY updated_at DESC LIMIT 1`), cmID)
	if err != nil {
		return gradebook.GradeRecord{}, fmt.Errorf("no LTI link for checkmark %d: %w", cmID, err)
	}
	rec.PlatformIssuer, rec.DeploymentID = link.Issuer, link.DeploymentID
	rec.ContextID, rec.ResourceLinkID = link.ContextID, link.ResourceLink
	return rec, nil
}

func (s *Store) GetLatestLinkForContext(ctx context.Context, issuer, dep, contextID, rlID string) (gradebook.LTILink, error) {
	var row struct {
		CheckmarkID  int64  `db:"checkmark_id"`
		Issuer       string `db:"platform_issuer"`
		DeploymentID string `db:"deployment_id"`
		ContextID    string `db:"context_id"`
		ResourceLink string `db:"resource_link_id"`
		LineItemsURL string `db:"lineitems_url"`
		Scopes       string `db:"scopes"`
	}
	err := s.DB.GetContext(ctx, &row, s.DB.Rebind(`
		SELECT checkmark_id, platform_issuer, deployment_id, context_id, resource_link_id, lineitems_url, scopes
		FROM lti_links
		WHERE platform_issuer=? AND deployment_id=? AND context_id=? AND resource_link_id=?
		ORDER BY updated_at DESC LIMIT 1`), issuer, dep, contextID, rlID)
	if err != nil {
		return gradebook.LTILink{}, err
	}
	link := gradebook.LTILink{
		ActivityID: strconv.FormatInt(row.CheckmarkID, 10), PlatformIssuer: row.Issuer, DeploymentID: row.DeploymentID,
		ContextID: row.ContextID, ResourceLinkID: row.ResourceLink, LineItemsURL: row.LineItemsURL,
	}
	_ = json.Unmarshal([]byte(row.Scopes), &link.Scopes)
	return link, nil
}

// SaveLink stores the launch context of a checkmark.
func (s *Store) SaveLink(ctx context.Context, l gradebook.LTILink) error {
	cmID, err := strconv.ParseInt(l.ActivityID, 10, 64)
	if err != nil {
		return fmt.Errorf("activity id %q: %w", l.ActivityID, err)
	}
	scopes, _ := json.Marshal(l.Scopes)
	if l.Scopes == nil {
		scopes = []byte("[]")
	}
	_, err = s.DB.ExecContext(ctx, s.DB.Rebind(`
		INSERT INTO lti_links (checkmark_id, platform_issuer, deployment_id, context_id, resource_link_id, lineitems_url, scopes, updated_at)
		VALUES (?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
		ON CONFLICT (checkmark_id, platform_issuer, deployment_id, context_id, resource_link_id)
		DO UPDATE SET lineitems_url=EXCLUDED.lineitems_url, scopes=EXCLUDED.scopes, updated_at=CURRENT_TIMESTAMP`),
		cmID, l.PlatformIssuer, l.DeploymentID, l.ContextID, l.ResourceLinkID, l.LineItemsURL, string(scopes))
	return err
}

// MapUser links a local user id to the platform's subject.
func (s *Store) MapUser(ctx context.Context, issuer, localUserID, platformSub string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
		INSERT INTO lti_user_map (platform_issuer, local_user_id, platform_sub) VALUES (?,?,?)
		ON CONFLICT (platform_issuer, local_user_id) DO UPDATE SET platform_sub=EXCLUDED.platform_sub`),
		issuer, localUserID, platformSub)
	return err
}

func (s *Store) UpsertLineItem(ctx context.Context, li gradebook.GradebookLineItem) (gradebook.GradebookLineItem, error) {
	err := s.DB.GetContext(ctx, &li.ID, s.DB.Rebind(`
		INSERT INTO gradebook_lineitems (activity_id, platform_issuer, deployment_id, context_id, resource_link_id, label, score_max, line_item_url)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
		DO UPDATE SET
			label=EXCLUDED.label,
			score_max=EXCLUDED.score_max,
			line_item_url=EXCLUDED.line_item_url,
			updated_at=CURRENT_TIMESTAMP
		RETURNING id`),
		li.ActivityID, li.PlatformIssuer, li.DeploymentID, li.ContextID, li.ResourceLinkID, li.Label, li.ScoreMax, li.LineItemURL)
	return li, err
}

func (s *Store) FindLineItem(ctx context.Context, activityID, issuer, dep, contextID, rlID string) (gradebook.GradebookLineItem, error) {
	var row struct {
		ID           int64   `db:"id"`
		ActivityID   string  `db:"activity_id"`
		Issuer       string  `db:"platform_issuer"`
		DeploymentID string  `db:"deployment_id"`
		ContextID    string  `db:"context_id"`
		ResourceLink string  `db:"resource_link_id"`
		Label        string  `db:"label"`
		ScoreMax     float64 `db:"score_max"`
		LineItemURL  string  `db:"line_item_url"`
	}
	err := s.DB.GetContext(ctx, &row, s.DB.Rebind(`
		SELECT id, activity_id, platform_issuer, deployment_id, context_id, resource_link_id, label, score_max, line_item_url
		FROM gradebook_lineitems
		WHERE activity_id=? AND platform_issuer=? AND deployment_id=? AND context_id=? AND resource_link_id=?`),
		activityID, issuer, dep, contextID, rlID)
	if err != nil {
		return gradebook.GradebookLineItem{}, err
	}
	return gradebook.GradebookLineItem{
		ID: row.ID, ActivityID: row.ActivityID, PlatformIssuer: row.Issuer, DeploymentID: row.DeploymentID,
		ContextID: row.ContextID, ResourceLinkID: row.ResourceLink, Label: row.Label,
		ScoreMax: row.ScoreMax, LineItemURL: row.LineItemURL,
	}, nil
}

func (s *Store) GetPlatformUserID(ctx context.Context, issuer, localUserID string) (string, error) {
	var sub string
	err := s.DB.GetContext(ctx, &sub, s.DB.Rebind(
		`SELECT platform_sub FROM lti_user_map WHERE platform_issuer=? AND local_user_id=?`), issuer, localUserID)
	return sub, err
}

func (s *Store) MarkSyncPending(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
		INSERT INTO grade_sync_status (record_key, status, retries, updated_at)
		VALUES (?,'pending',0,CURRENT_TIMESTAMP)
		ON CONFLICT (record_key)
		DO UPDATE SET status='pending', updated_at=CURRENT_TIMESTAMP`), key)
	return err
}

func (s *Store) MarkSyncOK(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
		UPDATE grade_sync_status
		   SET status='ok', last_error=NULL, updated_at=CURRENT_TIMESTAMP
		 WHERE record_key=?`), key)
	return err
}

func (s *Store) MarkSyncFailed(ctx context.Context, key, lastErr string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
		INSERT INTO grade_sync_status (record_key, status, retries, last_error, updated_at)
		VALUES (?,'failed',1,?,CURRENT_TIMESTAMP)
		ON CONFLICT (record_key)
		DO UPDATE SET
			status='failed',
			retries=grade_sync_status.retries+1,
			last_error=EXCLUDED.last_error,
			updated_at=CURRENT_TIMESTAMP`), key, lastErr)
	return err
}

// SyncStatus returns status, retries and last error of a record.
func (s *Store) SyncStatus(ctx context.Context, key string) (string, int, string, error) {
	var row struct {
		Status    string         `db:"status"`
		Retries   int            `db:"retries"`
		LastError sql.NullString `db:"last_error"`
	}
	err := s.DB.GetContext(ctx, &row, s.DB.Rebind(
		`SELECT status, retries, last_error FROM grade_sync_status WHERE record_key=?`), key)
	return row.Status, row.Retries, row.LastError.String, err
}

func (s *Store) GetPlatform(ctx context.Context, issuer string) (gradebook.Platform, error) {
	var p struct {
		Issuer   string `db:"issuer"`
		ClientID string `db:"client_id"`
		TokenURL string `db:"token_url"`
		JWKSURL  string `db:"jwks_url"`
		AuthURL  string `db:"auth_url"`
	}
	err := s.DB.GetContext(ctx, &p, s.DB.Rebind(
		`SELECT issuer, client_id, token_url, jwks_url, auth_url FROM lti_platforms WHERE issuer=?`), issuer)
	return gradebook.Platform{Issuer: p.Issuer, ClientID: p.ClientID, TokenURL: p.TokenURL, JWKSURL: p.JWKSURL, AuthURL: p.AuthURL}, err
}
