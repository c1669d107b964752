package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/checkmark/internal/db"
)

type Event struct {
	Seq       int64  `db:"seq" json:"seq"`
	SiteID    string `db:"site_id" json:"site_id"`
	Type      string `db:"typ" json:"type"`
	Key       string `db:"key" json:"key"`
	DataJSON  string `db:"data" json:"data"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// EventRepo appends audit events. It writes through the Querier it is
// handed, so events commit or roll back with the change they describe.
type EventRepo struct {
	q      db.Querier
	siteID string
	now    func() time.Time
}

func NewEventRepo(q db.Querier, siteID string) *EventRepo {
	return &EventRepo{q: q, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, q db.Querier, e Event) error {
	if q == nil {
		q = r.q
	}
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := q.ExecContext(ctx, q.Rebind(
		`INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES (?,?,?,?,?)`),
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Record implements checkmark.EventLog.
func (r *EventRepo) Record(ctx context.Context, q db.Querier, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	return r.Append(ctx, q, Event{Type: typ, Key: key, DataJSON: string(data)})
}

// Since returns events after seq in order, at most limit of them.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []Event
	err := r.q.SelectContext(ctx, &out, r.q.Rebind(
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE seq > ? ORDER BY seq LIMIT ?`),
		seq, limit)
	return out, err
}
