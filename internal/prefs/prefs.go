// Package prefs keeps per-user settings: durable preferences in SQL and
// short-lived table state in a session store.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/export"
	"github.com/mind-engage/checkmark/internal/roster"
)

const exportPrefName = "checkmark_export"

// Store reads and writes the user_preferences table.
type Store struct {
	q db.Querier
}

func New(q db.Querier) *Store { return &Store{q: q} }

// Get returns the value of a preference and false if it is not set.
func (s *Store) Get(ctx context.Context, userID int64, name string) (string, bool, error) {
	var v string
	err := s.q.GetContext(ctx, &v, s.q.Rebind(`SELECT value FROM user_preferences WHERE user_id=? AND name=?`), userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("preference %s: %w", name, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, userID int64, name, value string) error {
	_, err := s.q.ExecContext(ctx, s.q.Rebind(`INSERT INTO user_preferences (user_id, name, value) VALUES (?,?,?)
		ON CONFLICT (user_id, name) DO UPDATE SET value = excluded.value`), userID, name, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID int64, name string) error {
	_, err := s.q.ExecContext(ctx, s.q.Rebind(`DELETE FROM user_preferences WHERE user_id=? AND name=?`), userID, name)
	return err
}

// ExportOptions returns the user's saved print settings, or the defaults.
// The roster query is not part of the saved settings.
func (s *Store) ExportOptions(ctx context.Context, userID int64) (export.Options, error) {
	raw, ok, err := s.Get(ctx, userID, exportPrefName)
	if err != nil || !ok {
		return export.DefaultOptions(), err
	}
	o := export.DefaultOptions()
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		// a broken value is replaced on the next save
		return export.DefaultOptions(), nil
	}
	o.Query = roster.Query{}
	return o, nil
}

// SaveExportOptions validates and stores the print settings.
func (s *Store) SaveExportOptions(ctx context.Context, userID int64, o export.Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	o.Query = roster.Query{}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.Set(ctx, userID, exportPrefName, string(b))
}
