package sqlstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/agshttp"
	gb "github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/gradebook"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/sqlstore"
)

func seedCheckmark(t *testing.T, st *sqlstore.Store, lineItemsURL string) {
	t.Helper()
	stmts := []string{
		`INSERT INTO users (id, username, created_at) VALUES (5, 'stud', 0)`,
		`INSERT INTO courses (id, fullname, shortname, created_at) VALUES (1, 'Course', 'C1', 0)`,
		`INSERT INTO checkmarks (id, course_id, name, grade, timecreated, timemodified) VALUES (12, 1, 'Week 3', 20, 0, 0)`,
		`INSERT INTO checkmark_feedbacks (checkmark_id, user_id, grade, timecreated, timemodified) VALUES (12, 5, 14, 0, 100)`,
		`INSERT INTO lti_platforms (issuer, client_id, token_url) VALUES ('iss', 'client', 'unused')`,
	}
	for _, s := range stmts {
		_, err := st.DB.Exec(s)
		require.NoError(t, err, s)
	}
	ctx := context.Background()
	require.NoError(t, st.SaveLink(ctx, gb.LTILink{
		ActivityID: "12", PlatformIssuer: "iss", DeploymentID: "dep", ContextID: "ctx", ResourceLinkID: "rl",
		LineItemsURL: lineItemsURL, Scopes: agshttp.DefaultScopes,
	}))
	require.NoError(t, st.MapUser(ctx, "iss", "5", "platform-sub-5"))
}

func TestEndToEndSQLiteWithHTTPAGS(t *testing.T) {
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()
	st := &sqlstore.Store{DB: dbx}

	var scores atomic.Int32
	var lastScore map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/lti/lineitems", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ims.lis.v2.lineitem+json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]any{})
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "http://" + r.Host + "/lti/lineitems/9", "label": "Week 3",
				"scoreMaximum": 20, "resourceId": "12", "resourceLinkId": "rl",
			})
		}
	})
	mux.HandleFunc("/lti/lineitems/9/scores", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&lastScore)
		scores.Add(1)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	seedCheckmark(t, st, ts.URL+"/lti/lineitems")

	ags := agshttp.New(agshttp.Config{TokenURL: ts.URL + "/oauth/token", ClientID: "x", ClientSecret: "y", Timeout: 5 * time.Second})
	syncer := gb.New(st, ags, time.Now)

	key := sqlstore.RecordKey(12, 5)
	require.NoError(t, syncer.SyncRecord(ctx, key))
	require.EqualValues(t, 1, scores.Load())
	require.Equal(t, "platform-sub-5", lastScore["userId"])
	require.EqualValues(t, 14, lastScore["scoreGiven"])

	status, retries, lastErr, err := st.SyncStatus(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "ok", status)
	require.Zero(t, retries)
	require.Empty(t, lastErr)

	// the line item is remembered; a second sync only posts a score
	require.NoError(t, syncer.SyncRecord(ctx, key))
	require.EqualValues(t, 2, scores.Load())
}

func TestGetGradeRecordWithoutFeedback(t *testing.T) {
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()
	st := &sqlstore.Store{DB: dbx}
	seedCheckmark(t, st, "http://unused/lineitems")
	_, err = dbx.Exec(`DELETE FROM checkmark_feedbacks`)
	require.NoError(t, err)

	rec, err := st.GetGradeRecord(ctx, sqlstore.RecordKey(12, 5))
	require.NoError(t, err)
	require.Nil(t, rec.GradedAt)
	require.Equal(t, "rl", rec.ResourceLinkID)

	_, err = st.GetGradeRecord(ctx, "nonsense")
	require.Error(t, err)
}
