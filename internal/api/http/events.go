package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/checkmark/internal/checkmark"
	syncx "github.com/mind-engage/checkmark/internal/sync"
)

// GET /events?since=<seq>&limit=<n> pages through the audit log.
func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	if a.Events == nil {
		respondError(w, r, checkmark.ErrNotFound)
		return
	}
	var since int64
	limit := 100
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			respondError(w, r, badRequest("bad since"))
			return
		}
		since = n
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, r, badRequest("bad limit"))
			return
		}
		limit = n
	}
	evs, err := a.Events.Since(r.Context(), since, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if evs == nil {
		evs = []syncx.Event{}
	}
	next := since
	if len(evs) > 0 {
		next = evs[len(evs)-1].Seq
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": evs, "next": next})
}
