package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/rbac"
	"github.com/mind-engage/checkmark/internal/roster"
)

// GET /checkmarks/{id}/submission
func (a *API) getSubmission(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapSubmit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	sub, err := a.Service.GetSubmission(r.Context(), c.ID, caller(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sub == nil {
		respondError(w, r, checkmark.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"examples":   checkmark.ExampleStates(c, sub),
	})
}

// POST /checkmarks/{id}/submission  {"checked": [exampleID, ...]}
func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapSubmit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req struct {
		Checked []int64 `json:"checked"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sub, err := a.Service.Submit(r.Context(), c.ID, caller(r), req.Checked)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"examples":   checkmark.ExampleStates(c, &sub),
	})
}

// tableParams overlays the table parameters present in the query string.
func tableParams(v url.Values) (func(*roster.Query), error) {
	var steps []func(*roster.Query)
	if s, ok := v["filter"]; ok {
		f := roster.Filter(s[0])
		steps = append(steps, func(q *roster.Query) { q.Filter = f })
	}
	if s, ok := v["sort"]; ok {
		steps = append(steps, func(q *roster.Query) { q.Sort = s[0] })
	}
	if s, ok := v["dir"]; ok {
		desc := strings.EqualFold(s[0], "desc")
		steps = append(steps, func(q *roster.Query) { q.Desc = desc })
	}
	if s, ok := v["tifirst"]; ok {
		steps = append(steps, func(q *roster.Query) { q.FirstInitial = s[0] })
	}
	if s, ok := v["tilast"]; ok {
		steps = append(steps, func(q *roster.Query) { q.LastInitial = s[0] })
	}
	if s, ok := v["hidden"]; ok {
		var cols []string
		for _, c := range strings.Split(s[0], ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		steps = append(steps, func(q *roster.Query) { q.Hidden = cols })
	}
	for _, name := range []string{"page", "perpage", "group"} {
		s, ok := v[name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s[0])
		if err != nil {
			return nil, badRequest("bad " + name)
		}
		switch name {
		case "page":
			steps = append(steps, func(q *roster.Query) { q.Page = n })
		case "perpage":
			// changing the page size starts over
			steps = append(steps, func(q *roster.Query) { q.PerPage, q.Page = n, 0 })
		case "group":
			steps = append(steps, func(q *roster.Query) { q.GroupID = int64(n) })
		}
	}
	if s, ok := v["selected"]; ok {
		ids, err := parseIDs(s[0])
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(q *roster.Query) { q.Selected = ids })
	}
	return func(q *roster.Query) {
		for _, f := range steps {
			f(q)
		}
	}, nil
}

// GET /checkmarks/{id}/submissions
func (a *API) listSubmissions(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	apply, err := tableParams(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := a.Table.Merge(r.Context(), caller(r), c.ID, apply)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := a.Roster.Load(r.Context(), c, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"query": q, "page": p})
}

// POST /checkmarks/{id}/submissions/autograde  {"filter": "all|required|selected", "selected": [...]}
func (a *API) autograde(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req struct {
		Filter   checkmark.AutogradeFilter `json:"filter"`
		Selected []int64                   `json:"selected"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	n, err := a.Service.Autograde(r.Context(), c.ID, caller(r), req.Filter, req.Selected)
	if err != nil {
		if n > 0 {
			// earlier users stay graded
			respondJSON(w, statusOf(err), map[string]any{"graded": n, "error": err.Error()})
			return
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"graded": n})
}

// POST /checkmarks/{id}/submissions/quickgrade  {"grades": {"<userID>": {...}}}
func (a *API) quickGrade(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req struct {
		Grades map[int64]gradeForm `json:"grades"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Grades) == 0 {
		respondError(w, r, badRequest("no grades"))
		return
	}
	verr := &checkmark.ValidationError{}
	rows := make(map[int64]checkmark.GradeInput, len(req.Grades))
	for uid, f := range req.Grades {
		rows[uid] = f.input(c, "user "+strconv.FormatInt(uid, 10)+" ", verr)
	}
	if !verr.Empty() {
		respondError(w, r, verr)
		return
	}
	n, err := a.Service.QuickGrade(r.Context(), c.ID, caller(r), rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// GET /checkmarks/{id}/grades/{userID}
func (a *API) gradeView(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	uid, err := idParam(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ctx := r.Context()
	role, err := a.Service.Store().EnrolmentRole(ctx, c.CourseID, uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if role != "student" {
		respondError(w, r, fmt.Errorf("user %d is not a student of course %d: %w", uid, c.CourseID, checkmark.ErrNotFound))
		return
	}
	user, err := a.Service.Store().GetParticipant(ctx, uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := a.Service.ViewOf(ctx, a.Service.Resolver(), c, uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := a.Table.Load(ctx, caller(r), c.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	// users outside the current filter have no neighbours
	prev, next, err := a.Roster.Neighbours(ctx, c, q, uid)
	if err != nil && !errors.Is(err, checkmark.ErrNotFound) {
		respondError(w, r, err)
		return
	}
	out := map[string]any{"user": user, "view": v}
	if a.Book != nil {
		gs, err := a.Book.UserGrades(ctx, a.DB, c.ID, uid)
		if err != nil {
			respondError(w, r, err)
			return
		}
		out["gradebook"] = gs
	}
	if prev != 0 {
		out["previous"] = prev
	}
	if next != 0 {
		out["next"] = next
	}
	respondJSON(w, http.StatusOK, out)
}

// POST /checkmarks/{id}/grades/{userID}
func (a *API) grade(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	uid, err := idParam(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var f gradeForm
	if err := decode(r, &f); err != nil {
		respondError(w, r, err)
		return
	}
	verr := &checkmark.ValidationError{}
	in := f.input(c, "", verr)
	if !verr.Empty() {
		respondError(w, r, verr)
		return
	}
	fb, err := a.Service.Grade(r.Context(), c.ID, uid, caller(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fb)
}

// PUT /checkmarks/{id}/grades/{userID}/checks  {"states": {"<exampleID>": true}}
func (a *API) overwriteChecks(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	uid, err := idParam(r, "userID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req struct {
		States map[int64]bool `json:"states"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sub, err := a.Service.OverwriteChecks(r.Context(), c.ID, uid, caller(r), req.States)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"examples":   checkmark.ExampleStates(c, &sub),
	})
}
