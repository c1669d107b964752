package http

import (
	"net/http"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/rbac"
	"github.com/mind-engage/checkmark/internal/roster"
)

type indexEntry struct {
	Checkmark   checkmark.Checkmark `json:"checkmark"`
	Dates       checkmark.Dates     `json:"dates"`
	Submitted   *bool               `json:"submitted,omitempty"`
	Graded      *bool               `json:"graded,omitempty"`
	Submissions *int                `json:"submissions,omitempty"`
	NeedGrading *int                `json:"needgrading,omitempty"`
}

// GET /courses/{courseID}/checkmarks
func (a *API) listCheckmarks(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapView)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ctx := r.Context()
	uid := caller(r)
	cms, err := a.Service.ListByCourse(ctx, courseID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	grader, err := a.Guard.Can(ctx, courseID, uid, rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res := a.Service.Resolver()
	out := make([]indexEntry, 0, len(cms))
	for _, c := range cms {
		e := indexEntry{Checkmark: c}
		if grader {
			e.Dates = checkmark.InstanceDates(c)
			n, err := a.Roster.Count(ctx, c, roster.Query{Filter: roster.FilterSubmitted})
			if err != nil {
				respondError(w, r, err)
				return
			}
			m, err := a.Roster.Count(ctx, c, roster.Query{Filter: roster.FilterRequireGrading})
			if err != nil {
				respondError(w, r, err)
				return
			}
			e.Submissions, e.NeedGrading = &n, &m
		} else {
			v, err := a.Service.ViewOf(ctx, res, c, uid)
			if err != nil {
				respondError(w, r, err)
				return
			}
			submitted := v.Submission != nil
			graded := v.Feedback != nil && v.Feedback.Grade != nil
			e.Dates, e.Submitted, e.Graded = v.Dates, &submitted, &graded
		}
		out = append(out, e)
	}
	respondJSON(w, http.StatusOK, out)
}

// POST /courses/{courseID}/checkmarks
func (a *API) createCheckmark(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapAddInstance)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var set checkmark.Settings
	if err := decode(r, &set); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := a.Service.AddInstance(r.Context(), courseID, set)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// PUT /checkmarks/{id}
func (a *API) updateCheckmark(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapAddInstance)
	if err != nil {
		respondError(w, r, err)
		return
	}
	// unset fields keep their current value
	set := checkmark.SettingsOf(c)
	if err := decode(r, &set); err != nil {
		respondError(w, r, err)
		return
	}
	c, err = a.Service.UpdateInstance(r.Context(), c.ID, set)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DELETE /checkmarks/{id}
func (a *API) deleteCheckmark(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapAddInstance)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := a.Service.DeleteInstance(r.Context(), c.ID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /checkmarks/preview returns the examples a settings form would create.
func (a *API) previewExamples(w http.ResponseWriter, r *http.Request) {
	var set checkmark.Settings
	if err := decode(r, &set); err != nil {
		respondError(w, r, err)
		return
	}
	exs, err := set.Preview()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"examples": exs})
}

type teacherSummary struct {
	Participants int `json:"participants"`
	Submitted    int `json:"submitted"`
	NeedGrading  int `json:"needgrading"`
}

// GET /checkmarks/{id}
func (a *API) viewCheckmark(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapView)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ctx := r.Context()
	v, err := a.Service.ViewOf(ctx, a.Service.Resolver(), c, caller(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	grader, err := a.Guard.Can(ctx, c.CourseID, caller(r), rbac.CapGrade)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !grader {
		respondJSON(w, http.StatusOK, v)
		return
	}
	var s teacherSummary
	for _, x := range []struct {
		dst *int
		f   roster.Filter
	}{
		{&s.Participants, roster.FilterAll},
		{&s.Submitted, roster.FilterSubmitted},
		{&s.NeedGrading, roster.FilterRequireGrading},
	} {
		if *x.dst, err = a.Roster.Count(ctx, c, roster.Query{Filter: x.f}); err != nil {
			respondError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"view": v, "summary": s})
}
