package http

import (
	"net/http"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/rbac"
)

// GET /checkmarks/{id}/overrides?mode=user|group
func (a *API) listOverrides(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapManageOverrides)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var groups bool
	switch r.URL.Query().Get("mode") {
	case "", "user":
	case "group":
		groups = true
	default:
		respondError(w, r, badRequest("mode must be user or group"))
		return
	}
	list, err := a.Service.ListOverrides(r.Context(), c.ID, groups)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []checkmark.Override{}
	}
	respondJSON(w, http.StatusOK, list)
}

// POST /checkmarks/{id}/overrides
func (a *API) createOverride(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapManageOverrides)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in checkmark.OverrideInput
	if err := decode(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := a.Service.CreateOverride(r.Context(), c.ID, caller(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// overrideFor loads {oid} and checks the capability in its course.
func (a *API) overrideFor(r *http.Request) (checkmark.Override, error) {
	oid, err := idParam(r, "oid")
	if err != nil {
		return checkmark.Override{}, err
	}
	o, err := a.Service.Store().GetOverride(r.Context(), oid)
	if err != nil {
		return o, err
	}
	if _, err := a.checkmarkByID(r.Context(), o.CheckmarkID, caller(r), rbac.CapManageOverrides); err != nil {
		return checkmark.Override{}, err
	}
	return o, nil
}

// PUT /overrides/{oid}
func (a *API) updateOverride(w http.ResponseWriter, r *http.Request) {
	o, err := a.overrideFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	in := checkmark.OverrideInput{
		UserID: o.UserID, GroupID: o.GroupID,
		TimeAvailable: o.TimeAvailable, TimeDue: o.TimeDue, CutoffDate: o.CutoffDate,
	}
	if err := decode(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	o, err = a.Service.UpdateOverride(r.Context(), o.ID, caller(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// DELETE /overrides/{oid}
func (a *API) deleteOverride(w http.ResponseWriter, r *http.Request) {
	o, err := a.overrideFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := a.Service.DeleteOverride(r.Context(), o.ID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /overrides/{oid}/move  {"direction": "up|down"}
func (a *API) moveOverride(w http.ResponseWriter, r *http.Request) {
	o, err := a.overrideFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Direction != "up" && req.Direction != "down" {
		respondError(w, r, badRequest("direction must be up or down"))
		return
	}
	list, err := a.Service.MoveGroupOverride(r.Context(), o.ID, req.Direction == "up")
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// POST /checkmarks/{id}/extend
func (a *API) extend(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapManageOverrides)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req checkmark.ExtendRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := a.Service.Extend(r.Context(), c.ID, caller(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
