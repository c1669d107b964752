package httpchi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/gradebook"
)

// LinkStore persists launch contexts and user mappings.
type LinkStore interface {
	SaveLink(ctx context.Context, l gradebook.LTILink) error
	MapUser(ctx context.Context, issuer, localUserID, platformSub string) error
}

type API struct {
	Syncer *gradebook.Syncer
	Links  LinkStore
}

func (a *API) Routes(r chi.Router) {
	r.Post("/lti/gradebook/link", a.postLink)
	r.Post("/lti/gradebook/users", a.postUser)
	r.Post("/lti/gradebook/resync", a.postResync)
}

type linkReq struct {
	CheckmarkID    int64    `json:"checkmark_id"`
	Issuer         string   `json:"issuer"`
	DeploymentID   string   `json:"deployment_id"`
	ContextID      string   `json:"context_id"`
	ResourceLinkID string   `json:"resource_link_id"`
	LineItemsURL   string   `json:"lineitems_url"`
	Scopes         []string `json:"scopes"`
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *API) postLink(w http.ResponseWriter, r *http.Request) {
	var req linkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CheckmarkID == 0 || req.Issuer == "" || req.ResourceLinkID == "" {
		http.Error(w, "checkmark_id, issuer and resource_link_id are required", http.StatusBadRequest)
		return
	}
	activity := strconv.FormatInt(req.CheckmarkID, 10)
	if err := a.Links.SaveLink(r.Context(), gradebook.LTILink{
		ActivityID: activity, PlatformIssuer: req.Issuer, DeploymentID: req.DeploymentID,
		ContextID: req.ContextID, ResourceLinkID: req.ResourceLinkID,
		LineItemsURL: req.LineItemsURL, Scopes: req.Scopes,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if req.LineItemsURL != "" {
		if _, err := a.Syncer.EnsureLineItem(r.Context(), gradebook.GradeRecord{
			ActivityID: activity, PlatformIssuer: req.Issuer, DeploymentID: req.DeploymentID,
			ContextID: req.ContextID, ResourceLinkID: req.ResourceLinkID,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}
	writeOK(w)
}

type userReq struct {
	Issuer      string `json:"issuer"`
	UserID      int64  `json:"user_id"`
	PlatformSub string `json:"platform_sub"`
}

func (a *API) postUser(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Issuer == "" || req.UserID == 0 || req.PlatformSub == "" {
		http.Error(w, "issuer, user_id and platform_sub are required", http.StatusBadRequest)
		return
	}
	if err := a.Links.MapUser(r.Context(), req.Issuer, strconv.FormatInt(req.UserID, 10), req.PlatformSub); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeOK(w)
}

type resyncReq struct {
	CheckmarkID int64 `json:"checkmark_id"`
	UserID      int64 `json:"user_id"`
}

func (a *API) postResync(w http.ResponseWriter, r *http.Request) {
	var req resyncReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CheckmarkID == 0 || req.UserID == 0 {
		http.Error(w, "checkmark_id and user_id required", http.StatusBadRequest)
		return
	}
	key := strconv.FormatInt(req.CheckmarkID, 10) + ":" + strconv.FormatInt(req.UserID, 10)
	if err := a.Syncer.SyncRecord(r.Context(), key); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeOK(w)
}
