package http

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/export"
	"github.com/mind-engage/checkmark/internal/rbac"
	"github.com/mind-engage/checkmark/internal/storage"
)

// exportOptions starts from the caller's saved print settings, applies the
// query string and takes the row selection from the table state.
func (a *API) exportOptions(r *http.Request, c checkmark.Checkmark) (export.Options, error) {
	ctx := r.Context()
	o, err := a.Prefs.ExportOptions(ctx, caller(r))
	if err != nil {
		return o, err
	}
	v := r.URL.Query()
	if s := v.Get("format"); s != "" {
		o.Format = export.Format(s)
	}
	if s := v.Get("orientation"); s != "" {
		o.Orientation = s
	}
	if s := v.Get("textsize"); s != "" {
		o.TextSize = s
	}
	for name, dst := range map[string]*bool{
		"printheader":         &o.PrintHeader,
		"sumabs":              &o.SumAbs,
		"sumrel":              &o.SumRel,
		"seperatenamecolumns": &o.SeparateNames,
		"signature":           &o.Signature,
	} {
		if s, ok := v[name]; ok {
			b, err := parseBool(s[0])
			if err != nil {
				return o, err
			}
			*dst = b
		}
	}
	q, err := a.Table.Load(ctx, caller(r), c.ID)
	if err != nil {
		return o, err
	}
	apply, err := tableParams(v)
	if err != nil {
		return o, err
	}
	apply(&q)
	// exports contain every matching row
	q.Page, q.PerPage = 0, 0
	o.Query = q
	return o, nil
}

// GET /checkmarks/{id}/export
func (a *API) export(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapExport)
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := a.exportOptions(r, c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := a.Exporter.Export(r.Context(), &buf, c, o); err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", o.Format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(c, o.Format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// POST /checkmarks/{id}/exports stores the export and returns its key.
func (a *API) archiveExport(w http.ResponseWriter, r *http.Request) {
	c, err := a.checkmarkFor(r, rbac.CapExport)
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := a.exportOptions(r, c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	key, err := a.Exporter.Archive(r.Context(), c, o)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"key":      key,
		"url":      "/exports/" + strings.TrimPrefix(key, "exports/"),
		"filename": export.Filename(c, o.Format),
	})
}

// GET /exports/{checkmarkID}/{file}
func (a *API) getArchivedExport(w http.ResponseWriter, r *http.Request) {
	if a.Blobs == nil {
		respondError(w, r, checkmark.ErrNotFound)
		return
	}
	rest := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	dir, file := path.Split(rest)
	id, err := strconv.ParseInt(strings.TrimSuffix(dir, "/"), 10, 64)
	if err != nil || file == "" {
		respondError(w, r, storage.ErrInvalidKey)
		return
	}
	if _, err := a.checkmarkByID(r.Context(), id, caller(r), rbac.CapExport); err != nil {
		respondError(w, r, err)
		return
	}
	rc, err := a.Blobs.Get(r.Context(), "exports/"+rest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", export.Format(strings.TrimPrefix(path.Ext(file), ".")).ContentType())
	_, _ = io.Copy(w, rc)
}

// GET /checkmarks/{id}/export/preferences
func (a *API) getExportPreferences(w http.ResponseWriter, r *http.Request) {
	if _, err := a.checkmarkFor(r, rbac.CapExport); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := a.Prefs.ExportOptions(r.Context(), caller(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// PUT /checkmarks/{id}/export/preferences
func (a *API) putExportPreferences(w http.ResponseWriter, r *http.Request) {
	if _, err := a.checkmarkFor(r, rbac.CapExport); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := a.Prefs.ExportOptions(r.Context(), caller(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := decode(r, &o); err != nil {
		respondError(w, r, err)
		return
	}
	if err := a.Prefs.SaveExportOptions(r.Context(), caller(r), o); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
