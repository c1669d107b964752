package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/checkmark/internal/auth/middleware"
	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/storage"
)

const maxBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, checkmark.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, checkmark.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, checkmark.ErrNotOpen),
		errors.Is(err, checkmark.ErrAlreadyGraded),
		errors.Is(err, checkmark.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, checkmark.ErrInvalidArgument),
		errors.Is(err, checkmark.ErrGradingDisabled),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	body := map[string]any{"error": err.Error()}
	var verr *checkmark.ValidationError
	if errors.As(err, &verr) {
		body["error"] = "validation failed"
		body["fields"] = verr.Fields
	}
	respondJSON(w, status, body)
}

func badRequest(msg string) error {
	return fmt.Errorf("%s: %w", msg, checkmark.ErrInvalidArgument)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("bad json: " + err.Error())
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("bad " + name)
	}
	return id, nil
}

func caller(r *http.Request) int64 { return authmw.UserFromContext(r.Context()) }

func parseIDs(raw string) ([]int64, error) {
	var out []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, badRequest("bad id " + p)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, badRequest("bad boolean " + raw)
}
