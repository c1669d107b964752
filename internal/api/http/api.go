// Package http exposes the checkmark operations as a JSON API.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/checkmark/internal/calendar"
	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/course"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/export"
	"github.com/mind-engage/checkmark/internal/gradebook"
	"github.com/mind-engage/checkmark/internal/prefs"
	"github.com/mind-engage/checkmark/internal/rbac"
	"github.com/mind-engage/checkmark/internal/roster"
	"github.com/mind-engage/checkmark/internal/storage"
	syncx "github.com/mind-engage/checkmark/internal/sync"
)

// Deps are the components the handlers call into. Blobs may be nil, which
// disables archived exports; a nil Events answers the event feed with 404.
type Deps struct {
	Service  *checkmark.Service
	Courses  *course.Service
	Guard    *rbac.Guard
	Roster   *roster.Builder
	Exporter *export.Exporter
	Prefs    *prefs.Store
	Table    *prefs.TableState
	Calendar *calendar.Calendar
	Book     *gradebook.Book
	Blobs    storage.BlobStore
	DB       db.Querier
	Events   *syncx.EventRepo
}

type API struct {
	Deps
}

func New(d Deps) *API { return &API{Deps: d} }

// Routes mounts the authenticated API. The caller installs the JWT
// middleware in front of it.
func (a *API) Routes(r chi.Router) {
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", a.listCourses)
		r.With(rbac.Require(rbac.CapCourseCreate)).Post("/", a.createCourse)
		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/checkmarks", a.listCheckmarks)
			r.Post("/checkmarks", a.createCheckmark)
			r.Get("/calendar", a.courseCalendar)
			r.Post("/enrolments", a.enrol)
			r.Get("/groups", a.listGroups)
			r.Post("/groups", a.createGroup)
			r.Post("/reset", a.resetCourse)
		})
	})

	r.Post("/checkmarks/preview", a.previewExamples)
	r.Route("/checkmarks/{id}", func(r chi.Router) {
		r.Get("/", a.viewCheckmark)
		r.Put("/", a.updateCheckmark)
		r.Delete("/", a.deleteCheckmark)

		r.Get("/submission", a.getSubmission)
		r.Post("/submission", a.submit)

		r.Get("/submissions", a.listSubmissions)
		r.Post("/submissions/autograde", a.autograde)
		r.Post("/submissions/quickgrade", a.quickGrade)

		r.Get("/grades/{userID}", a.gradeView)
		r.Post("/grades/{userID}", a.grade)
		r.Put("/grades/{userID}/checks", a.overwriteChecks)

		r.Get("/overrides", a.listOverrides)
		r.Post("/overrides", a.createOverride)
		r.Post("/extend", a.extend)

		r.Get("/export", a.export)
		r.Post("/exports", a.archiveExport)
		r.Get("/export/preferences", a.getExportPreferences)
		r.Put("/export/preferences", a.putExportPreferences)
	})
	r.Put("/overrides/{oid}", a.updateOverride)
	r.Delete("/overrides/{oid}", a.deleteOverride)
	r.Post("/overrides/{oid}/move", a.moveOverride)
	r.Get("/exports/*", a.getArchivedExport)

	r.Post("/webservice/mod_checkmark/{function}", a.webservice)

	r.With(rbac.Require(rbac.CapUsersBulk)).Post("/users/bulk", a.bulkUsers)
	r.With(rbac.Require(rbac.CapUsersList)).Get("/users", a.listUsers)
	r.With(rbac.Require(rbac.CapChangePassword)).Post("/users/change-password", a.changePassword)

	r.With(rbac.Require(rbac.CapEventsRead)).Get("/events", a.listEvents)
}

// checkmarkFor loads the instance named by the {id} parameter and checks
// that the caller holds perm in its course.
func (a *API) checkmarkFor(r *http.Request, perm string) (checkmark.Checkmark, error) {
	id, err := idParam(r, "id")
	if err != nil {
		return checkmark.Checkmark{}, err
	}
	return a.checkmarkByID(r.Context(), id, caller(r), perm)
}

func (a *API) checkmarkByID(ctx context.Context, id, userID int64, perm string) (checkmark.Checkmark, error) {
	c, err := a.Service.Get(ctx, id)
	if err != nil {
		return c, err
	}
	if err := a.Guard.Require(ctx, c.CourseID, userID, perm); err != nil {
		return checkmark.Checkmark{}, err
	}
	return c, nil
}

// courseFor checks perm in the course named by {courseID}.
func (a *API) courseFor(r *http.Request, perm string) (int64, error) {
	courseID, err := idParam(r, "courseID")
	if err != nil {
		return 0, err
	}
	if _, err := a.Courses.GetCourse(r.Context(), courseID); err != nil {
		return 0, err
	}
	return courseID, a.Guard.Require(r.Context(), courseID, caller(r), perm)
}
