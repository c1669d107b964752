package http

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/course"
	"github.com/mind-engage/checkmark/internal/rbac"
)

// GET /courses
func (a *API) listCourses(w http.ResponseWriter, r *http.Request) {
	uid := caller(r)
	if rbac.RoleFromContext(r.Context()) == course.RoleAdmin {
		uid = 0
	}
	cs, err := a.Courses.Courses(r.Context(), uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cs)
}

// POST /courses
func (a *API) createCourse(w http.ResponseWriter, r *http.Request) {
	var c course.Course
	if err := decode(r, &c); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := a.Courses.CreateCourse(r.Context(), c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	// the creator teaches the new course
	if rbac.RoleFromContext(r.Context()) != course.RoleAdmin {
		if _, err := a.Courses.Enrol(r.Context(), c.ID, []course.Enrolment{{
			UserID: caller(r), Role: course.RoleTeacher, Status: "active",
		}}); err != nil {
			respondError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, c)
}

// GET /courses/{courseID}/calendar
func (a *API) courseCalendar(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapView)
	if err != nil {
		respondError(w, r, err)
		return
	}
	evs, err := a.Calendar.ForUser(r.Context(), a.DB, courseID, caller(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, evs)
}

// POST /courses/{courseID}/enrolments
func (a *API) enrol(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapCourseManage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var body struct {
		Enrolments []course.Enrolment `json:"enrolments"`
	}
	if err := decode(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	for i := range body.Enrolments {
		if body.Enrolments[i].Status == "" {
			body.Enrolments[i].Status = "active"
		}
	}
	n, err := a.Courses.Enrol(r.Context(), courseID, body.Enrolments)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"enrolled": n})
}

// GET /courses/{courseID}/groups
func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapView)
	if err != nil {
		respondError(w, r, err)
		return
	}
	gs, err := a.Courses.Groups(r.Context(), courseID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, gs)
}

// POST /courses/{courseID}/groups
func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapCourseManage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var g course.Group
	if err := decode(r, &g); err != nil {
		respondError(w, r, err)
		return
	}
	g.CourseID = courseID
	g, err = a.Courses.CreateGroup(r.Context(), g)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

// POST /courses/{courseID}/reset
func (a *API) resetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := a.courseFor(r, rbac.CapCourseManage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var opts checkmark.ResetOptions
	if err := decode(r, &opts); err != nil {
		respondError(w, r, err)
		return
	}
	report, err := a.Service.ResetCourse(r.Context(), courseID, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if report == nil {
		report = []checkmark.ResetStatus{}
	}
	respondJSON(w, http.StatusOK, report)
}

// POST /users/bulk accepts a multipart "file" field or the raw CSV/JSON body.
func (a *API) bulkUsers(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = http.MaxBytesReader(w, r.Body, 10<<20)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			respondError(w, r, badRequest("invalid multipart form"))
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, badRequest("missing file field"))
			return
		}
		defer f.Close()
		src = f
	}
	rows, err := course.ParseUsers(src)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ins, upd, err := a.Courses.BulkUpsertUsers(r.Context(), rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
}

// GET /users?role=&format=csv
func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := a.Courses.ListUsers(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
		if err := course.WriteUsers(w, us); err != nil {
			log.Printf("users csv: %v", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, us)
}

// POST /users/change-password
func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Old string `json:"old_password"`
		New string `json:"new_password"`
	}
	if err := decode(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if err := a.Courses.ChangePassword(r.Context(), caller(r), body.Old, body.New); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
