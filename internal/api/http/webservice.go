package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/rbac"
)

type wsExample struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Grade int    `json:"grade"`
}

type wsCheckmark struct {
	ID            int64       `json:"id"`
	Course        int64       `json:"course"`
	Name          string      `json:"name"`
	Intro         string      `json:"intro"`
	TimeAvailable int64       `json:"timeavailable"`
	TimeDue       int64       `json:"timedue"`
	CutoffDate    int64       `json:"cutoffdate"`
	Grade         int         `json:"grade"`
	Resubmit      bool        `json:"resubmit"`
	Examples      []wsExample `json:"examples"`

	Submission *wsSubmission `json:"submission,omitempty"`
	Feedback   *wsFeedback   `json:"feedback,omitempty"`
}

type wsSubmission struct {
	TimeCreated  int64            `json:"timecreated"`
	TimeModified int64            `json:"timemodified"`
	Examples     []wsExampleState `json:"examples"`
}

type wsExampleState struct {
	ID          int64 `json:"id"`
	Checked     bool  `json:"checked"`
	Overwritten bool  `json:"overwritten"`
}

type wsFeedback struct {
	Grade        *float64 `json:"grade"`
	Feedback     string   `json:"feedback"`
	Attendance   *int     `json:"attendance,omitempty"`
	TimeModified int64    `json:"timemodified"`
}

type wsWarning struct {
	Item        string `json:"item"`
	ItemID      int64  `json:"itemid"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}

func toWS(v checkmark.StudentView) wsCheckmark {
	c := v.Checkmark
	out := wsCheckmark{
		ID: c.ID, Course: c.CourseID, Name: c.Name,
		TimeAvailable: v.Dates.TimeAvailable, TimeDue: v.Dates.TimeDue, CutoffDate: v.Dates.CutoffDate,
		Grade: c.Grade, Resubmit: c.Resubmit,
		Examples: make([]wsExample, len(c.Examples)),
	}
	if v.ShowIntro {
		out.Intro = c.Intro
	}
	for i, e := range c.Examples {
		out.Examples[i] = wsExample{ID: e.ID, Name: e.Name, Label: e.Label(), Grade: e.Grade}
	}
	if v.Submission != nil {
		s := &wsSubmission{TimeCreated: v.Submission.TimeCreated, TimeModified: v.Submission.TimeModified}
		for _, es := range v.Examples {
			s.Examples = append(s.Examples, wsExampleState{ID: es.ID, Checked: es.Checked, Overwritten: es.Overwritten})
		}
		out.Submission = s
	}
	if v.Feedback != nil {
		out.Feedback = &wsFeedback{
			Grade: v.Feedback.Grade, Feedback: v.Feedback.Feedback,
			Attendance: v.Feedback.Attendance, TimeModified: v.Feedback.TimeModified,
		}
	}
	return out
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, checkmark.ErrNotFound):
		return "invalidrecord"
	case errors.Is(err, checkmark.ErrForbidden):
		return "nopermissions"
	case errors.Is(err, checkmark.ErrNotOpen):
		return "notopen"
	case errors.Is(err, checkmark.ErrAlreadyGraded):
		return "alreadygraded"
	case errors.Is(err, checkmark.ErrInvalidArgument):
		return "invalidparameter"
	}
	return "unknownerror"
}

func wsError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("webservice %s: %v", chi.URLParam(r, "function"), err)
		msg = "internal error"
	}
	respondJSON(w, status, map[string]string{
		"exception": "moodle_exception",
		"errorcode": wsErrorCode(err),
		"message":   msg,
	})
}

// POST /webservice/mod_checkmark/{function}
func (a *API) webservice(w http.ResponseWriter, r *http.Request) {
	var (
		out any
		err error
	)
	switch fn := chi.URLParam(r, "function"); fn {
	case "get_checkmarks_by_courses":
		var p struct {
			CourseIDs []int64 `json:"courseids"`
		}
		if err = decode(r, &p); err == nil {
			out, err = a.wsCheckmarksByCourses(r.Context(), caller(r), p.CourseIDs)
		}
	case "get_checkmark":
		var p struct {
			CheckmarkID int64 `json:"checkmarkid"`
		}
		if err = decode(r, &p); err == nil {
			out, err = a.wsGetCheckmark(r.Context(), caller(r), p.CheckmarkID)
		}
	case "submit":
		var p struct {
			CheckmarkID int64                    `json:"checkmarkid"`
			Examples    []checkmark.ExampleCheck `json:"submission_examples"`
		}
		if err = decode(r, &p); err == nil {
			out, err = a.wsSubmit(r.Context(), caller(r), p.CheckmarkID, p.Examples)
		}
	default:
		err = badRequest("unknown function " + fn)
	}
	if err != nil {
		wsError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) wsCheckmarksByCourses(ctx context.Context, uid int64, courseIDs []int64) (any, error) {
	warnings := []wsWarning{}
	if len(courseIDs) == 0 {
		ids, err := a.Service.Store().UserCourses(ctx, uid)
		if err != nil {
			return nil, err
		}
		courseIDs = ids
	}
	res := a.Service.Resolver()
	list := []wsCheckmark{}
	for _, courseID := range courseIDs {
		ok, err := a.Guard.Can(ctx, courseID, uid, rbac.CapView)
		if err != nil {
			return nil, err
		}
		if !ok {
			warnings = append(warnings, wsWarning{Item: "course", ItemID: courseID, WarningCode: "1",
				Message: "No access rights in course context"})
			continue
		}
		cms, err := a.Service.ListByCourse(ctx, courseID)
		if err != nil {
			return nil, err
		}
		for _, c := range cms {
			v, err := a.Service.ViewOf(ctx, res, c, uid)
			if err != nil {
				return nil, err
			}
			// the listing carries no user data
			v.Submission, v.Feedback = nil, nil
			list = append(list, toWS(v))
		}
	}
	return map[string]any{"checkmarks": list, "warnings": warnings}, nil
}

func (a *API) wsGetCheckmark(ctx context.Context, uid, id int64) (any, error) {
	c, err := a.checkmarkByID(ctx, id, uid, rbac.CapView)
	if err != nil {
		return nil, err
	}
	v, err := a.Service.ViewOf(ctx, a.Service.Resolver(), c, uid)
	if err != nil {
		return nil, err
	}
	return map[string]any{"checkmark": toWS(v), "warnings": []wsWarning{}}, nil
}

func (a *API) wsSubmit(ctx context.Context, uid, id int64, list []checkmark.ExampleCheck) (any, error) {
	c, err := a.checkmarkByID(ctx, id, uid, rbac.CapSubmit)
	if err != nil {
		return nil, err
	}
	if _, err := a.Service.SubmitExact(ctx, c.ID, uid, list); err != nil {
		return nil, err
	}
	return a.wsGetCheckmark(ctx, uid, c.ID)
}
