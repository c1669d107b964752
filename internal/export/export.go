// Package export renders the submissions table as PDF, XLSX, CSV or a plain
// text print table.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/grading"
	"github.com/mind-engage/checkmark/internal/roster"
	"github.com/mind-engage/checkmark/internal/storage"
)

type Format string

const (
	PDF  Format = "pdf"
	XLSX Format = "xlsx"
	CSV  Format = "csv"
	TXT  Format = "txt"
)

func (f Format) Ext() string { return string(f) }

func (f Format) ContentType() string {
	switch f {
	case PDF:
		return "application/pdf"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case CSV:
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Options are the print settings. They are stored as user preferences.
type Options struct {
	Format        Format `json:"format" validate:"required,oneof=pdf xlsx csv txt"`
	Orientation   string `json:"orientation" validate:"omitempty,oneof=portrait landscape"`
	TextSize      string `json:"textsize" validate:"omitempty,oneof=small medium large"`
	PrintHeader   bool   `json:"printheader"`
	SumAbs        bool   `json:"sumabs"`
	SumRel        bool   `json:"sumrel"`
	SeparateNames bool   `json:"seperatenamecolumns"`
	Signature     bool   `json:"signature"`

	Query roster.Query `json:"query"`
}

// DefaultOptions mirrors the print form defaults.
func DefaultOptions() Options {
	return Options{Format: PDF, Orientation: "portrait", TextSize: "small", PrintHeader: true, SumAbs: true}
}

var validate = validator.New()

func (o Options) Validate() error {
	verr := &checkmark.ValidationError{}
	if err := validate.Struct(o); err != nil {
		if fes, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fes {
				verr.Add(strings.ToLower(fe.Field()), fe.Tag())
			}
		} else {
			return err
		}
	}
	if !verr.Empty() {
		return verr
	}
	return o.Query.Validate()
}

// Table is a format-neutral document.
type Table struct {
	Title  string
	Info   [][2]string // header lines, only when PrintHeader is set
	Header []string
	Rows   [][]string
	// Widths are relative column weights used by the PDF writer.
	Widths []float64
}

const (
	cellChecked   = "X"
	cellUnchecked = ""
	cellUnknown   = "?"
	teacherMark   = " (T)"
)

// ExampleCell is the printed value of one example state.
func ExampleCell(es checkmark.ExampleState) string {
	if !es.Known {
		return cellUnknown
	}
	v := cellUnchecked
	if es.Checked {
		v = cellChecked
	}
	if es.Overwritten {
		v += teacherMark
	}
	return v
}

// Build lays out rows as a table.
func Build(c checkmark.Checkmark, rows []roster.Row, o Options, loc *time.Location, now time.Time) Table {
	if loc == nil {
		loc = time.UTC
	}
	cols := roster.Columns(c, o.Query.Hidden)
	t := Table{Title: c.Name}
	if o.PrintHeader {
		t.Info = [][2]string{
			{"Checkmark", c.Name},
			{"Due date", formatTime(c.TimeDue, loc)},
			{"Filter", string(orAll(o.Query.Filter))},
			{"Printed", now.In(loc).Format("2006-01-02 15:04")},
		}
	}

	type column struct {
		title string
		width float64
		value func(roster.Row) string
	}
	var layout []column
	if o.SeparateNames {
		layout = append(layout,
			column{"Last name", 3, func(r roster.Row) string { return r.User.LastName }},
			column{"First name", 3, func(r roster.Row) string { return r.User.FirstName }})
	} else {
		layout = append(layout, column{"Full name", 4, func(r roster.Row) string { return r.User.FullName() }})
	}
	total := len(c.Examples)
	for _, col := range cols {
		switch col {
		case roster.ColIDNumber:
			layout = append(layout, column{"ID number", 2, func(r roster.Row) string { return r.User.IDNumber }})
		case roster.ColEmail:
			layout = append(layout, column{"Email", 4, func(r roster.Row) string { return r.User.Email }})
		case roster.ColGroups:
			layout = append(layout, column{"Groups", 2, func(r roster.Row) string { return strings.Join(r.Groups, ", ") }})
		case roster.ColTimeSubmitted:
			layout = append(layout, column{"Submitted", 3, func(r roster.Row) string {
				s := formatTime(r.TimeSubmitted, loc)
				if r.Late {
					s += " (late)"
				}
				return s
			}})
		case roster.ColExamples:
			for i, e := range c.Examples {
				i := i
				layout = append(layout, column{e.Label(), 1, func(r roster.Row) string {
					if i >= len(r.Examples) {
						return cellUnknown
					}
					return ExampleCell(r.Examples[i])
				}})
			}
		case roster.ColChecks:
			if o.SumAbs {
				layout = append(layout, column{"Σ abs", 1.5, func(r roster.Row) string {
					return fmt.Sprintf("%d/%d", r.CheckedCount, total)
				}})
			}
			if o.SumRel {
				layout = append(layout, column{"Σ rel", 1.5, func(r roster.Row) string {
					if total == 0 {
						return "0%"
					}
					return fmt.Sprintf("%d%%", r.CheckedCount*100/total)
				}})
			}
		case roster.ColPoints:
			layout = append(layout, column{"Points", 1.5, func(r roster.Row) string {
				return fmt.Sprintf("%d/%d", r.CheckedPoints, c.Grade)
			}})
		case roster.ColGrade:
			layout = append(layout, column{"Grade", 2, func(r roster.Row) string {
				return grading.FormatGrade(r.Grade, float64(c.Grade))
			}})
		case roster.ColFeedback:
			layout = append(layout, column{"Feedback", 4, func(r roster.Row) string { return r.Feedback }})
		case roster.ColTimeMarked:
			layout = append(layout, column{"Graded", 3, func(r roster.Row) string { return formatTime(r.TimeMarked, loc) }})
		case roster.ColAttendance:
			layout = append(layout, column{"Attendance", 2, func(r roster.Row) string { return attendance(r.Attendance) }})
		case roster.ColPresentationGrade:
			layout = append(layout, column{"Presentation", 2, func(r roster.Row) string {
				return grading.FormatGrade(r.PresentationGrade, float64(c.PresentationGrade))
			}})
		case roster.ColPresentationFeedback:
			layout = append(layout, column{"Presentation feedback", 4, func(r roster.Row) string { return r.PresentationFeedback }})
		case roster.ColOverride:
			layout = append(layout, column{"Due (override)", 3, func(r roster.Row) string {
				if !r.HasOverride {
					return ""
				}
				return formatTime(r.Dates.TimeDue, loc)
			}})
		}
	}
	if o.Signature {
		layout = append(layout, column{"Signature", 4, func(roster.Row) string { return "" }})
	}

	for _, col := range layout {
		t.Header = append(t.Header, col.title)
		t.Widths = append(t.Widths, col.width)
	}
	t.Rows = make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, len(layout))
		for j, col := range layout {
			line[j] = col.value(r)
		}
		t.Rows[i] = line
	}
	return t
}

func orAll(f roster.Filter) roster.Filter {
	if f == "" {
		return roster.FilterAll
	}
	return f
}

func formatTime(t int64, loc *time.Location) string {
	if t == 0 {
		return "-"
	}
	return time.Unix(t, 0).In(loc).Format("2006-01-02 15:04")
}

func attendance(a *int) string {
	switch {
	case a == nil:
		return "?"
	case *a == checkmark.Present:
		return "attendant"
	}
	return "absent"
}

// Write encodes t in the requested format.
func Write(w io.Writer, t Table, o Options) error {
	switch o.Format {
	case PDF:
		return writePDF(w, t, o)
	case XLSX:
		return writeXLSX(w, t, o)
	case CSV:
		return writeCSV(w, t)
	case TXT:
		return writeTXT(w, t)
	}
	return fmt.Errorf("format %q: %w", o.Format, checkmark.ErrInvalidArgument)
}

// Observer counts generated documents.
type Observer interface {
	Exported(format string)
}

// Exporter loads the table and writes or archives it.
type Exporter struct {
	rows     *roster.Builder
	blobs    storage.BlobStore
	observer Observer
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Exporter)

func WithBlobStore(b storage.BlobStore) Option { return func(e *Exporter) { e.blobs = b } }
func WithObserver(o Observer) Option           { return func(e *Exporter) { e.observer = o } }
func WithLocation(l *time.Location) Option     { return func(e *Exporter) { e.loc = l } }
func WithClock(now func() time.Time) Option    { return func(e *Exporter) { e.now = now } }

func New(rows *roster.Builder, opts ...Option) *Exporter {
	e := &Exporter{rows: rows, loc: time.UTC, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Filename is the download name of an export of c.
func Filename(c checkmark.Checkmark, f Format) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(c.Name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case sb.Len() > 0 && !strings.HasSuffix(sb.String(), "_"):
			sb.WriteByte('_')
		}
	}
	name := strings.Trim(sb.String(), "_")
	if name == "" {
		name = "checkmark"
	}
	return fmt.Sprintf("%s-%d.%s", name, c.ID, f.Ext())
}

// Export writes the table of c to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, c checkmark.Checkmark, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	rows, err := e.rows.All(ctx, c, o.Query)
	if err != nil {
		return err
	}
	if err := Write(w, Build(c, rows, o, e.loc, e.now()), o); err != nil {
		return fmt.Errorf("export %s: %w", o.Format, err)
	}
	if e.observer != nil {
		e.observer.Exported(string(o.Format))
	}
	return nil
}

// Archive stores the export in the blob store and returns its key.
func (e *Exporter) Archive(ctx context.Context, c checkmark.Checkmark, o Options) (string, error) {
	if e.blobs == nil {
		return "", fmt.Errorf("no blob store configured: %w", checkmark.ErrInvalidArgument)
	}
	var buf bytes.Buffer
	if err := e.Export(ctx, &buf, c, o); err != nil {
		return "", err
	}
	key := fmt.Sprintf("exports/%d/%s.%s", c.ID, uuid.NewString(), o.Format.Ext())
	return e.blobs.Put(ctx, key, &buf)
}
