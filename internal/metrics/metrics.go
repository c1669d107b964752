package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mind-engage/checkmark/internal/checkmark"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkmark_submissions_total",
			Help: "Total number of stored submissions",
		},
		[]string{"late"},
	)

	GradingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkmark_gradings_total",
			Help: "Total number of grades written",
		},
		[]string{"source"},
	)

	GradeRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkmark_grade_ratio",
			Help:    "Distribution of grades relative to the maximum grade",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkmark_exports_total",
			Help: "Total number of generated exports",
		},
		[]string{"format"},
	)

	CronRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkmark_cron_runs_total",
			Help: "Cron task runs by outcome",
		},
		[]string{"task", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// Observer feeds service events into the counters above. It satisfies
// checkmark.Observer and export.Observer.
type Observer struct{}

func (Observer) Submitted(_ checkmark.Checkmark, late bool) {
	SubmissionsTotal.WithLabelValues(strconv.FormatBool(late)).Inc()
}

func (Observer) Graded(c checkmark.Checkmark, source string, grade *float64) {
	GradingsTotal.WithLabelValues(source).Inc()
	if grade != nil && c.Grade > 0 {
		GradeRatio.Observe(*grade / float64(c.Grade))
	}
}

func (Observer) Exported(format string) {
	ExportsTotal.WithLabelValues(format).Inc()
}

// Middleware records request durations labelled by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		APIRequestDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
