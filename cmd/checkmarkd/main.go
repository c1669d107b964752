package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/checkmark/internal/api/http"
	auth "github.com/mind-engage/checkmark/internal/auth/middleware"
	"github.com/mind-engage/checkmark/internal/calendar"
	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/config"
	"github.com/mind-engage/checkmark/internal/course"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/export"
	"github.com/mind-engage/checkmark/internal/gradebook"
	"github.com/mind-engage/checkmark/internal/grading"
	"github.com/mind-engage/checkmark/internal/metrics"
	"github.com/mind-engage/checkmark/internal/notify"
	"github.com/mind-engage/checkmark/internal/prefs"
	"github.com/mind-engage/checkmark/internal/rbac"
	"github.com/mind-engage/checkmark/internal/roster"
	"github.com/mind-engage/checkmark/internal/storage"
	syncx "github.com/mind-engage/checkmark/internal/sync"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/agshttp"
	gbsync "github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/gradebook"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/httpchi"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/sqlstore"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := checkmark.NewSQLStore(dbh)

	// --- Grade book (optionally mirrored to an LTI platform) ---
	var (
		pub     gradebook.Publisher
		agsAPI  *httpchi.API
		agsRecs = &sqlstore.Store{DB: dbh}
	)
	if cfg.AGSEnabled {
		client := agshttp.New(agshttp.Config{
			TokenURL:     cfg.AGSTokenURL,
			ClientID:     cfg.AGSClientID,
			ClientSecret: cfg.AGSClientSecret,
			Scopes:       agshttp.DefaultScopes,
			Timeout:      15 * time.Second,
		})
		syncer := gbsync.New(agsRecs, client, time.Now)
		ap := gradebook.NewAsyncPublisher(syncer, 0)
		go ap.Run(ctx)
		pub = ap
		agsAPI = &httpchi.API{Syncer: syncer, Links: agsRecs}
	}
	book := gradebook.New(pub)

	// --- Mail ---
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFrom}
	var mailer notify.Mailer = notify.NewLogMailer(from, "checkmark")
	if cfg.SendgridAPIKey != "" {
		mailer = notify.NewSendgridMailer(cfg.SendgridAPIKey, from, "checkmark")
	}
	notifier := notify.NewNotifier(mailer, notify.NewSQLDirectory(dbh))
	defer notifier.Wait()

	cal := calendar.New()
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	svc := checkmark.NewService(store,
		checkmark.WithGradeBook(book),
		checkmark.WithCalendar(cal),
		checkmark.WithEventLog(events),
		checkmark.WithNotifier(notifier),
		checkmark.WithObserver(metrics.Observer{}),
		checkmark.WithGrader(grading.NewDefaultGrader(grading.WithStrategy(cfg.GradingStrategy))),
	)

	// --- Table state: redis when configured, memory otherwise ---
	var session prefs.Session = prefs.NewMemorySession(cfg.SessionTTL)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		session = prefs.NewRedisSession(rdb, cfg.SessionTTL)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	rows := roster.New(store)
	courses := course.New(dbh)
	handlers := api.New(api.Deps{
		Service:  svc,
		Courses:  courses,
		Guard:    rbac.NewGuard(nil, store),
		Roster:   rows,
		Exporter: export.New(rows, export.WithBlobStore(bs), export.WithObserver(metrics.Observer{})),
		Prefs:    prefs.New(dbh),
		Table:    prefs.NewTableState(session),
		Calendar: cal,
		Book:     book,
		Blobs:    bs,
		DB:       dbh,
		Events:   events,
	})

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.AuthenticatorFunc(
			func(ctx context.Context, username, password string) (int64, string, error) {
				u, err := courses.Authenticate(ctx, username, password)
				if err != nil {
					return 0, "", err
				}
				return u.ID, u.Role, nil
			})))
	}

	// Protected API (JWT → role from DB → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc), auth.AttachRoleFromDB(dbh))
		handlers.Routes(pr)
		if agsAPI != nil {
			pr.With(rbac.Require(rbac.CapCourseManage)).Group(agsAPI.Routes)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("listening on %s (mode=%s, db=%s, public=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.PublicURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
