// Command checkmark-cron runs the periodic checkmark tasks once and exits.
//
//	checkmark-cron [task ...]
//
// With no arguments every task runs; known tasks are "mail" and "regrade".
package main

import (
	"context"
	"log"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/config"
	"github.com/mind-engage/checkmark/internal/cron"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/gradebook"
	"github.com/mind-engage/checkmark/internal/notify"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/agshttp"
	gbsync "github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/gradebook"
	"github.com/mind-engage/checkmark/pkg/lti-ags-gradebook/sqlstore"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := checkmark.NewSQLStore(dbh)

	var ap *gradebook.AsyncPublisher
	var pub gradebook.Publisher
	if cfg.AGSEnabled {
		client := agshttp.New(agshttp.Config{
			TokenURL:     cfg.AGSTokenURL,
			ClientID:     cfg.AGSClientID,
			ClientSecret: cfg.AGSClientSecret,
			Scopes:       agshttp.DefaultScopes,
			Timeout:      15 * time.Second,
		})
		ap = gradebook.NewAsyncPublisher(gbsync.New(&sqlstore.Store{DB: dbh}, client, time.Now), 4096)
		pub = ap
	}
	book := gradebook.New(pub)

	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFrom}
	var mailer notify.Mailer = notify.NewLogMailer(from, "checkmark")
	if cfg.SendgridAPIKey != "" {
		mailer = notify.NewSendgridMailer(cfg.SendgridAPIKey, from, "checkmark")
	}
	notifier := notify.NewNotifier(mailer, notify.NewSQLDirectory(dbh))

	runner := cron.NewRunner(
		cron.NewMailTask(store, notifier, cfg.MailDelay, cfg.CronBudget),
		cron.NewRegradeTask(book, store, cfg.CronBudget),
	)
	err = runner.Run(ctx, os.Args[1:]...)
	if ap != nil {
		log.Printf("cron: published %d grade records", ap.Drain(ctx))
	}
	notifier.Wait()
	if err != nil {
		log.Fatalf("cron: %v", err)
	}
}
