// Package cron holds the periodic maintenance tasks: mailing graded
// feedback and re-pushing grades to the gradebook.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/gradebook"
	"github.com/mind-engage/checkmark/internal/metrics"
)

type Task interface {
	Name() string
	// Run returns the number of processed items.
	Run(ctx context.Context) (int, error)
}

// FeedbackSender delivers one feedback notice.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, c checkmark.Checkmark, student checkmark.Participant, fb checkmark.Feedback) error
}

// MailTask mails feedback that has been left alone for at least delay.
type MailTask struct {
	store  checkmark.Store
	sender FeedbackSender
	delay  time.Duration
	budget time.Duration
	now    func() time.Time
}

func NewMailTask(store checkmark.Store, sender FeedbackSender, delay, budget time.Duration) *MailTask {
	return &MailTask{store: store, sender: sender, delay: delay, budget: budget, now: time.Now}
}

func (t *MailTask) Name() string { return "mail" }

func (t *MailTask) Run(ctx context.Context) (int, error) {
	start := t.now()
	fbs, err := t.store.ListUnmailedFeedback(ctx, start.Add(-t.delay).Unix())
	if err != nil {
		return 0, fmt.Errorf("list unmailed feedback: %w", err)
	}
	deadline := start.Add(t.budget)
	cms := map[int64]*checkmark.Checkmark{}
	users := map[int64]*checkmark.Participant{}
	var errs []error
	sent := 0
	for _, fb := range fbs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if t.budget > 0 && t.now().After(deadline) {
			log.Printf("cron mail: budget exhausted after %d of %d", sent, len(fbs))
			break
		}
		c, ok := cms[fb.CheckmarkID]
		if !ok {
			got, err := t.store.GetCheckmark(ctx, fb.CheckmarkID)
			if err != nil && !errors.Is(err, checkmark.ErrNotFound) {
				return sent, err
			}
			if err == nil {
				c = &got
			}
			cms[fb.CheckmarkID] = c
		}
		u, ok := users[fb.UserID]
		if !ok {
			got, err := t.store.GetParticipant(ctx, fb.UserID)
			if err != nil && !errors.Is(err, checkmark.ErrNotFound) {
				return sent, err
			}
			if err == nil {
				u = &got
			}
			users[fb.UserID] = u
		}
		if c == nil || u == nil {
			// orphaned rows are never going to be deliverable
			if err := t.store.MarkMailed(ctx, fb.ID); err != nil {
				return sent, err
			}
			continue
		}
		if err := t.sender.SendFeedback(ctx, *c, *u, fb); err != nil {
			errs = append(errs, fmt.Errorf("feedback %d: %w", fb.ID, err))
			continue
		}
		if err := t.store.MarkMailed(ctx, fb.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// RegradeTask re-pushes all grades of all instances.
type RegradeTask struct {
	book   *gradebook.Book
	store  checkmark.Store
	budget time.Duration
}

func NewRegradeTask(book *gradebook.Book, store checkmark.Store, budget time.Duration) *RegradeTask {
	return &RegradeTask{book: book, store: store, budget: budget}
}

func (t *RegradeTask) Name() string { return "regrade" }

func (t *RegradeTask) Run(ctx context.Context) (int, error) {
	return t.book.Regrade(ctx, t.store, t.budget)
}

// Runner executes tasks one after another.
type Runner struct {
	tasks []Task
}

func NewRunner(tasks ...Task) *Runner { return &Runner{tasks: tasks} }

// Names lists the registered tasks in run order.
func (r *Runner) Names() []string {
	out := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Name()
	}
	return out
}

// Run runs the named tasks, or all of them when names is empty. A failing
// task does not stop the others.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var errs []error
	ran := 0
	for _, t := range r.tasks {
		if len(want) > 0 && !want[t.Name()] {
			continue
		}
		ran++
		start := time.Now()
		n, err := t.Run(ctx)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
		metrics.CronRuns.WithLabelValues(t.Name(), outcome).Inc()
		log.Printf("cron %s: %d processed in %s (%s)", t.Name(), n, time.Since(start).Round(time.Millisecond), outcome)
	}
	if len(want) > 0 && ran < len(want) {
		errs = append(errs, fmt.Errorf("unknown task in %v: %w", names, checkmark.ErrInvalidArgument))
	}
	return errors.Join(errs...)
}
