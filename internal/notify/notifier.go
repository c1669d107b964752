package notify

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"sync"
	"time"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

// Directory finds the people mail goes to.
type Directory interface {
	Teachers(ctx context.Context, courseID int64) ([]checkmark.Participant, error)
}

// SQLDirectory reads teachers from the enrolments table.
type SQLDirectory struct{ q db.Querier }

func NewSQLDirectory(q db.Querier) *SQLDirectory { return &SQLDirectory{q: q} }

func (d *SQLDirectory) Teachers(ctx context.Context, courseID int64) ([]checkmark.Participant, error) {
	var out []checkmark.Participant
	err := d.q.SelectContext(ctx, &out, d.q.Rebind(`SELECT u.id, u.username, u.firstname, u.lastname, u.email, u.idnumber
		FROM users u JOIN enrolments e ON e.user_id = u.id
		WHERE e.course_id=? AND e.role='teacher' AND e.status='active' AND u.email <> ''
		ORDER BY u.id`), courseID)
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return out, nil
}

// Notifier implements checkmark.Notifier. Messages are sent from their own
// goroutine; Wait blocks until all are done.
type Notifier struct {
	mailer  Mailer
	dir     Directory
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(m Mailer, dir Directory) *Notifier {
	return &Notifier{mailer: m, dir: dir, timeout: 30 * time.Second}
}

func address(p checkmark.Participant) mail.Address {
	return mail.Address{Name: p.FullName(), Address: p.Email}
}

// SubmissionMessage is the notice a teacher gets for a new submission.
func SubmissionMessage(c checkmark.Checkmark, student checkmark.Participant, sub checkmark.Submission, to []mail.Address) Message {
	checked := 0
	for _, chk := range sub.Checks {
		if chk.State.IsChecked() {
			checked++
		}
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s submitted %s", student.FullName(), c.Name),
		Text: fmt.Sprintf("%s has updated the submission for %q.\nChecked examples: %d of %d\nTime: %s\n",
			student.FullName(), c.Name, checked, len(c.Examples),
			time.Unix(sub.TimeModified, 0).UTC().Format(time.RFC1123)),
	}
}

// FeedbackMessage tells a student that their submission was graded.
func FeedbackMessage(c checkmark.Checkmark, student checkmark.Participant, fb checkmark.Feedback) Message {
	text := fmt.Sprintf("Your submission for %q has been graded.\n", c.Name)
	if fb.Grade != nil && c.Graded() {
		text += fmt.Sprintf("Grade: %.2f / %d\n", *fb.Grade, c.Grade)
	}
	if fb.Feedback != "" {
		text += "\n" + fb.Feedback + "\n"
	}
	return Message{
		To:      []mail.Address{address(student)},
		Subject: "Feedback: " + c.Name,
		Text:    text,
	}
}

func (n *Notifier) SubmissionReceived(ctx context.Context, c checkmark.Checkmark, student checkmark.Participant, sub checkmark.Submission) {
	teachers, err := n.dir.Teachers(ctx, c.CourseID)
	if err != nil {
		log.Printf("notify: %v", err)
		return
	}
	to := make([]mail.Address, 0, len(teachers))
	for _, t := range teachers {
		to = append(to, address(t))
	}
	msg := SubmissionMessage(c, student, sub, to)
	if !msg.HasRecipients() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		// the request context ends with the response
		sctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.mailer.Send(sctx, msg); err != nil {
			log.Printf("notify: submission of user %d: %v", student.ID, err)
		}
	}()
}

// SendFeedback delivers a feedback notice synchronously; the cron task
// marks the feedback mailed only when this succeeds.
func (n *Notifier) SendFeedback(ctx context.Context, c checkmark.Checkmark, student checkmark.Participant, fb checkmark.Feedback) error {
	if student.Email == "" {
		return nil
	}
	return n.mailer.Send(ctx, FeedbackMessage(c, student, fb))
}

func (n *Notifier) Wait() { n.wg.Wait() }
