package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/checkmark"
)

type fakeDirectory struct {
	teachers []checkmark.Participant
	err      error
}

func (f fakeDirectory) Teachers(context.Context, int64) ([]checkmark.Participant, error) {
	return f.teachers, f.err
}

func f64(v float64) *float64 { return &v }

var sheet = checkmark.Checkmark{ID: 2, CourseID: 1, Name: "Sheet 1", Grade: 10,
	Examples: []checkmark.Example{{ID: 1}, {ID: 2}, {ID: 3}}}

func TestSubmissionReceivedMailsTeachers(t *testing.T) {
	m := NewLogMailer(mail.Address{Address: "noreply@example.org"}, "checkmark").Quiet()
	n := NewNotifier(m, fakeDirectory{teachers: []checkmark.Participant{
		{ID: 1, FirstName: "Tea", LastName: "Cher", Email: "t@example.org"},
	}})
	sub := checkmark.Submission{TimeModified: 1_700_000_000, Checks: []checkmark.Check{
		{ExampleID: 1, State: checkmark.Checked}, {ExampleID: 2, State: checkmark.CheckedOverwritten}, {ExampleID: 3},
	}}
	n.SubmissionReceived(context.Background(), sheet, checkmark.Participant{ID: 10, FirstName: "Ada"}, sub)
	n.Wait()

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "t@example.org", sent[0].To[0].Address)
	assert.Equal(t, "Ada submitted Sheet 1", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "Checked examples: 2 of 3")
}

func TestSubmissionReceivedWithoutTeachers(t *testing.T) {
	m := NewLogMailer(mail.Address{}, "checkmark").Quiet()
	n := NewNotifier(m, fakeDirectory{err: errors.New("down")})
	n.SubmissionReceived(context.Background(), sheet, checkmark.Participant{}, checkmark.Submission{})
	n = NewNotifier(m, fakeDirectory{})
	n.SubmissionReceived(context.Background(), sheet, checkmark.Participant{}, checkmark.Submission{})
	n.Wait()
	assert.Empty(t, m.Sent())
}

func TestFeedbackMessage(t *testing.T) {
	msg := FeedbackMessage(sheet, checkmark.Participant{FirstName: "Ada", Email: "ada@example.org"},
		checkmark.Feedback{Grade: f64(7.5), Feedback: "well done"})
	assert.Equal(t, "Feedback: Sheet 1", msg.Subject)
	assert.Contains(t, msg.Text, "Grade: 7.50 / 10")
	assert.Contains(t, msg.Text, "well done")

	m := NewLogMailer(mail.Address{}, "checkmark").Quiet()
	n := NewNotifier(m, fakeDirectory{})
	require.NoError(t, n.SendFeedback(context.Background(), sheet, checkmark.Participant{}, checkmark.Feedback{}))
	assert.Empty(t, m.Sent(), "users without address are skipped")
}

func TestSendgridMailer(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendgridMailer("SG.key", mail.Address{Name: "Checkmark", Address: "noreply@example.org"}, "checkmark").WithHost(srv.URL)
	err := m.Send(context.Background(), Message{
		To: []mail.Address{{Name: "Ada", Address: "ada@example.org"}}, Subject: "hi", Text: "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer SG.key", auth)
	ps := got["personalizations"].([]any)
	require.Len(t, ps, 1)
	assert.Equal(t, "[checkmark] hi", ps[0].(map[string]any)["subject"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[]}`, http.StatusBadRequest)
	}))
	defer failing.Close()
	m.WithHost(failing.URL)
	assert.Error(t, m.Send(context.Background(), Message{To: []mail.Address{{Address: "a@b.c"}}}))
}
