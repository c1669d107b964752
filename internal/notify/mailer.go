// Package notify sends checkmark mail: submission notices to teachers and
// feedback notices to students.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	To      []mail.Address
	Subject string
	Text    string
}

func (m Message) HasRecipients() bool { return len(m.To) > 0 }

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the process log. It is used when no mail
// provider is configured and in tests.
type LogMailer struct {
	from   mail.Address
	prefix string
	quiet  bool

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(from mail.Address, appName string) *LogMailer {
	return &LogMailer{from: from, prefix: "[" + appName + "] "}
}

// Quiet disables log output; messages are still recorded.
func (m *LogMailer) Quiet() *LogMailer { m.quiet = true; return m }

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if !m.quiet {
		log.Printf("mail from=%s to=%s subject=%q\n%s", m.from.String(), joinAddresses(msg.To), m.prefix+msg.Subject, msg.Text)
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func joinAddresses(addrs []mail.Address) string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer posts messages to the SendGrid v3 API.
type SendgridMailer struct {
	key    string
	host   string
	from   *sgmail.Email
	prefix string
}

func NewSendgridMailer(key string, from mail.Address, appName string) *SendgridMailer {
	return &SendgridMailer{
		key:    key,
		host:   sendgridHost,
		from:   sgmail.NewEmail(from.Name, from.Address),
		prefix: "[" + appName + "] ",
	}
}

// WithHost points the mailer at another API host.
func (m *SendgridMailer) WithHost(host string) *SendgridMailer { m.host = host; return m }

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.prefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return v3
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
