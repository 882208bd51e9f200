package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// DefaultFromName is the display name on operator alerts.
const DefaultFromName = "Loop Safety"

// EmailSender delivers a rendered operator alert.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered alert. Text is always sent; HTML is optional.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Identity is the From address of outgoing alerts.
type Identity struct {
	Email string
	Name  string
}

func (i Identity) withDefaults() Identity {
	i.Email = strings.TrimSpace(i.Email)
	if strings.TrimSpace(i.Name) == "" {
		i.Name = DefaultFromName
	}
	return i
}

// Escalation tells operators that an account was suspended or terminated.
type Escalation struct {
	AccountID  string
	Action     string
	Message    string
	OccurredAt time.Time
}

type escalationView struct {
	AccountID  string
	Action     string
	Message    string
	OccurredAt string
}

var (
	escalationText = texttemplate.Must(texttemplate.New("escalation.txt").Parse(
		`Account {{.AccountID}} received a {{.Action}}.

Message sent to the account holder:
{{.Message}}

Time: {{.OccurredAt}}
`))

	escalationHTML = htmltemplate.Must(htmltemplate.New("escalation.html").Parse(
		`<p>Account <strong>{{.AccountID}}</strong> received a <strong>{{.Action}}</strong>.</p>
<p>Message sent to the account holder:</p>
<blockquote>{{.Message}}</blockquote>
<p>Time: {{.OccurredAt}}</p>
`))

	headerSafe = strings.NewReplacer("\r", " ", "\n", " ")
)

// Render builds the alert for to. Every field is escaped in the HTML part and
// line breaks are stripped from the subject.
func (e Escalation) Render(to string) (EmailMessage, error) {
	view := escalationView{
		AccountID:  e.AccountID,
		Action:     e.Action,
		Message:    e.Message,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
	}

	var text, html bytes.Buffer
	if err := escalationText.Execute(&text, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render text: %w", err)
	}
	if err := escalationHTML.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render html: %w", err)
	}
	return EmailMessage{
		To:      to,
		Subject: headerSafe.Replace(fmt.Sprintf("Account %s: %s", e.Action, e.AccountID)),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// StubEmailSender logs instead of sending. It is the default outside production.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("operator alert not delivered, email disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}
