package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"strings"
	"text/template"

	"gopkg.in/gomail.v2"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

const defaultSubject = "Regarding {{.Title}} at {{.Company}}"

const defaultBody = `Hi,

I came across the {{.Title}} opening at {{.Company}} and would like to get in touch.

{{.URL}}

Best regards`

// EmailExecutor sends outreach mail over SMTP. Templates come from config;
// the subject and body render against the lead.
type EmailExecutor struct {
	cfg      config.Mail
	password string
	subject  *template.Template
	body     *template.Template

	// send is swappable for tests.
	send func(m *gomail.Message) error
}

func NewEmailExecutor(cfg config.Mail, password string) (*EmailExecutor, error) {
	subjSrc := cfg.Subject
	if subjSrc == "" {
		subjSrc = defaultSubject
	}
	bodySrc := cfg.Body
	if bodySrc == "" {
		bodySrc = defaultBody
	}
	subj, err := template.New("subject").Parse(subjSrc)
	if err != nil {
		return nil, fmt.Errorf("parse mail subject template: %w", err)
	}
	body, err := template.New("body").Parse(bodySrc)
	if err != nil {
		return nil, fmt.Errorf("parse mail body template: %w", err)
	}

	e := &EmailExecutor{cfg: cfg, password: password, subject: subj, body: body}
	e.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, password)
		return d.DialAndSend(m)
	}
	return e, nil
}

func (e *EmailExecutor) Channel() domain.Channel { return domain.ChannelEmail }

func (e *EmailExecutor) Execute(ctx context.Context, lead domain.Lead) Outcome {
	to := strings.TrimSpace(lead.Contact)
	if to == "" {
		return Outcome{Status: domain.OutcomeNeedsManual, Detail: "no contact address"}
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return Outcome{Status: domain.OutcomeFailed, Detail: "invalid address: " + to}
	}

	var subj, body bytes.Buffer
	if err := e.subject.Execute(&subj, lead); err != nil {
		return Outcome{Status: domain.OutcomeFailed, Detail: "render subject: " + err.Error()}
	}
	if err := e.body.Execute(&body, lead); err != nil {
		return Outcome{Status: domain.OutcomeFailed, Detail: "render body: " + err.Error()}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", to)
	if e.cfg.ReplyTo != "" {
		m.SetHeader("Reply-To", e.cfg.ReplyTo)
	}
	m.SetHeader("Subject", subj.String())
	m.SetBody("text/plain", body.String())

	if err := e.send(m); err != nil {
		return classifySendErr(err)
	}
	return Outcome{Status: domain.OutcomeSent, Detail: "smtp to " + to}
}

// classifySendErr splits SMTP failures into retryable and final. Network
// trouble and 4xx greylisting retry; 5xx rejections do not.
func classifySendErr(err error) Outcome {
	var nerr net.Error
	if errors.As(err, &nerr) {
		return Outcome{Status: domain.OutcomeFailed, Transient: true, Detail: err.Error()}
	}
	msg := err.Error()
	for _, code := range []string{"421", "450", "451", "452"} {
		if strings.Contains(msg, code) {
			return Outcome{Status: domain.OutcomeFailed, Transient: true, Detail: msg}
		}
	}
	return Outcome{Status: domain.OutcomeFailed, Detail: msg}
}
