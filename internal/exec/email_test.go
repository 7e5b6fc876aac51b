package exec

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

func testMailCfg() config.Mail {
	return config.Mail{
		SMTPHost: "smtp.example.com", SMTPPort: 587,
		Username: "bot@example.com", From: "bot@example.com",
	}
}

func TestEmailExecuteSendsRenderedTemplate(t *testing.T) {
	cfg := testMailCfg()
	cfg.Subject = "About {{.Title}}"
	ex, err := NewEmailExecutor(cfg, "secret")
	require.NoError(t, err)

	var sent *gomail.Message
	ex.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	out := ex.Execute(context.Background(), domain.Lead{
		Title: "Go Engineer", Company: "Acme",
		Contact: "jobs@acme.com", URL: "https://acme.example/1",
	})
	assert.Equal(t, domain.OutcomeSent, out.Status)
	assert.False(t, out.Transient)

	require.NotNil(t, sent)
	assert.Equal(t, []string{"jobs@acme.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"About Go Engineer"}, sent.GetHeader("Subject"))
}

func TestEmailExecuteNoContact(t *testing.T) {
	ex, err := NewEmailExecutor(testMailCfg(), "secret")
	require.NoError(t, err)
	ex.send = func(m *gomail.Message) error {
		t.Fatal("send must not be called")
		return nil
	}

	out := ex.Execute(context.Background(), domain.Lead{Title: "T"})
	assert.Equal(t, domain.OutcomeNeedsManual, out.Status)
}

func TestEmailExecuteInvalidAddress(t *testing.T) {
	ex, err := NewEmailExecutor(testMailCfg(), "secret")
	require.NoError(t, err)
	ex.send = func(m *gomail.Message) error {
		t.Fatal("send must not be called")
		return nil
	}

	out := ex.Execute(context.Background(), domain.Lead{Title: "T", Contact: "not-an-address"})
	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.False(t, out.Transient, "bad addresses never retry")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestEmailClassifiesFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"network timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, true},
		{"greylisting 451", errors.New("451 4.7.1 try again later"), true},
		{"hard reject 550", errors.New("550 5.1.1 user unknown"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex, err := NewEmailExecutor(testMailCfg(), "secret")
			require.NoError(t, err)
			ex.send = func(m *gomail.Message) error { return tc.err }

			out := ex.Execute(context.Background(), domain.Lead{Title: "T", Contact: "a@b.com"})
			assert.Equal(t, domain.OutcomeFailed, out.Status)
			assert.Equal(t, tc.transient, out.Transient)
		})
	}
}

func TestNewEmailExecutorBadTemplate(t *testing.T) {
	cfg := testMailCfg()
	cfg.Body = "{{.Broken"
	_, err := NewEmailExecutor(cfg, "secret")
	assert.Error(t, err)
}
