package bounce

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"leadengine/internal/config"
	"leadengine/internal/events"
	"leadengine/internal/store"
)

// Monitor sweeps the outreach mailbox for delivery-status notifications
// and turns hard bounces into blocklist entries, so a dead address is
// never contacted twice.
type Monitor struct {
	cfg      config.Bounce
	password string
	db       *store.DB
	hub      *events.Hub
}

func New(cfg config.Bounce, password string, db *store.DB, hub *events.Hub) *Monitor {
	return &Monitor{cfg: cfg, password: password, db: db, hub: hub}
}

// SweepOnce processes one batch of unseen messages. Bounce-bearing
// messages are marked seen only after their recipients are recorded.
func (m *Monitor) SweepOnce(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.IMAPHost, m.cfg.IMAPPort)
	c, err := dialAndLogin(ctx, addr, m.cfg.Username, m.password)
	if err != nil {
		return err
	}
	defer logoutAndClose(c)

	mailbox := m.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	msgs, err := fetchUnseen(ctx, c, m.cfg.MaxMessages)
	if err != nil {
		return err
	}

	var handled []imap.UID
	for _, msg := range msgs {
		recipient := ExtractBouncedRecipient(msg.Subject, msg.Body)
		if recipient == "" {
			continue
		}
		if err := m.record(ctx, recipient, msg.Subject); err != nil {
			log.Printf("[bounce] record %s: %v", recipient, err)
			continue
		}
		handled = append(handled, msg.UID)
	}

	if len(handled) > 0 {
		if err := markSeen(c, handled); err != nil {
			return err
		}
		log.Printf("[bounce] handled %d bounce(s)", len(handled))
	}
	return nil
}

func (m *Monitor) record(ctx context.Context, recipient, subject string) error {
	now := time.Now().UTC()
	if err := store.AddToBlocklist(ctx, m.db.Pool, recipient, "bounce: "+subject, now); err != nil {
		return err
	}
	if _, err := store.MarkContactBounced(ctx, m.db.Pool, recipient, "bounce: "+subject); err != nil {
		return err
	}
	m.hub.Emit(events.TypeContactBlocked, map[string]any{
		"contact": recipient, "reason": "bounce",
	})
	return nil
}

var bounceSubjects = []string{
	"undeliverable",
	"undelivered mail returned to sender",
	"delivery status notification (failure)",
	"failure notice",
	"mail delivery failed",
	"returned mail",
	"delivery has failed",
}

var (
	finalRecipientRe = regexp.MustCompile(`(?i)final-recipient:\s*rfc822;\s*<?([^\s>;]+@[^\s>;]+)`)
	originalToRe     = regexp.MustCompile(`(?i)x-failed-recipients:\s*<?([^\s>;,]+@[^\s>;,]+)`)
	anyAddrRe        = regexp.MustCompile(`<?([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>?`)
)

// ExtractBouncedRecipient decides whether a message is a bounce and, if
// so, which address it bounced for. Subject gating comes first so regular
// replies are never parsed for addresses.
func ExtractBouncedRecipient(subject, body string) string {
	low := strings.ToLower(subject)
	isBounce := false
	for _, s := range bounceSubjects {
		if strings.Contains(low, s) {
			isBounce = true
			break
		}
	}
	if !isBounce {
		return ""
	}

	if m := finalRecipientRe.FindStringSubmatch(body); m != nil {
		return strings.ToLower(m[1])
	}
	if m := originalToRe.FindStringSubmatch(body); m != nil {
		return strings.ToLower(m[1])
	}
	if m := anyAddrRe.FindStringSubmatch(body); m != nil {
		addr := strings.ToLower(m[1])
		// DSNs are sent by mailer daemons; skip their own address
		if !strings.HasPrefix(addr, "mailer-daemon") && !strings.HasPrefix(addr, "postmaster") {
			return addr
		}
	}
	return ""
}

type message struct {
	UID     imap.UID
	Subject string
	Body    string
}

func dialAndLogin(ctx context.Context, addr, username, password string) (*imapclient.Client, error) {
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func fetchUnseen(ctx context.Context, c *imapclient.Client, max int) ([]message, error) {
	if max <= 0 {
		max = 50
	}
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, -1, 0),
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []message
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		msg := message{UID: buf.UID}
		if buf.Envelope != nil {
			msg.Subject = buf.Envelope.Subject
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			msg.Body = string(b)
		}
		out = append(out, msg)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func markSeen(c *imapclient.Client, uids []imap.UID) error {
	cmd := c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[bounce] imap logout: %v", err)
	}
	_ = c.Close()
}
