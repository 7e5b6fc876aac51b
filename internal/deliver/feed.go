package deliver

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"leadengine/internal/config"
	"leadengine/internal/domain"
	"leadengine/internal/events"
	exec "leadengine/internal/exec"
	"leadengine/internal/metrics"
	"leadengine/internal/store"
)

// Feed pushes qualifying leads to paying subscribers. Each run walks the
// active accounts and sends whatever they have not seen yet, up to the
// configured batch size. The delivery log makes re-sends impossible even
// across restarts.
type Feed struct {
	cfg      config.Telegram
	minScore int
	api      exec.TelegramSender
	db       *store.DB
	hub      *events.Hub
}

func New(cfg config.Telegram, minScore int, api exec.TelegramSender, db *store.DB, hub *events.Hub) *Feed {
	return &Feed{cfg: cfg, minScore: minScore, api: api, db: db, hub: hub}
}

// RunOnce delivers one batch to every active subscriber. One failing
// account never blocks the rest.
func (f *Feed) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	accounts, err := store.ListActiveAccounts(ctx, f.db.Pool, now)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if acct.ChatID == 0 {
			continue
		}
		if err := f.deliverTo(ctx, acct); err != nil {
			log.Printf("[feed] user %s: %v", acct.UserID, err)
		}
	}
	return nil
}

func (f *Feed) deliverTo(ctx context.Context, acct domain.EntitlementAccount) error {
	limit := f.cfg.FeedLimit
	if limit <= 0 {
		limit = 5
	}
	leads, err := store.ListUndeliveredForUser(ctx, f.db.Pool, acct.UserID, f.minScore, limit)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		msg := tgbotapi.NewMessage(acct.ChatID, exec.FormatLead(lead))
		msg.ParseMode = "HTML"
		msg.DisableWebPagePreview = true
		if _, err := f.api.Send(msg); err != nil {
			return fmt.Errorf("send lead %s: %w", lead.ID, err)
		}

		fresh, err := store.LogDelivery(ctx, f.db.Pool, acct.UserID, acct.Plan, lead.ID,
			fmt.Sprintf("chat %d", acct.ChatID), time.Now().UTC())
		if err != nil {
			return err
		}
		if fresh {
			metrics.Delivery()
			f.hub.Emit(events.TypeFeedDelivered, map[string]any{
				"user_id": acct.UserID, "lead_id": lead.ID,
			})
		}
	}
	return nil
}
