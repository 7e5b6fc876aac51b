package exec

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"leadengine/internal/domain"
)

// TelegramSender is the slice of the bot API the executor needs; tests
// stub it.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramExecutor posts a lead card to a fixed ops chat. It backs the
// "telegram" action channel; the paid subscriber feed reuses FormatLead
// with per-account chat IDs.
type TelegramExecutor struct {
	api    TelegramSender
	chatID int64
}

func NewTelegramExecutor(api TelegramSender, chatID int64) *TelegramExecutor {
	return &TelegramExecutor{api: api, chatID: chatID}
}

func (t *TelegramExecutor) Channel() domain.Channel { return domain.ChannelTelegram }

func (t *TelegramExecutor) Execute(ctx context.Context, lead domain.Lead) Outcome {
	if t.chatID == 0 {
		return Outcome{Status: domain.OutcomeNeedsManual, Detail: "no ops chat configured"}
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatLead(lead))
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		if isTelegramTransient(err) {
			return Outcome{Status: domain.OutcomeFailed, Transient: true, Detail: err.Error()}
		}
		return Outcome{Status: domain.OutcomeFailed, Detail: err.Error()}
	}
	return Outcome{Status: domain.OutcomeSent, Detail: fmt.Sprintf("chat %d", t.chatID)}
}

// FormatLead renders one lead as a compact HTML card.
func FormatLead(l domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", htmlEscape(l.Title))
	if l.Company != "" {
		fmt.Fprintf(&b, "🏢 %s\n", htmlEscape(l.Company))
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", htmlEscape(l.Location))
	}
	fmt.Fprintf(&b, "⭐ score %d\n", l.Score)
	fmt.Fprintf(&b, "\n%s", htmlEscape(l.URL))
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// isTelegramTransient covers flood-wait and server-side hiccups.
func isTelegramTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "retry after") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "timeout")
}
