package infrastructure

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// TelegramNotifier forwards handoff alerts to a staff Telegram chat. Guests
// writing into an AI-disabled conversation expect a human; without a push
// channel the message sits until an admin happens to open the dashboard.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier returns nil when the token is missing or invalid;
// callers treat a nil notifier as "notifications disabled".
func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	if token == "" || chatID == 0 {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("telegram notifier disabled: bot token rejected")
		return nil
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) NotifyHandoff(pageID, guestName, text string) {
	if n == nil || n.bot == nil {
		return
	}
	if guestName == "" {
		guestName = "Guest"
	}
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("💬 *%s* (page %s):\n%s", guestName, pageID, text))
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		log.Warn().Err(err).Str("page_id", pageID).Msg("handoff notification failed")
	}
}
