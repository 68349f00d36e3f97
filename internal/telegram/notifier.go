// Package telegram sends operator alerts to a private Telegram chat.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier posts messages to a fixed chat. It satisfies the poller's
// Notifier interface and is used for failure alerts that should reach a
// human but not the community.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewNotifier authenticates against the Bot API.
func NewNotifier(token string, chatID int64, log *zap.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info("telegram ops notifier ready", zap.String("account", api.Self.UserName))
	return &Notifier{api: api, chatID: chatID, log: log}, nil
}

// Announce sends one plain-text message to the ops chat.
func (n *Notifier) Announce(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
