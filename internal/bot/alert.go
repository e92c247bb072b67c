package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts operator notices to a Telegram chat.
type TelegramAlerter struct {
	api    messageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegramAlerter(token string, chatID int64, logger *zap.Logger) (*TelegramAlerter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramAlerter{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Alert posts text to the operator chat. The Bot API client takes no context,
// so the message is sent even after the caller's context is done.
func (a *TelegramAlerter) Alert(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, err := a.api.Send(msg); err != nil {
		a.logger.Error("Failed to send alert",
			zap.Error(err),
			zap.Int64("chat_id", a.chatID))
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}
