package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wyuan/futures_settle_arb/internal/domain"
	"go.uber.org/zap"
)

// TelegramNotifier pushes rendered events to a fixed chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &TelegramNotifier{api: bot, chatID: chatID, logger: logger}, nil
}

func (n *TelegramNotifier) Send(ctx context.Context, event *domain.NotifyEvent) error {
	text := event.HTML
	parseMode := tgbotapi.ModeHTML
	if text == "" {
		text = event.Title + "\n" + event.Message
		parseMode = ""
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = parseMode
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogNotifier is the fallback channel: events land in the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, event *domain.NotifyEvent) error {
	n.logger.Info("notification",
		zap.String("kind", event.Kind),
		zap.String("symbol", event.Symbol),
		zap.String("title", event.Title),
		zap.String("message", event.Message))
	return nil
}
