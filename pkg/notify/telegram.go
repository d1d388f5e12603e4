package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/events"
)

// telegramSender — подмножество *tgbotapi.BotAPI.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет сводки классификаций в чат.
type Telegram struct {
	bot    telegramSender
	chatID int64
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram создаёт бота. Конструктор tgbotapi проверяет токен запросом getMe.
//
// endpoint — шаблон "https://host/bot%s/%s"; пустой означает api.telegram.org.
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

// Name реализует Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Notify реализует Notifier. Отправляются только итоговые события.
func (t *Telegram) Notify(_ context.Context, event events.Event) error {
	var text string

	switch data := event.Data.(type) {
	case events.ClassifiedData:
		plain := func(s string) string { return s }
		quoted := func(s string) string { return "#" + strings.ReplaceAll(s, " ", "_") }

		lines := []string{
			"Classification Success " + reactionSuccess,
			"File: " + data.Name,
			"Timestamp: " + formatTimestamp(event.Timestamp),
			"---",
		}
		lines = append(lines, summaryLines(data, plain, quoted)...)
		text = strings.TrimRight(strings.Join(lines, "\n"), "\n")

	case events.FailedData:
		text = fmt.Sprintf("Classification Fail %s\nFile: %s\nTimestamp: %s\nKind: %s\n---\n%s",
			reactionFailure, data.Name, formatTimestamp(event.Timestamp), data.Kind, errorText(data.Err))

	default:
		return nil
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
