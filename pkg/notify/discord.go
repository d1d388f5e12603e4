package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/events"
	"github.com/ilkoid/mastication/pkg/utils"
)

// Реакции на исходное сообщение.
const (
	reactionThinking = "🤔"
	reactionSuccess  = "🚀"
	reactionFailure  = "❌"
)

// HTTPClient — интерфейс для HTTP клиента (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Discord отмечает реакциями исходные сообщения в fodder канале и
// публикует сводки в канал классификаций.
//
// Входные файлы называются по id сообщения Discord ({message_id}.txt),
// поэтому id берётся из числового stem имени файла.
type Discord struct {
	cfg    config.DiscordConfig
	client HTTPClient
}

var _ Notifier = (*Discord)(nil)

// NewDiscord создаёт адаптер Discord.
func NewDiscord(cfg config.DiscordConfig) *Discord {
	return NewDiscordWithClient(cfg, &http.Client{Timeout: 10 * time.Second})
}

// NewDiscordWithClient — то же, что NewDiscord, но с заданным клиентом.
func NewDiscordWithClient(cfg config.DiscordConfig, client HTTPClient) *Discord {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Discord{cfg: cfg, client: client}
}

// Name реализует Notifier.
func (d *Discord) Name() string { return "discord" }

// Notify реализует Notifier.
func (d *Discord) Notify(ctx context.Context, event events.Event) error {
	switch data := event.Data.(type) {
	case events.StartedData:
		id, ok := messageID(data.Name)
		if !ok {
			utils.Warn("Discord: file name is not a message id, skipping", "file", data.Name)
			return nil
		}
		return d.react(ctx, http.MethodPut, id, reactionThinking)

	case events.ClassifiedData:
		id, ok := messageID(data.Name)
		if !ok {
			return nil
		}
		d.swapReaction(ctx, id, reactionSuccess)
		return d.post(ctx, d.successContent(id, data, event.Timestamp))

	case events.FailedData:
		id, ok := messageID(data.Name)
		if !ok {
			return nil
		}
		d.swapReaction(ctx, id, reactionFailure)
		return d.post(ctx, d.failureContent(id, data, event.Timestamp))
	}
	return nil
}

// messageID извлекает id сообщения из имени файла "1234567890.txt".
func messageID(name string) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if _, err := strconv.ParseUint(stem, 10, 64); err != nil {
		return "", false
	}
	return stem, true
}

func (d *Discord) swapReaction(ctx context.Context, id, emoji string) {
	if err := d.react(ctx, http.MethodDelete, id, reactionThinking); err != nil {
		utils.Debug("Discord: failed to remove thinking reaction", "message_id", id, "error", err)
	}
	if err := d.react(ctx, http.MethodPut, id, emoji); err != nil {
		utils.Warn("Discord: failed to update reaction", "message_id", id, "error", err)
	}
}

func (d *Discord) react(ctx context.Context, method, id, emoji string) error {
	if d.cfg.FodderChannelID == "" {
		utils.Debug("Discord: fodder_channel_id not set, reactions disabled")
		return nil
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s/reactions/%s/@me",
		d.cfg.BaseURL, d.cfg.FodderChannelID, id, url.PathEscape(emoji))
	return d.do(ctx, method, endpoint, nil)
}

func (d *Discord) post(ctx context.Context, content string) error {
	if d.cfg.ClassificationsChannelID == "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages", d.cfg.BaseURL, d.cfg.ClassificationsChannelID)
	return d.do(ctx, http.MethodPost, endpoint, body)
}

func (d *Discord) do(ctx context.Context, method, endpoint string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+d.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Снимаем реакцию, которой нет: не ошибка
	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("discord %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func (d *Discord) messageLink(id string) string {
	if d.cfg.GuildID != "" && d.cfg.FodderChannelID != "" {
		return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", d.cfg.GuildID, d.cfg.FodderChannelID, id)
	}
	return "Message ID: " + id
}

func (d *Discord) successContent(id string, data events.ClassifiedData, ts time.Time) string {
	bold := func(s string) string { return "**" + s + "**" }
	code := func(s string) string { return "`" + s + "`" }

	lines := []string{
		bold("Classification Success") + " " + reactionSuccess,
		bold("Original Message:") + " " + d.messageLink(id),
		bold("Timestamp:") + " " + formatTimestamp(ts),
		"---",
	}
	lines = append(lines, summaryLines(data, bold, code)...)
	return strings.Join(lines, "\n")
}

func (d *Discord) failureContent(id string, data events.FailedData, ts time.Time) string {
	return fmt.Sprintf("**Classification Fail** %s\nOriginal message ID: %s\nTimestamp: %s\nKind: %s\n---\n```\n%s\n```",
		reactionFailure, id, formatTimestamp(ts), data.Kind, errorText(data.Err))
}
