package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discordCall struct {
	Method  string
	Path    string
	Auth    string
	Content string
}

// fakeDiscord записывает вызовы API и отвечает как Discord.
func fakeDiscord(t *testing.T) (*httptest.Server, func() []discordCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []discordCall
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := discordCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if r.Method == http.MethodPost {
			var body map[string]string
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			call.Content = body["content"]
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"1"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []discordCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]discordCall(nil), calls...)
	}
}

func discordConfig(baseURL string) config.DiscordConfig {
	return config.DiscordConfig{
		Enabled:                  true,
		Token:                    "bot-token",
		BaseURL:                  baseURL + "/",
		FodderChannelID:          "111",
		ClassificationsChannelID: "222",
		GuildID:                  "333",
	}
}

var eventTime = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func TestDiscord_StartedAddsThinkingReaction(t *testing.T) {
	srv, calls := fakeDiscord(t)
	d := NewDiscord(discordConfig(srv.URL))

	err := d.Notify(context.Background(), events.Event{
		Type: events.EventStarted,
		Data: events.StartedData{FileRef: events.FileRef{Name: "987654321.txt"}},
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].Method)
	assert.Equal(t, "/channels/111/messages/987654321/reactions/🤔/@me", got[0].Path)
	assert.Equal(t, "Bot bot-token", got[0].Auth)
}

func TestDiscord_ClassifiedSwapsReactionAndPosts(t *testing.T) {
	srv, calls := fakeDiscord(t)
	d := NewDiscord(discordConfig(srv.URL))

	sub := "appointment"
	err := d.Notify(context.Background(), events.Event{
		Type:      events.EventClassified,
		Timestamp: eventTime,
		Data: events.ClassifiedData{
			FileRef:     events.FileRef{Name: "987654321.txt"},
			Category:    "events_calendar",
			Confidence:  0.95,
			Subcategory: &sub,
			Summary:     "Dentist visit.",
			Tags:        []string{"dentist", "health"},
		},
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, http.MethodDelete, got[0].Method)
	assert.Equal(t, "/channels/111/messages/987654321/reactions/🤔/@me", got[0].Path)
	assert.Equal(t, http.MethodPut, got[1].Method)
	assert.Equal(t, "/channels/111/messages/987654321/reactions/🚀/@me", got[1].Path)
	assert.Equal(t, http.MethodPost, got[2].Method)
	assert.Equal(t, "/channels/222/messages", got[2].Path)

	content := got[2].Content
	assert.Contains(t, content, "**Classification Success** 🚀")
	assert.Contains(t, content, "https://discord.com/channels/333/111/987654321")
	assert.Contains(t, content, "**Timestamp:** 2024-01-02 10:00:00")
	assert.Contains(t, content, "**Category:** events_calendar")
	assert.Contains(t, content, "**Confidence:** 95.0%")
	assert.Contains(t, content, "**Subcategory:** appointment")
	assert.Contains(t, content, "**Tags:** `dentist`, `health`")
}

func TestDiscord_FailedPostsTruncatedError(t *testing.T) {
	srv, calls := fakeDiscord(t)
	d := NewDiscord(discordConfig(srv.URL))

	err := d.Notify(context.Background(), events.Event{
		Type: events.EventFailed,
		Data: events.FailedData{
			FileRef: events.FileRef{Name: "42.txt"},
			Kind:    "transport",
			Err:     errors.New(strings.Repeat("x", 5000)),
		},
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, "/channels/111/messages/42/reactions/❌/@me", got[1].Path)
	assert.Contains(t, got[2].Content, "**Classification Fail** ❌")
	assert.Contains(t, got[2].Content, "Kind: transport")
	assert.Contains(t, got[2].Content, "... (truncated)")
	assert.Less(t, len(got[2].Content), 2000)
}

func TestDiscord_NonNumericNameSkipped(t *testing.T) {
	srv, calls := fakeDiscord(t)
	d := NewDiscord(discordConfig(srv.URL))

	for _, ev := range []events.Event{
		{Type: events.EventStarted, Data: events.StartedData{FileRef: events.FileRef{Name: "notes.txt"}}},
		{Type: events.EventClassified, Data: events.ClassifiedData{FileRef: events.FileRef{Name: "notes.txt"}}},
		{Type: events.EventSkipped, Data: events.SkippedData{FileRef: events.FileRef{Name: "1.txt"}}},
	} {
		require.NoError(t, d.Notify(context.Background(), ev))
	}
	assert.Empty(t, calls())
}

func TestDiscord_PostErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"message":"Missing Access"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(discordConfig(srv.URL))
	err := d.Notify(context.Background(), events.Event{
		Type: events.EventClassified,
		Data: events.ClassifiedData{FileRef: events.FileRef{Name: "1.txt"}, Category: "ideas"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "Missing Access")
}

func TestDiscord_NoChannelsConfigured(t *testing.T) {
	srv, calls := fakeDiscord(t)
	cfg := discordConfig(srv.URL)
	cfg.FodderChannelID = ""
	cfg.ClassificationsChannelID = ""
	d := NewDiscord(cfg)

	require.NoError(t, d.Notify(context.Background(), events.Event{
		Type: events.EventClassified,
		Data: events.ClassifiedData{FileRef: events.FileRef{Name: "1.txt"}},
	}))
	assert.Empty(t, calls())
}
