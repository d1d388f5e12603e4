// Package notify доставляет события конвейера во внешние каналы.
//
// Dispatcher читает events.Subscriber и раздаёт каждое событие всем
// Notifier'ам. Ошибки доставки только логируются: уведомления никогда
// не влияют на обработку файлов.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/mastication/pkg/events"
	"github.com/ilkoid/mastication/pkg/utils"
)

// Notifier — адаптер одного канала уведомлений.
type Notifier interface {
	// Name возвращает короткое имя для логов.
	Name() string

	// Notify обрабатывает событие. Неинтересные события игнорируются.
	Notify(ctx context.Context, event events.Event) error
}

// DefaultTimeout ограничивает доставку одного события одному адаптеру.
const DefaultTimeout = 15 * time.Second

// Dispatcher раздаёт события адаптерам.
type Dispatcher struct {
	sub       events.Subscriber
	notifiers []Notifier
	timeout   time.Duration
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(sub events.Subscriber, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		sub:       sub,
		notifiers: notifiers,
		timeout:   DefaultTimeout,
	}
}

// Run читает события, пока канал не закроется.
//
// Отмена ctx не прерывает чтение: события, уже попавшие в буфер,
// доставляются до закрытия канала.
func (d *Dispatcher) Run(ctx context.Context) {
	base := context.WithoutCancel(ctx)

	for event := range d.sub.Events() {
		for _, n := range d.notifiers {
			d.deliver(base, n, event)
		}
	}
	d.sub.Close()
}

func (d *Dispatcher) deliver(ctx context.Context, n Notifier, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		utils.Warn("Notification failed",
			"notifier", n.Name(),
			"event", string(event.Type),
			"error", err)
	}
}

// maxErrorChars — лимит текста ошибки в сообщении (лимит Discord — 2000).
const maxErrorChars = 1800

// truncateError обрезает текст ошибки до maxErrorChars символов.
func truncateError(s string) string {
	count := 0
	for i := range s {
		if count == maxErrorChars {
			return s[:i] + "... (truncated)"
		}
		count++
	}
	return s
}

// summaryLines — общие строки сводки об успешной классификации.
func summaryLines(data events.ClassifiedData, bold func(string) string, code func(string) string) []string {
	lines := []string{
		bold("Category:") + " " + data.Category,
		bold("Confidence:") + " " + fmt.Sprintf("%.1f%%", data.Confidence*100),
	}
	if data.Subcategory != nil && *data.Subcategory != "" {
		lines = append(lines, bold("Subcategory:")+" "+*data.Subcategory)
	}
	lines = append(lines, "", bold("Summary:")+" "+data.Summary, "")
	if len(data.Tags) > 0 {
		tags := make([]string, len(data.Tags))
		for i, t := range data.Tags {
			tags[i] = code(t)
		}
		lines = append(lines, bold("Tags:")+" "+strings.Join(tags, ", "))
	}
	return lines
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02 15:04:05")
}

func errorText(err error) string {
	if err == nil {
		return "Unknown error"
	}
	return truncateError(err.Error())
}
