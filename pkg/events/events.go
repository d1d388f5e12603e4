// Package events предоставляет Port для событий конвейера обработки файлов.
//
// Процессор публикует события через Emitter, а адаптеры уведомлений
// (pkg/notify) читают их через Subscriber. Библиотечная логика не знает,
// кто и как доставляет уведомления.
//
// # Basic Usage
//
//	emitter := events.NewChanEmitter(64)
//	proc := processor.New(..., processor.WithEmitter(emitter))
//
//	sub := emitter.Subscribe()
//	for event := range sub.Events() {
//	    switch data := event.Data.(type) {
//	    case events.ClassifiedData:
//	        fmt.Println(data.Name, data.Category)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события конвейера.
type EventType string

const (
	// EventStarted отправляется перед вызовом LLM для файла.
	EventStarted EventType = "started"

	// EventClassified отправляется после записи артефакта.
	EventClassified EventType = "classified"

	// EventFailed отправляется при ошибке обработки файла.
	EventFailed EventType = "failed"

	// EventSkipped отправляется, когда файл уже обработан ранее.
	EventSkipped EventType = "skipped"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс.
type EventData interface {
	eventData()
}

// FileRef идентифицирует попытку обработки файла.
type FileRef struct {
	AttemptID string // uuid попытки, связывает Started с Classified/Failed
	Name      string // Базовое имя входного файла
	Path      string
}

// StartedData содержит данные для EventStarted.
type StartedData struct {
	FileRef
	Content string // Текст, отправленный на классификацию
}

func (StartedData) eventData() {}

// ClassifiedData содержит данные для EventClassified.
type ClassifiedData struct {
	FileRef
	Category    string
	Confidence  float64
	Subcategory *string
	Summary     string
	Tags        []string
	OutputPath  string
}

func (ClassifiedData) eventData() {}

// FailedData содержит данные для EventFailed.
type FailedData struct {
	FileRef
	Kind string // Вид ошибки: transport, rate_limit, response_format, ...
	Err  error
}

func (FailedData) eventData() {}

// SkippedData содержит данные для EventSkipped.
type SkippedData struct {
	FileRef
	Reason string
}

func (SkippedData) eventData() {}

// Event представляет событие конвейера.
//
// Для каждого EventType существует соответствующий тип данных:
//   - EventStarted: StartedData
//   - EventClassified: ClassifiedData
//   - EventFailed: FailedData
//   - EventSkipped: SkippedData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
type Emitter interface {
	// Emit отправляет событие. Если context отменён, событие теряется.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при закрытии источника.
	Events() <-chan Event

	// Close освобождает ресурсы подписчика.
	Close()
}

// NopEmitter отбрасывает все события.
type NopEmitter struct{}

// Emit ничего не делает.
func (NopEmitter) Emit(context.Context, Event) {}

var _ Emitter = NopEmitter{}
