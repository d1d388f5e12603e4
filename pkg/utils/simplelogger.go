// Package utils предоставляет простой key/value логгер для демона.
//
// Логгер пишет в файл (app.log_file) или в stderr, если путь не задан.
// Thread-safe через sync.Mutex.
package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	logOut      io.Writer = os.Stderr
	logFile     *os.File
	logMutex    sync.Mutex
	debugOn     bool
	initialized bool
)

// InitLogger настраивает вывод логгера.
//
// Если path пустой, логи идут в stderr. Иначе файл открывается в режиме
// append и создаётся при отсутствии. debug включает вывод Debug сообщений.
func InitLogger(path string, debug bool) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	debugOn = debug

	if initialized {
		return nil
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		logOut = f
	}

	initialized = true
	return nil
}

// SetOutput перенаправляет логи в w. Используется в тестах.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOut = w
}

// SetDebug включает или выключает Debug сообщения.
func SetDebug(on bool) {
	logMutex.Lock()
	defer logMutex.Unlock()
	debugOn = on
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log("INFO", msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log("ERROR", msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	log("DEBUG", msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log("WARN", msg, keyvals...)
}

// log - внутренняя функция записи в лог.
//
// Формат: [YYYY-MM-DD HH:MM:SS] LEVEL: message key1=value1 key2=value2
// При ошибке записи в файл, fallback на stderr.
func log(level, msg string, keyvals ...any) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if level == "DEBUG" && !debugOn {
		return
	}
	if logOut == nil {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s: %s", timestamp, level, msg)

	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
		}
	}

	line += "\n"

	if _, err := io.WriteString(logOut, line); err != nil {
		fmt.Fprintf(os.Stderr, "%s", line)
		fmt.Fprintf(os.Stderr, "[LOGGER ERROR: WriteString failed: %v]\n", err)
		return
	}

	if logFile != nil {
		if err := logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Sync failed: %v]\n", err)
		}
	}
}

// Close закрывает лог-файл и возвращает вывод в stderr.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
	logOut = os.Stderr
	initialized = false
}
