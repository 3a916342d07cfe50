// Package notify surfaces user-facing messages.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultLifetime is how long an error message stays visible.
const DefaultLifetime = 10 * time.Second

// historyCap bounds the messages kept for status output.
const historyCap = 32

// Message is a user-facing notification.
type Message struct {
	Title       string
	Text        string
	Lifetime    time.Duration
	Dismissable bool
	ShownAt     time.Time
}

// ErrorMessage builds the standard error notification for text.
func ErrorMessage(text string) Message {
	return Message{
		Title:       "Error",
		Text:        text,
		Lifetime:    DefaultLifetime,
		Dismissable: true,
	}
}

// Log shows messages as structured log records and keeps a short history.
type Log struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []Message
}

// NewLog creates a sink writing to logger, or the default logger when nil.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, now: time.Now}
}

// Show logs msg. Fire-and-forget.
func (l *Log) Show(msg Message) {
	msg.ShownAt = l.now()
	l.logger.Warn(msg.Text,
		"title", msg.Title,
		"lifetime", msg.Lifetime,
		"dismissable", msg.Dismissable,
	)

	l.mu.Lock()
	if len(l.history) == historyCap {
		copy(l.history, l.history[1:])
		l.history = l.history[:historyCap-1]
	}
	l.history = append(l.history, msg)
	l.mu.Unlock()
}

// Recent returns shown messages, oldest first.
func (l *Log) Recent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.history...)
}
