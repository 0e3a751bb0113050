// Package notify provides Notifier implementations: a log-backed one for the
// daemon (the UI consumes notifications out of process) and an in-memory one
// for tests.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/fintwitch/sessiond/internal/domain"
)

// LogNotifier surfaces transient notifications through the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier writing to the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Push logs one transient notification.
func (n *LogNotifier) Push(msg string, style domain.NotifyStyle) {
	n.log.Info().Str("style", string(style)).Msg(msg)
}

// Memory records notifications for assertions in tests.
type Memory struct {
	mu     sync.Mutex
	pushed []Pushed
}

// Pushed is one recorded notification.
type Pushed struct {
	Msg   string
	Style domain.NotifyStyle
}

// Push records the notification.
func (m *Memory) Push(msg string, style domain.NotifyStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed = append(m.pushed, Pushed{Msg: msg, Style: style})
}

// All returns the recorded notifications in push order.
func (m *Memory) All() []Pushed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pushed(nil), m.pushed...)
}
