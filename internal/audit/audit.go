// Package audit logs session lifecycle events for operators.
package audit

import (
	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

// Log writes session lifecycle events to the application logger.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With(slog.String("component", "audit"))}
}

func (a *Log) SessionStarted(session *sync.Session) {
	a.log.Info("session started",
		"session_id", session.ID,
		"client_id", session.ClientID)
}

func (a *Log) SessionResumed(session *sync.Session) {
	a.log.Info("session resumed",
		"session_id", session.ID,
		"client_id", session.ClientID,
		"completed", session.CompletedOperations,
		"total", session.TotalOperations)
}

func (a *Log) SessionCompleted(session *sync.Session) {
	a.log.Info("session completed",
		"session_id", session.ID,
		"client_id", session.ClientID,
		"total", session.TotalOperations)
}
