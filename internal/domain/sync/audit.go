package sync

// AuditSink fire-and-forget notifications about session lifecycle.
// Implementations must not block the cycle; the engine ignores sink failures.
type AuditSink interface {
	SessionStarted(session *Session)
	SessionResumed(session *Session)
	SessionCompleted(session *Session)
}

// NopAuditSink discards all notifications.
type NopAuditSink struct{}

func (NopAuditSink) SessionStarted(*Session)   {}
func (NopAuditSink) SessionResumed(*Session)   {}
func (NopAuditSink) SessionCompleted(*Session) {}
