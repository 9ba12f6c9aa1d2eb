package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	LoginID       string
	DeviceID      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogAccountEvent logs account state transitions (lock, unlock)
func (al *AuditLogger) LogAccountEvent(event AuditEvent) {
	al.log("account", event)
}

// LogSessionEvent logs session lifecycle events (logout, revocation, eviction)
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	al.log("session", event)
}

// LogPasswordChange logs password change events
func (al *AuditLogger) LogPasswordChange(loginID string, success bool) {
	al.log("password", AuditEvent{
		EventType: "password_change",
		LoginID:   loginID,
		Success:   success,
	})
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.LoginID != "" {
		attrs = append(attrs, slog.String("login_id", event.LoginID))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
