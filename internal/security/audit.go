package security

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	AuditRegister       AuditEventType = "REGISTER"
	AuditLogin          AuditEventType = "LOGIN"
	AuditLoginExternal  AuditEventType = "LOGIN_EXTERNAL"
	AuditLogout         AuditEventType = "LOGOUT"
	AuditAuthFailed     AuditEventType = "AUTH_FAILED"
	AuditResetRequested AuditEventType = "PASSWORD_RESET_REQUESTED"
	AuditResetCompleted AuditEventType = "PASSWORD_RESET_COMPLETED"
	AuditPasswordChange AuditEventType = "PASSWORD_CHANGED"
	AuditSessionCleared AuditEventType = "SESSION_CLEARED"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// Auditor records authentication outcomes.
type Auditor interface {
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditor discards every event.
type NopAuditor struct{}

// Log implements Auditor.
func (NopAuditor) Log(context.Context, AuditEvent) error { return nil }

// AuditLogger writes audit events as JSON lines to a rotated file.
type AuditLogger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
	now       func() time.Time
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "tradejournal", "audit"),
		MaxSize:    10,
		MaxBackups: 10,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return newAuditLogger(writer), nil
}

func newAuditLogger(w io.WriteCloser) *AuditLogger {
	return &AuditLogger{
		writer:    w,
		sessionID: generateSessionID(),
		now:       time.Now,
	}
}

// Log logs an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = al.now().UTC()
	event.SessionID = al.sessionID
	if event.ErrorMsg != "" {
		event.ErrorMsg = MaskSensitive(event.ErrorMsg)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}

func generateSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
