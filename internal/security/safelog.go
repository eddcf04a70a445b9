package security

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// sensitiveFields contains field names that should be masked in logs.
var sensitiveFields = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"password_hash": true,
	"reset_code":    true,
	"code":          true,
	"token":         true,
	"secret":        true,
}

// SafeLogger wraps zerolog.Logger to mask credentials before they are written.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger creates a new safe logger that masks sensitive data.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

// Debug starts a debug event.
func (sl *SafeLogger) Debug() *SafeEvent {
	return &SafeEvent{event: sl.logger.Debug()}
}

// Info starts an info event.
func (sl *SafeLogger) Info() *SafeEvent {
	return &SafeEvent{event: sl.logger.Info()}
}

// Warn starts a warning event.
func (sl *SafeLogger) Warn() *SafeEvent {
	return &SafeEvent{event: sl.logger.Warn()}
}

// Error starts an error event.
func (sl *SafeLogger) Error() *SafeEvent {
	return &SafeEvent{event: sl.logger.Error()}
}

// SafeEvent wraps zerolog.Event to mask sensitive data.
type SafeEvent struct {
	event *zerolog.Event
}

// Str adds a string field, masking if sensitive.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if isSensitiveField(key) {
		se.event = se.event.Str(key, MaskCredential(val))
	} else {
		se.event = se.event.Str(key, MaskSensitive(val))
	}
	return se
}

// Bool adds a boolean field.
func (se *SafeEvent) Bool(key string, val bool) *SafeEvent {
	se.event = se.event.Bool(key, val)
	return se
}

// Int adds an integer field.
func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

// Err adds an error field, masking sensitive data in the error message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Err(fmt.Errorf("%s", MaskSensitive(err.Error())))
	}
	return se
}

// Msg sends the event with a message.
func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(MaskSensitive(msg))
}

func isSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}
