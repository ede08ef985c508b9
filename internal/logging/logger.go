// Package logging decouples the application from the underlying logging
// framework. Components receive a Logger; the logrus adapter below is the
// only production implementation.
package logging

// Logger is the structured logging interface used throughout the
// application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a logger with an error field attached.
	WithError(err error) Logger

	// WithField returns a logger with a single field attached.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger with multiple fields attached.
	WithFields(fields ...Field) Logger
}

// Field is one key-value pair of log context.
type Field struct {
	Key   string
	Value interface{}
}

// Standardized field names so log output stays filterable across packages.
const (
	FieldBank    = "bank"
	FieldAccount = "account"
	FieldCard    = "card"
	FieldSeq     = "seq"
	FieldAmount  = "amount"
	FieldDate    = "date"
	FieldRule    = "rule"
	FieldCount   = "count"
	FieldAttempt = "attempt"
)
