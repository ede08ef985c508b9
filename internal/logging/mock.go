package logging

// MockLogger captures log entries so tests can verify what a component
// reported. Derived loggers (WithField, WithError) record into the root
// logger's entry list.
type MockLogger struct {
	Entries []LogEntry

	parent        *MockLogger
	pendingError  error
	pendingFields []Field
}

// LogEntry is a single captured log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

func (m *MockLogger) root() *MockLogger {
	current := m
	for current.parent != nil {
		current = current.parent
	}
	return current
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	root := m.root()
	root.Entries = append(root.Entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  append(append([]Field(nil), m.pendingFields...), fields...),
		Error:   m.pendingError,
	})
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

func (m *MockLogger) WithError(err error) Logger {
	return &MockLogger{parent: m, pendingError: err, pendingFields: m.pendingFields}
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Field{Key: key, Value: value})
}

func (m *MockLogger) WithFields(fields ...Field) Logger {
	return &MockLogger{
		parent:        m,
		pendingError:  m.pendingError,
		pendingFields: append(append([]Field(nil), m.pendingFields...), fields...),
	}
}

// HasMessage reports whether any captured entry matches level and message.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, entry := range m.root().Entries {
		if entry.Level == level && entry.Message == msg {
			return true
		}
	}
	return false
}
