package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeCheck       EventType = "check"
	EventTypeInfo        EventType = "info"
	EventTypeExtract     EventType = "extract"
	EventTypeFill        EventType = "fill"
	EventTypeGrow        EventType = "grow"
	EventTypePanel       EventType = "panel"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// audited events change the page and are kept in the operations file.
var audited = map[EventType]bool{
	EventTypeFill: true,
	EventTypeGrow: true,
}

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	Source    string    `json:"source,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	auditPath string
	maxSize   int64
}

// NewLogger writes events to stdout and audits page changes under dir.
func NewLogger(dir string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	return &Logger{
		out:       os.Stdout,
		auditPath: filepath.Join(dir, "operations.jsonl"),
		maxSize:   10 * 1024 * 1024, // 10MB
	}
}

// SetOutput redirects the event stream, e.g. through the term writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = fmt.Appendf(nil, `{"error": "failed to marshal event: %v"}`, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if audited[evt.Type] {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.auditPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.auditPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.auditPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.auditPath, oldPath)
}

// LogOperation records one table operation and its result.
func (l *Logger) LogOperation(typ EventType, source, chatID string, success bool, data any) {
	l.Log(Event{
		Type:    typ,
		Source:  source,
		ChatID:  chatID,
		Success: &success,
		Data:    data,
	})
}

func (l *Logger) LogPolicyCheck(source, action, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		Source: source,
		Data: map[string]string{
			"action": action,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogPanel(windowID int, state string) {
	l.Log(Event{
		Type: EventTypePanel,
		Data: map[string]any{
			"window_id": windowID,
			"state":     state,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
