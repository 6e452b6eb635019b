// Package detlog records notable detection events to an append-only
// JSONL file, one event per line.
package detlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one logged occurrence.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Label     string            `json:"label"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Logger appends events to a JSONL file.
type Logger struct {
	mu   sync.Mutex
	path string

	// now is replaceable in tests
	now func() time.Time
}

// New creates a logger writing to path, creating parent directories
// as needed.
func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Logger{path: path, now: time.Now}, nil
}

// Append writes one event. The ID and timestamp are assigned here.
func (l *Logger) Append(eventType, label string, meta map[string]string) error {
	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Type:      eventType,
		Label:     label,
		Metadata:  meta,
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Recent returns up to n most recent events, newest last. Lines that
// fail to parse are skipped.
func (l *Logger) Recent(n int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// FormatRecent renders up to n recent events as human-readable lines
// like "[15:04:05] Detected chair (0.87)".
func (l *Logger) FormatRecent(n int) ([]string, error) {
	events, err := l.Recent(n)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := fmt.Sprintf("[%s] Detected %s", ev.Timestamp.Format("15:04:05"), ev.Label)
		if conf, ok := ev.Metadata["confidence"]; ok {
			line += fmt.Sprintf(" (%s)", conf)
		}
		lines = append(lines, line)
	}
	return lines, nil
}
