package detlog

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := newTestLogger(t)

	for _, label := range []string{"chair", "dog", "car"} {
		if err := l.Append("detection", label, map[string]string{"confidence": "0.90"}); err != nil {
			t.Fatalf("Append(%s): %v", label, err)
		}
	}

	events, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Label != "dog" || events[1].Label != "car" {
		t.Errorf("expected newest-last tail [dog car], got [%s %s]", events[0].Label, events[1].Label)
	}
	if events[0].ID == "" || events[0].Timestamp.IsZero() {
		t.Error("event missing assigned ID or timestamp")
	}
	if events[0].Type != "detection" {
		t.Errorf("expected type detection, got %q", events[0].Type)
	}
}

func TestRecentMissingFile(t *testing.T) {
	l := newTestLogger(t)

	events, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent on missing file: %v", err)
	}
	if events != nil {
		t.Errorf("expected no events, got %v", events)
	}
}

func TestFormatRecent(t *testing.T) {
	l := newTestLogger(t)
	l.now = func() time.Time {
		return time.Date(2025, 6, 1, 15, 4, 5, 0, time.UTC)
	}

	if err := l.Append("detection", "knife", map[string]string{"confidence": "0.75"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("detection", "bench", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	lines, err := l.FormatRecent(10)
	if err != nil {
		t.Fatalf("FormatRecent: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "[15:04:05] Detected knife (0.75)" {
		t.Errorf("unexpected line: %q", lines[0])
	}
	if lines[1] != "[15:04:05] Detected bench" {
		t.Errorf("unexpected line: %q", lines[1])
	}
}
