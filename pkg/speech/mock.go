package speech

import (
	"context"
	"sync"
)

// MockSynthesizer is a configurable synthesizer for testing.
type MockSynthesizer struct {
	// SynthesizeFunc is called when Synthesize is invoked. When nil,
	// the text itself is returned as audio bytes.
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	mu    sync.Mutex
	texts []string
}

var _ Synthesizer = (*MockSynthesizer)(nil)

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return []byte(text), nil
}

func (m *MockSynthesizer) Close() error { return nil }

// Texts returns the texts synthesized so far.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// MockPlayer records played audio for testing.
type MockPlayer struct {
	// PlayFunc is called when Play is invoked. When nil, Play succeeds.
	PlayFunc func(ctx context.Context, audio []byte) error

	mu     sync.Mutex
	played [][]byte
}

var _ Player = (*MockPlayer)(nil)

func (m *MockPlayer) Play(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	m.played = append(m.played, audio)
	m.mu.Unlock()

	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, audio)
	}
	return nil
}

// Played returns the audio buffers played so far.
func (m *MockPlayer) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.played))
	copy(out, m.played)
	return out
}
