package speech

import (
	"context"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// Edge synthesizes speech via the Microsoft Edge neural TTS service.
// It needs no API key.
type Edge struct {
	voice string
}

var _ Synthesizer = (*Edge)(nil)

// NewEdge creates an Edge synthesizer with the given voice
// (e.g. "en-US-AriaNeural").
func NewEdge(voice string) *Edge {
	if voice == "" {
		voice = "en-US-AriaNeural"
	}
	return &Edge{voice: voice}
}

// Synthesize returns MP3 audio for the text. Each call opens a fresh
// connection; the service does not support reuse across utterances.
func (e *Edge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(e.voice))
	if err != nil {
		return nil, fmt.Errorf("edge tts connect: %w", err)
	}

	done := make(chan struct{})
	var audio []byte
	var synthErr error
	go func() {
		defer close(done)
		audio, synthErr = communicate.Stream()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	if synthErr != nil {
		return nil, fmt.Errorf("edge tts synthesize: %w", synthErr)
	}
	return audio, nil
}

// Close is a no-op; connections are per utterance.
func (e *Edge) Close() error { return nil }
