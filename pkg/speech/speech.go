// Package speech converts announcements to audio and plays them.
//
// The Channel is the public entry point for the rest of the system: it
// queues announcement text, drops everything while muted, and drains
// the queue through a Synthesizer and Player on a single worker so
// announcements never overlap.
package speech

import "context"

// Synthesizer converts text to audio bytes.
type Synthesizer interface {
	// Synthesize returns MP3-encoded audio for the text.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Player plays synthesized audio to completion.
type Player interface {
	// Play blocks until the audio finishes or ctx is canceled.
	Play(ctx context.Context, audio []byte) error
}
