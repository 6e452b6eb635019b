package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// ALSAPlayer decodes MP3 audio and pipes raw PCM to aplay.
type ALSAPlayer struct {
	// Device is the ALSA device name. Empty uses the default device.
	Device string
}

var _ Player = (*ALSAPlayer)(nil)

// Play decodes the MP3 bytes and blocks until aplay finishes.
func (p *ALSAPlayer) Play(ctx context.Context, audio []byte) error {
	decoder, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	// go-mp3 always outputs 16-bit stereo at the source sample rate
	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-c", "2",
		"-r", strconv.Itoa(decoder.SampleRate()),
	}
	if p.Device != "" {
		args = append(args, "-D", p.Device)
	}

	cmd := exec.CommandContext(ctx, "aplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("aplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aplay: %w", err)
	}

	_, copyErr := io.Copy(stdin, decoder)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("aplay: %w", err)
	}
	if copyErr != nil {
		return fmt.Errorf("write pcm: %w", copyErr)
	}
	return nil
}
