package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Channel queues announcements and speaks them in order on a single
// worker. Muting drops new announcements and clears any backlog in the
// same step, so nothing queued before the mute plays after it.
type Channel struct {
	synth  Synthesizer
	player Player
	logger *slog.Logger

	maxQueue     int
	synthTimeout time.Duration

	mu    sync.Mutex
	queue []string
	muted bool

	wake chan struct{}
}

// ChannelConfig holds channel configuration.
type ChannelConfig struct {
	// MaxQueue bounds pending announcements. Default 10.
	MaxQueue int

	// SynthTimeout bounds each synthesis call. Default 15s.
	SynthTimeout time.Duration

	// Logger for speak failures.
	Logger *slog.Logger
}

// NewChannel creates an announcement channel. Call Run to start the
// speaking worker.
func NewChannel(synth Synthesizer, player Player, cfg ChannelConfig) *Channel {
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 10
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{
		synth:        synth,
		player:       player,
		logger:       cfg.Logger.With("component", "speech.channel"),
		maxQueue:     cfg.MaxQueue,
		synthTimeout: cfg.SynthTimeout,
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue adds an announcement. It never blocks: announcements are
// dropped while muted or when the queue is full.
func (c *Channel) Enqueue(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.muted {
		c.mu.Unlock()
		return
	}
	if len(c.queue) >= c.maxQueue {
		c.mu.Unlock()
		c.logger.Warn("announcement queue full, dropping", "text", text)
		return
	}
	c.queue = append(c.queue, text)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SetMuted toggles the mute state. Muting clears the backlog
// atomically with setting the flag.
func (c *Channel) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	if muted {
		c.queue = nil
	}
	c.mu.Unlock()
}

// IsMuted reports the current mute state.
func (c *Channel) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Pending returns the number of queued announcements.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Run drains the queue until ctx is canceled. Speak failures are
// logged and the worker moves on to the next announcement.
func (c *Channel) Run(ctx context.Context) {
	for {
		text, ok := c.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		if err := c.speak(ctx, text); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("announcement failed", "text", text, "error", err)
		}
	}
}

func (c *Channel) dequeue() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	text := c.queue[0]
	c.queue = c.queue[1:]
	return text, true
}

func (c *Channel) speak(ctx context.Context, text string) error {
	synthCtx, cancel := context.WithTimeout(ctx, c.synthTimeout)
	defer cancel()

	audio, err := c.synth.Synthesize(synthCtx, text)
	if err != nil {
		return err
	}

	// muted while synthesizing: discard instead of playing late
	if c.IsMuted() {
		return nil
	}
	return c.player.Play(ctx, audio)
}
