package perception

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenlabs/go-lumen/pkg/camera"
	"github.com/lumenlabs/go-lumen/pkg/detect"
)

// Reasoner narrates detection results.
type Reasoner interface {
	Process(ctx context.Context, dets []detect.Detection, frameJPEG []byte, userID uint) string
	SummarizeSession() string
}

// Announcer queues spoken output.
type Announcer interface {
	Enqueue(text string)
}

// Config holds loop tuning parameters.
type Config struct {
	// DetectionInterval runs detection every Nth frame. Default 10.
	DetectionInterval int

	// IdleSleep between checks while inactive. Default 500ms.
	IdleSleep time.Duration

	// FrameMissSleep after an empty camera read. Default 100ms.
	FrameMissSleep time.Duration

	// LoopSleep between processed frames. Default 10ms.
	LoopSleep time.Duration

	// ErrorSleep after a tick failure. Default 1s.
	ErrorSleep time.Duration

	// UserID supplies the active user for narration context. Optional.
	UserID func() uint

	Logger *slog.Logger
}

// Loop drives the camera, detector, and reasoner while active.
//
// The camera is opened on activation and released on deactivation; the
// detector is created once on first use and retained, since model
// loading is expensive.
type Loop struct {
	newCamera   func() (camera.Source, error)
	newDetector func() (detect.Detector, error)
	reasoner    Reasoner
	announcer   Announcer
	state       *State
	cfg         Config
	logger      *slog.Logger

	mu         sync.Mutex
	cam        camera.Source
	det        detect.Detector
	frameCount int
	fps        float64
	lastFrame  time.Time
}

// NewLoop wires a loop. The reasoner and announcer are optional.
func NewLoop(newCamera func() (camera.Source, error), newDetector func() (detect.Detector, error),
	reasoner Reasoner, announcer Announcer, state *State, cfg Config) *Loop {

	if cfg.DetectionInterval <= 0 {
		cfg.DetectionInterval = 10
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = 500 * time.Millisecond
	}
	if cfg.FrameMissSleep <= 0 {
		cfg.FrameMissSleep = 100 * time.Millisecond
	}
	if cfg.LoopSleep <= 0 {
		cfg.LoopSleep = 10 * time.Millisecond
	}
	if cfg.ErrorSleep <= 0 {
		cfg.ErrorSleep = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loop{
		newCamera:   newCamera,
		newDetector: newDetector,
		reasoner:    reasoner,
		announcer:   announcer,
		state:       state,
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "perception.loop"),
	}
}

// IsActive reports whether the loop is currently running or starting.
func (l *Loop) IsActive() bool {
	return l.state.Active()
}

// SetActive starts or stops perception. Activation opens the camera;
// deactivation releases it and announces a session summary. Both are
// idempotent.
func (l *Loop) SetActive(active bool) error {
	if active {
		return l.activate()
	}
	l.deactivate()
	return nil
}

func (l *Loop) activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cam != nil {
		return nil
	}

	l.state.SetStatus(StatusStarting)

	cam, err := l.newCamera()
	if err != nil {
		l.state.SetStatus(StatusInactive)
		return fmt.Errorf("open camera: %w", err)
	}
	l.cam = cam

	if l.det == nil {
		det, err := l.newDetector()
		if err != nil {
			cam.Stop()
			l.cam = nil
			l.state.SetStatus(StatusInactive)
			return fmt.Errorf("load detector: %w", err)
		}
		l.det = det
	}

	l.frameCount = 0
	l.fps = 0
	l.lastFrame = time.Time{}
	l.logger.Info("perception activated")
	return nil
}

func (l *Loop) deactivate() {
	l.mu.Lock()
	cam := l.cam
	l.cam = nil
	l.mu.Unlock()

	if cam == nil {
		return
	}
	if err := cam.Stop(); err != nil {
		l.logger.Warn("camera stop failed", "error", err)
	}
	l.state.SetStatus(StatusInactive)

	if l.reasoner != nil {
		summary := l.reasoner.SummarizeSession()
		if l.announcer != nil {
			l.announcer.Enqueue(summary)
		}
	}
	l.logger.Info("perception deactivated")
}

// Run drives the loop until ctx is canceled. It never returns early on
// tick errors.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.deactivate()
			return
		default:
		}

		if !l.state.Active() {
			sleep(ctx, l.cfg.IdleSleep)
			continue
		}

		if err := l.tick(ctx); err != nil {
			l.logger.Error("perception tick failed", "error", err)
			sleep(ctx, l.cfg.ErrorSleep)
		}
	}
}

func (l *Loop) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	l.mu.Lock()
	cam := l.cam
	det := l.det
	l.mu.Unlock()
	if cam == nil {
		// deactivated between the Active check and here
		return nil
	}

	frame, err := cam.Read()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if frame == nil {
		sleep(ctx, l.cfg.FrameMissSleep)
		return nil
	}

	// Starting becomes Running only once a frame actually arrives.
	if l.state.Status() == StatusStarting {
		l.state.SetStatus(StatusRunning)
	}

	l.state.SetFrame(frame, l.updateFPS())

	l.mu.Lock()
	l.frameCount++
	runDetection := l.frameCount%l.cfg.DetectionInterval == 0
	l.mu.Unlock()

	if runDetection && det != nil {
		dets, derr := det.Detect(frame)
		if derr != nil {
			return fmt.Errorf("detect: %w", derr)
		}

		// Every detection cycle goes through the reasoner, even an
		// empty one, so the model can describe what sensors missed.
		var narration string
		if l.reasoner != nil {
			var userID uint
			if l.cfg.UserID != nil {
				userID = l.cfg.UserID()
			}
			narration = l.reasoner.Process(ctx, dets, frame, userID)
			if narration != "" && l.announcer != nil {
				l.announcer.Enqueue(narration)
			}
		}
		l.state.SetResults(dets, narration)
	}

	sleep(ctx, l.cfg.LoopSleep)
	return nil
}

// updateFPS maintains an exponential moving average of the frame rate.
func (l *Loop) updateFPS() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if !l.lastFrame.IsZero() {
		elapsed := now.Sub(l.lastFrame).Seconds()
		if elapsed > 0 {
			l.fps = 0.9*l.fps + 0.1*(1/elapsed)
		}
	}
	l.lastFrame = now
	return l.fps
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
