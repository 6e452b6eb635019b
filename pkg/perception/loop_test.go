package perception

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenlabs/go-lumen/pkg/camera"
	"github.com/lumenlabs/go-lumen/pkg/detect"
)

type fakeReasoner struct {
	mu        sync.Mutex
	processed int
	empty     int
	summaries int
	reply     *string
}

func (f *fakeReasoner) Process(ctx context.Context, dets []detect.Detection, frame []byte, userID uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
	if len(dets) == 0 {
		f.empty++
	}
	if f.reply != nil {
		return *f.reply
	}
	return "narration"
}

func (f *fakeReasoner) SummarizeSession() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
	return "Session ended."
}

func (f *fakeReasoner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed, f.summaries
}

type fakeAnnouncer struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeAnnouncer) Enqueue(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

func (f *fakeAnnouncer) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func fastConfig() Config {
	return Config{
		DetectionInterval: 2,
		IdleSleep:         time.Millisecond,
		FrameMissSleep:    time.Millisecond,
		LoopSleep:         time.Millisecond,
		ErrorSleep:        time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLoopDetectsAndAnnounces(t *testing.T) {
	cam := &camera.Mock{ReadFunc: func() ([]byte, error) { return []byte("jpeg"), nil }}
	det := &detect.Mock{DetectFunc: func(jpeg []byte) ([]detect.Detection, error) {
		return []detect.Detection{{Label: "chair"}}, nil
	}}
	reasoner := &fakeReasoner{}
	announcer := &fakeAnnouncer{}
	state := NewState()

	loop := NewLoop(
		func() (camera.Source, error) { return cam, nil },
		func() (detect.Detector, error) { return det, nil },
		reasoner, announcer, state, fastConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	if err := loop.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	waitFor(t, func() bool { p, _ := reasoner.counts(); return p >= 1 })

	snap := state.Snapshot()
	if snap.Status != StatusRunning || !snap.Active {
		t.Errorf("unexpected status: %+v", snap.Status)
	}
	if len(snap.Frame) == 0 {
		t.Error("snapshot missing frame")
	}
	waitFor(t, func() bool {
		s := state.Snapshot()
		return len(s.Detections) == 1 && s.Narration == "narration"
	})
	waitFor(t, func() bool { return len(announcer.all()) >= 1 })
}

func TestLoopProcessesEmptyDetectionCycle(t *testing.T) {
	cam := &camera.Mock{ReadFunc: func() ([]byte, error) { return []byte("jpeg"), nil }}
	det := &detect.Mock{DetectFunc: func(jpeg []byte) ([]detect.Detection, error) {
		return nil, nil
	}}
	silent := ""
	reasoner := &fakeReasoner{reply: &silent}
	announcer := &fakeAnnouncer{}

	loop := NewLoop(
		func() (camera.Source, error) { return cam, nil },
		func() (detect.Detector, error) { return det, nil },
		reasoner, announcer, NewState(), fastConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	if err := loop.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// the reasoner sees the cycle even with nothing detected
	waitFor(t, func() bool {
		reasoner.mu.Lock()
		defer reasoner.mu.Unlock()
		return reasoner.empty >= 1
	})
	if got := announcer.all(); len(got) != 0 {
		t.Errorf("empty narration should not be announced: %v", got)
	}
}

func TestLoopRunningAfterFirstFrame(t *testing.T) {
	var mu sync.Mutex
	haveFrame := false
	cam := &camera.Mock{ReadFunc: func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if !haveFrame {
			return nil, nil
		}
		return []byte("jpeg"), nil
	}}
	state := NewState()

	loop := NewLoop(
		func() (camera.Source, error) { return cam, nil },
		func() (detect.Detector, error) { return &detect.Mock{}, nil },
		nil, nil, state, fastConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	if err := loop.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// frames are missing: the loop is active but still starting
	waitFor(t, func() bool { return cam.Reads() >= 2 })
	if got := state.Status(); got != StatusStarting {
		t.Fatalf("status before first frame = %v, want %v", got, StatusStarting)
	}

	mu.Lock()
	haveFrame = true
	mu.Unlock()
	waitFor(t, func() bool { return state.Status() == StatusRunning })
}

func TestLoopDeactivateReleasesCameraAndSummarizes(t *testing.T) {
	cam := &camera.Mock{ReadFunc: func() ([]byte, error) { return []byte("jpeg"), nil }}
	reasoner := &fakeReasoner{}
	announcer := &fakeAnnouncer{}
	state := NewState()

	opens := 0
	loop := NewLoop(
		func() (camera.Source, error) { opens++; return cam, nil },
		func() (detect.Detector, error) { return &detect.Mock{}, nil },
		reasoner, announcer, state, fastConfig(),
	)

	if err := loop.SetActive(true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	if err := loop.SetActive(false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}

	if !cam.Stopped() {
		t.Error("camera not released on deactivation")
	}
	if state.Active() {
		t.Error("state still active after deactivation")
	}
	if _, summaries := reasoner.counts(); summaries != 1 {
		t.Errorf("expected 1 session summary, got %d", summaries)
	}
	found := false
	for _, text := range announcer.all() {
		if text == "Session ended." {
			found = true
		}
	}
	if !found {
		t.Errorf("summary not announced: %v", announcer.all())
	}

	// reactivation opens a fresh camera
	if err := loop.SetActive(true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if opens != 2 {
		t.Errorf("expected camera factory called twice, got %d", opens)
	}
}

func TestLoopDetectorCreatedOnce(t *testing.T) {
	creates := 0
	loop := NewLoop(
		func() (camera.Source, error) { return &camera.Mock{}, nil },
		func() (detect.Detector, error) { creates++; return &detect.Mock{}, nil },
		nil, nil, NewState(), fastConfig(),
	)

	for i := 0; i < 3; i++ {
		if err := loop.SetActive(true); err != nil {
			t.Fatalf("SetActive: %v", err)
		}
		loop.SetActive(false)
	}
	if creates != 1 {
		t.Errorf("detector should be created once, got %d", creates)
	}
}

func TestLoopActivateCameraError(t *testing.T) {
	loop := NewLoop(
		func() (camera.Source, error) { return nil, errors.New("no device") },
		func() (detect.Detector, error) { return &detect.Mock{}, nil },
		nil, nil, NewState(), fastConfig(),
	)

	if err := loop.SetActive(true); err == nil {
		t.Fatal("expected activation error")
	}
	if loop.state.Active() {
		t.Error("state should stay inactive after failed activation")
	}
}

func TestLoopActivateIdempotent(t *testing.T) {
	opens := 0
	loop := NewLoop(
		func() (camera.Source, error) { opens++; return &camera.Mock{}, nil },
		func() (detect.Detector, error) { return &detect.Mock{}, nil },
		nil, nil, NewState(), fastConfig(),
	)

	loop.SetActive(true)
	loop.SetActive(true)
	if opens != 1 {
		t.Errorf("double activation should open camera once, got %d", opens)
	}
}

func TestLoopSurvivesDetectorError(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	det := &detect.Mock{DetectFunc: func(jpeg []byte) ([]detect.Detection, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("model error")
		}
		return []detect.Detection{{Label: "dog"}}, nil
	}}
	reasoner := &fakeReasoner{}
	state := NewState()

	loop := NewLoop(
		func() (camera.Source, error) {
			return &camera.Mock{ReadFunc: func() ([]byte, error) { return []byte("jpeg"), nil }}, nil
		},
		func() (detect.Detector, error) { return det, nil },
		reasoner, nil, state, fastConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	if err := loop.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// loop keeps going after the first failed detection
	waitFor(t, func() bool { p, _ := reasoner.counts(); return p >= 1 })
}
