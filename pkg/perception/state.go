// Package perception runs the camera-to-narration loop and publishes
// its results through a thread-safe shared state.
package perception

import (
	"sync"
	"time"

	"github.com/lumenlabs/go-lumen/pkg/detect"
)

// Status is the lifecycle state of the perception loop.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
)

// Snapshot is a consistent copy of the shared state at one instant.
type Snapshot struct {
	Frame        []byte              `json:"-"`
	Detections   []detect.Detection  `json:"detections"`
	Narration    string              `json:"narration"`
	FPS          float64             `json:"fps"`
	Status       Status              `json:"status"`
	Active       bool                `json:"active"`
	ShowOverlays bool                `json:"show_overlays"`
	Timestamp    time.Time           `json:"timestamp"`
}

// State holds the latest perception results. All fields are guarded by
// one mutex; readers get copies, never references into live buffers.
type State struct {
	mu           sync.RWMutex
	frame        []byte
	detections   []detect.Detection
	narration    string
	fps          float64
	status       Status
	active       bool
	showOverlays bool
	timestamp    time.Time
}

// NewState creates an inactive state with overlays enabled.
func NewState() *State {
	return &State{
		status:       StatusInactive,
		showOverlays: true,
	}
}

// Snapshot returns a consistent copy of everything.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frame := make([]byte, len(s.frame))
	copy(frame, s.frame)
	dets := make([]detect.Detection, len(s.detections))
	copy(dets, s.detections)

	return Snapshot{
		Frame:        frame,
		Detections:   dets,
		Narration:    s.narration,
		FPS:          s.fps,
		Status:       s.status,
		Active:       s.active,
		ShowOverlays: s.showOverlays,
		Timestamp:    s.timestamp,
	}
}

// Frame returns a copy of the latest frame, or nil when none exists.
func (s *State) Frame() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frame) == 0 {
		return nil
	}
	frame := make([]byte, len(s.frame))
	copy(frame, s.frame)
	return frame
}

// SetFrame stores the latest frame and FPS estimate.
func (s *State) SetFrame(frame []byte, fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.fps = fps
	s.timestamp = time.Now()
}

// SetResults stores the detections and narration from one detection pass.
func (s *State) SetResults(dets []detect.Detection, narration string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections = dets
	if narration != "" {
		s.narration = narration
	}
	s.timestamp = time.Now()
}

// SetStatus updates the lifecycle status, keeping Active in sync.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.active = status != StatusInactive
	if status == StatusInactive {
		s.frame = nil
		s.detections = nil
		s.narration = ""
		s.fps = 0
	}
}

// Status returns the current lifecycle status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Active reports whether the loop is running or starting.
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetShowOverlays toggles detection overlay rendering on the video feed.
func (s *State) SetShowOverlays(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showOverlays = show
}

// ShowOverlays reports whether overlays are enabled.
func (s *State) ShowOverlays() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showOverlays
}
