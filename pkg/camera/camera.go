// Package camera provides frame acquisition for the perception loop.
//
// A Source hands out the most recent frame as JPEG bytes on demand. The
// loop opens a Source lazily when the system activates and releases it
// when the system goes inactive to save power; Sources must tolerate
// being recreated from scratch.
package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Source supplies camera frames on demand.
type Source interface {
	// Read returns the most recent frame as JPEG bytes.
	// Returns (nil, nil) when no frame is currently available.
	Read() ([]byte, error)

	// Stop releases the underlying device.
	Stop() error
}

// Webcam captures frames from a local video device via OpenCV.
type Webcam struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// OpenWebcam opens the video device at the given index.
func OpenWebcam(deviceIndex int) (*Webcam, error) {
	cap, err := gocv.OpenVideoCapture(deviceIndex)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", deviceIndex, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("video device %d not opened", deviceIndex)
	}

	return &Webcam{
		cap: cap,
		mat: gocv.NewMat(),
	}, nil
}

// Read grabs the next frame and encodes it as JPEG.
func (w *Webcam) Read() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("camera stopped")
	}

	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		// Transient frame miss, not an error
		return nil, nil
	}

	buf, err := gocv.IMEncode(".jpg", w.mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Stop releases the device. Safe to call more than once.
func (w *Webcam) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.mat.Close()
	return w.cap.Close()
}

// Verify Webcam implements Source at compile time.
var _ Source = (*Webcam)(nil)
