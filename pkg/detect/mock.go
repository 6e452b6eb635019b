package detect

import "sync"

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, returns no detections.
	DetectFunc func(jpeg []byte) ([]Detection, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock detector returning no detections.
func NewMock() *Mock {
	return &Mock{}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(jpeg []byte) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(jpeg)
	}
	return nil, nil
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Calls returns the number of Detect invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
