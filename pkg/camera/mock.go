package camera

import "sync"

// Mock implements Source for testing.
type Mock struct {
	// ReadFunc is called when Read is invoked.
	// If nil, returns a fixed one-byte frame.
	ReadFunc func() ([]byte, error)

	mu      sync.Mutex
	reads   int
	stopped bool
}

// NewMock creates a mock source returning a fixed frame.
func NewMock() *Mock {
	return &Mock{}
}

// Read calls ReadFunc and records the call.
func (m *Mock) Read() ([]byte, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()

	if m.ReadFunc != nil {
		return m.ReadFunc()
	}
	return []byte{0xff}, nil
}

// Stop records that the source was released.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Stopped reports whether Stop was called.
func (m *Mock) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Reads returns the number of Read invocations.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Verify Mock implements Source at compile time.
var _ Source = (*Mock)(nil)
