package serial

import (
	"io"
	"sync"
)

// FakePort is a test double that replays scripted lines.
// When the scripted data is exhausted, Read returns io.EOF, or blocks like a
// quiet sensor if HoldOpen is set (until Close is called).
type FakePort struct {
	mu     sync.Mutex
	data   []byte
	done   chan struct{}
	closed bool

	// HoldOpen keeps Read blocking after the scripted data is exhausted,
	// simulating a connected but silent sensor.
	HoldOpen bool
}

// NewFakePort creates a FakePort that yields the given lines, each terminated
// with a newline.
func NewFakePort(lines ...string) *FakePort {
	f := &FakePort{done: make(chan struct{})}
	for _, line := range lines {
		f.data = append(f.data, line...)
		f.data = append(f.data, '\n')
	}
	return f
}

// Read returns the next chunk of scripted data.
func (f *FakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, io.EOF
	}
	if len(f.data) > 0 {
		n := copy(p, f.data)
		f.data = f.data[n:]
		f.mu.Unlock()
		return n, nil
	}
	hold := f.HoldOpen
	f.mu.Unlock()

	if hold {
		<-f.done
	}
	return 0, io.EOF
}

// Close marks the port as closed and unblocks any held Read.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
