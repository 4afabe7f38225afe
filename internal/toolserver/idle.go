package toolserver

import (
	"io"
	"sync"
	"time"
)

// idleReader wraps the tool server's stdout and calls onIdle with the time of
// the last read when nothing has been read for timeout. Every read that returns data re-arms the timer.
// A zero timeout disables the watchdog.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	onIdle  func(last time.Time)

	mu    sync.Mutex
	timer *time.Timer
	idled bool
	last  time.Time
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func(last time.Time)) *idleReader {
	ir := &idleReader{r: r, timeout: timeout, onIdle: onIdle, last: time.Now()}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, ir.fire)
	}
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.mu.Lock()
		ir.last = time.Now()
		if ir.timer != nil {
			ir.timer.Reset(ir.timeout)
		}
		ir.mu.Unlock()
	}
	return n, err
}

func (ir *idleReader) fire() {
	ir.mu.Lock()
	ir.idled = true
	last := ir.last
	ir.mu.Unlock()
	if ir.onIdle != nil {
		ir.onIdle(last)
	}
}

// Idled reports whether the watchdog fired.
func (ir *idleReader) Idled() bool {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return ir.idled
}

// LastActivity returns the time of the last successful read.
func (ir *idleReader) LastActivity() time.Time {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return ir.last
}

// Stop disarms the watchdog.
func (ir *idleReader) Stop() {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	if ir.timer != nil {
		ir.timer.Stop()
		ir.timer = nil
	}
}
