package toolserver

import (
	"bytes"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

func TestIdleReader_Disabled(t *testing.T) {
	ir := newIdleReader(bytes.NewBufferString("hello"), 0, nil)
	defer ir.Stop()

	p := make([]byte, 5)
	n, err := ir.Read(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes, got %d", n)
	}
	if ir.Idled() {
		t.Fatal("should not be idled with timeout=0")
	}
}

func TestIdleReader_ResetsOnData(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	var fired atomic.Bool
	ir := newIdleReader(pr, 200*time.Millisecond, func(time.Time) { fired.Store(true) })
	defer ir.Stop()

	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(100 * time.Millisecond)
			_, _ = pw.Write([]byte("x"))
		}
	}()

	before := ir.LastActivity()
	p := make([]byte, 1)
	for i := 0; i < 5; i++ {
		if _, err := ir.Read(p); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	if ir.Idled() || fired.Load() {
		t.Fatal("watchdog fired while data was flowing")
	}
	if !ir.LastActivity().After(before) {
		t.Error("last activity not updated")
	}
}

func TestIdleReader_FiresOnSilence(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	var fired atomic.Bool
	var last time.Time
	start := time.Now()
	ir := newIdleReader(pr, 100*time.Millisecond, func(at time.Time) {
		fired.Store(true)
		last = at
		_ = pw.Close() // unblock the read, as killing the process would
	})
	defer ir.Stop()

	p := make([]byte, 1)
	if _, err := ir.Read(p); err == nil {
		t.Fatal("expected error after watchdog closed the pipe")
	}
	if !ir.Idled() {
		t.Fatal("should be idled")
	}
	if !fired.Load() {
		t.Fatal("onIdle should have been called")
	}
	if last.Before(start) || !last.Equal(ir.LastActivity()) {
		t.Errorf("onIdle got last activity %v, reader reports %v", last, ir.LastActivity())
	}
}

func TestIdleReader_StopDisarms(t *testing.T) {
	var fired atomic.Bool
	ir := newIdleReader(bytes.NewBufferString("data"), 50*time.Millisecond, func(time.Time) { fired.Store(true) })

	p := make([]byte, 4)
	_, _ = ir.Read(p)
	ir.Stop()
	ir.Stop()

	time.Sleep(100 * time.Millisecond)

	if fired.Load() || ir.Idled() {
		t.Fatal("watchdog fired after Stop")
	}
}
