package toolserver

import (
	"io"
	"strings"
	"sync"
)

type connectivityPattern struct {
	pattern string
	reason  string
}

var connectivityPatterns = []connectivityPattern{
	{"ssl certificate problem", "TLS certificate expired"},
	{"certificate has expired", "TLS certificate expired"},
	{"connection refused", "connection refused"},
	{"dns resolution failed", "DNS resolution failed"},
	{"could not resolve host", "DNS resolution failed"},
	{"getaddrinfo enotfound", "DNS resolution failed"},
	{"error sending request", "request failed"},
	{"tls handshake timeout", "TLS handshake timeout"},
	{"npm err!", "npx failed to install the tool server"},
}

const stderrTailSize = 2048

// stderrScanner forwards the tool server's stderr unchanged, remembers the
// last few kilobytes, and classifies known connectivity failures. Both are
// attached to startup errors so the error log says more than "EOF".
type stderrScanner struct {
	w io.Writer

	mu       sync.Mutex
	tail     []byte
	detected bool
	reason   string
}

func newStderrScanner(w io.Writer) *stderrScanner {
	return &stderrScanner{w: w}
}

func (s *stderrScanner) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)

	s.mu.Lock()
	s.tail = append(s.tail, p...)
	if over := len(s.tail) - stderrTailSize; over > 0 {
		s.tail = append(s.tail[:0], s.tail[over:]...)
	}
	if !s.detected {
		lower := strings.ToLower(string(p))
		for _, cp := range connectivityPatterns {
			if strings.Contains(lower, cp.pattern) {
				s.detected = true
				s.reason = cp.reason
				break
			}
		}
	}
	s.mu.Unlock()

	// stderr must never block or fail the child on our account
	if err != nil {
		return len(p), nil
	}
	return n, nil
}

// Reason returns the classified failure, or "" when none was seen.
func (s *stderrScanner) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Tail returns the last non-empty stderr lines, trimmed.
func (s *stderrScanner) Tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(string(s.tail))
}
