package process

import (
	"strings"
	"sync"
)

// TailSize is how much trailing stderr is kept for error messages.
const TailSize = 4096

// Tail retains the most recent bytes written to it.
type Tail struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

// NewTail creates a Tail holding at most size bytes.
func NewTail(size int) *Tail {
	if size < 1 {
		size = TailSize
	}
	return &Tail{buf: make([]byte, 0, 2*size), size: size}
}

// Write implements io.Writer. It never fails.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.size {
		t.buf = append(t.buf[:0], p[len(p)-t.size:]...)
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		n := copy(t.buf, t.buf[over:])
		t.buf = t.buf[:n]
	}
	return len(p), nil
}

// String returns the retained text with carriage-return progress redraws
// turned into line breaks.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := strings.ToValidUTF8(string(t.buf), "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
