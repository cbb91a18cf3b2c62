package serial

import (
	"strings"
	"sync"
)

// MockPort is an in-memory Port for tests. Reads are served from a queue of
// scripted lines; an empty queue or an explicitly queued empty line plays
// back as a timeout (empty read). All writes are recorded.
type MockPort struct {
	mu      sync.Mutex
	reads   [][]byte
	Writes  []string
	Flushed int
	Closed  bool
}

func NewMockPort() *MockPort { return &MockPort{} }

// QueueLine schedules a CR-terminated line to be returned by ReadUntil.
func (m *MockPort) QueueLine(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, []byte(line+"\r"))
}

// QueueTimeout schedules one empty read (no data before the timeout).
func (m *MockPort) QueueTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, nil)
}

func (m *MockPort) ReadUntil(delim byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reads) == 0 {
		return nil, nil
	}
	next := m.reads[0]
	m.reads = m.reads[1:]
	return next, nil
}

func (m *MockPort) Read(b []byte) (int, error) {
	line, err := m.ReadUntil('\r')
	if err != nil {
		return 0, err
	}
	return copy(b, line), nil
}

func (m *MockPort) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, string(b))
	return len(b), nil
}

func (m *MockPort) ResetInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushed++
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// WrittenCommands returns the recorded writes with CR terminators stripped.
func (m *MockPort) WrittenCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Writes))
	for i, w := range m.Writes {
		out[i] = strings.TrimRight(w, "\r\n")
	}
	return out
}
