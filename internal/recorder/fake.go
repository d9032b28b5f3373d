package recorder

import (
	"context"
	"sync"
)

// FakeMicrophone is an in-memory Microphone for tests. Each opened stream
// delivers Chunks and then idles until closed.
type FakeMicrophone struct {
	Err    error
	Chunks [][]byte

	mu      sync.Mutex
	streams []*FakeStream
}

// Open returns Err, or a stream preloaded with Chunks.
func (m *FakeMicrophone) Open(ctx context.Context) (Stream, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	s := &FakeStream{ch: make(chan []byte, len(m.Chunks))}
	for _, c := range m.Chunks {
		s.ch <- c
	}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far.
func (m *FakeMicrophone) Streams() []*FakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FakeStream(nil), m.streams...)
}

// FakeStream records whether it was released.
type FakeStream struct {
	ch     chan []byte
	mu     sync.Mutex
	closed bool
}

func (s *FakeStream) Chunks() <-chan []byte { return s.ch }

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
