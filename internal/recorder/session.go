package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/0anu/VoiceAI/internal/api"
)

// DefaultSampleRate is the capture rate in Hz.
const DefaultSampleRate = 16000

// Session is one recording: it exclusively owns the capture stream from
// Start until Stop or Cancel and collects its chunks in arrival order.
type Session struct {
	Started    time.Time
	sampleRate int
	stream     Stream

	mu     sync.Mutex
	chunks [][]byte
	active bool

	collected chan struct{}
	endOnce   sync.Once
}

// Start begins collecting chunks from stream.
func Start(stream Stream, started time.Time, sampleRate int) *Session {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	s := &Session{
		Started:    started,
		sampleRate: sampleRate,
		stream:     stream,
		active:     true,
		collected:  make(chan struct{}),
	}
	go s.collect()
	return s
}

func (s *Session) collect() {
	defer close(s.collected)
	for chunk := range s.stream.Chunks() {
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}
}

// Active reports whether the session still holds the capture device.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ChunkCount returns the number of chunks captured so far.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// end releases the device and waits for the last chunk to be collected.
func (s *Session) end() error {
	var err error
	s.endOnce.Do(func() {
		err = s.stream.Close()
		<-s.collected
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	})
	return err
}

// Stop releases the device and returns the recording as a WAV blob.
func (s *Session) Stop() (api.Audio, error) {
	if err := s.end(); err != nil {
		return api.Audio{}, fmt.Errorf("release capture: %w", err)
	}

	s.mu.Lock()
	var size int
	for _, c := range s.chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range s.chunks {
		pcm = append(pcm, c...)
	}
	s.mu.Unlock()

	data, err := EncodeWAV(pcm, s.sampleRate)
	if err != nil {
		return api.Audio{}, err
	}
	return api.Audio{
		Filename:    wavFilename,
		ContentType: wavContentType,
		Data:        data,
	}, nil
}

// Cancel releases the device and discards the captured audio.
func (s *Session) Cancel() {
	s.end()
	s.mu.Lock()
	s.chunks = nil
	s.mu.Unlock()
}
