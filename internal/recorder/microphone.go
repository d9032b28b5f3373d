// Package recorder captures microphone audio for voice queries: it owns
// the capture stream for the lifetime of one recording, collects the raw
// PCM chunks, packages them as WAV and drives the elapsed-time display.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Microphone opens a capture stream. Open fails when the device cannot be
// acquired (missing tool, permission denied, device busy).
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open capture. Chunks delivers raw 16-bit little-endian mono
// PCM and is closed once the stream has fully stopped. Close releases the
// device; it is safe to call more than once.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// DefaultCommand captures mono 16-bit PCM at sampleRate with ALSA's arecord.
func DefaultCommand(sampleRate int) []string {
	return []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(sampleRate)}
}

// startupGrace is how long Open waits for the capture process to fail
// before treating the device as acquired.
const startupGrace = 300 * time.Millisecond

// ExecMicrophone captures audio by running an external command that writes
// raw PCM to stdout.
type ExecMicrophone struct {
	Command []string
	// ChunkSize is the number of bytes per delivered chunk. Zero means
	// 100ms of 16 kHz 16-bit mono audio.
	ChunkSize int
}

// Open starts the capture command. A command that is missing or exits
// during the startup grace period is reported as an error carrying its
// stderr output.
func (m *ExecMicrophone) Open(ctx context.Context) (Stream, error) {
	if len(m.Command) == 0 {
		return nil, errors.New("no capture command configured")
	}
	if _, err := exec.LookPath(m.Command[0]); err != nil {
		return nil, fmt.Errorf("capture command: %w", err)
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 3200
	}

	// The capture outlives ctx; it is bound to the stream instead.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, m.Command[0], m.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	s := &execStream{
		cmd:    cmd,
		cancel: cancel,
		chunks: make(chan []byte, 64),
		exited: make(chan struct{}),
	}
	cmd.Stderr = &s.stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	go s.read(stdout, size)

	select {
	case <-s.exited:
		s.Close()
		return nil, s.startupError()
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	case <-time.After(startupGrace):
	}
	return s, nil
}

type execStream struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	chunks  chan []byte
	exited  chan struct{}
	stderr  bytes.Buffer
	waitErr error
	once    sync.Once
}

func (s *execStream) Chunks() <-chan []byte { return s.chunks }

func (s *execStream) read(r io.Reader, size int) {
	defer close(s.chunks)
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			s.waitErr = s.cmd.Wait()
			close(s.exited)
			return
		}
	}
}

// Close stops the capture process and waits for it to exit.
func (s *execStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.exited
	})
	return nil
}

func (s *execStream) startupError() error {
	msg := strings.TrimSpace(s.stderr.String())
	switch {
	case msg != "" && s.waitErr != nil:
		return fmt.Errorf("capture exited: %v: %s", s.waitErr, msg)
	case msg != "":
		return fmt.Errorf("capture exited: %s", msg)
	case s.waitErr != nil:
		return fmt.Errorf("capture exited: %w", s.waitErr)
	default:
		return errors.New("capture exited before recording started")
	}
}
