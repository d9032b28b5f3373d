package recorder

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/0anu/VoiceAI/internal/clock"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{999 * time.Millisecond, "0:00"},
		{time.Second, "0:01"},
		{59 * time.Second, "0:59"},
		{60 * time.Second, "1:00"},
		{125*time.Second + 700*time.Millisecond, "2:05"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestEncodeWAV(t *testing.T) {
	// Samples 0, 1, -1, 32767 as little-endian int16.
	pcm := []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x42}

	data, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("encoded data is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", dec.SampleRate)
	}
	want := []int{0, 1, -1, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("samples = %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestEncodeWAVRejectsBadRate(t *testing.T) {
	if _, err := EncodeWAV([]byte{0, 0}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestSessionStopCollectsChunks(t *testing.T) {
	mic := &FakeMicrophone{Chunks: [][]byte{{0x01, 0x00}, {0x02, 0x00, 0x03, 0x00}}}
	stream, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	s := Start(stream, time.Now(), 8000)
	if !s.Active() {
		t.Error("new session should be active")
	}

	audio, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Active() {
		t.Error("stopped session should not be active")
	}
	if !mic.Streams()[0].Closed() {
		t.Error("stop should release the stream")
	}
	if s.ChunkCount() != 2 {
		t.Errorf("chunks = %d, want 2", s.ChunkCount())
	}
	if audio.Filename != "audio.wav" || audio.ContentType != "audio/wav" {
		t.Errorf("audio = %q %q", audio.Filename, audio.ContentType)
	}

	dec := wav.NewDecoder(bytes.NewReader(audio.Data))
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Data) != 3 || buf.Data[0] != 1 || buf.Data[2] != 3 {
		t.Errorf("samples = %v, want [1 2 3]", buf.Data)
	}
}

func TestSessionCancelReleasesAndDiscards(t *testing.T) {
	mic := &FakeMicrophone{Chunks: [][]byte{{0x01, 0x00}}}
	stream, _ := mic.Open(context.Background())

	s := Start(stream, time.Now(), 0)
	s.Cancel()
	s.Cancel()

	if !mic.Streams()[0].Closed() {
		t.Error("cancel should release the stream")
	}
	if s.ChunkCount() != 0 {
		t.Errorf("chunks = %d, want 0 after cancel", s.ChunkCount())
	}
}

func receiveTick(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
	return ""
}

func TestTimerTicksAndStops(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	ticks := make(chan string, 64)

	tm := StartTimer(fc, start, TickInterval, func(elapsed string) { ticks <- elapsed })

	fc.Advance(1100 * time.Millisecond)
	if got := receiveTick(t, ticks); got != "0:01" {
		t.Errorf("first tick = %q, want 0:01", got)
	}

	fc.Advance(60 * time.Second)
	for {
		got := receiveTick(t, ticks)
		if got == "1:01" {
			break
		}
		if got != "0:01" {
			t.Fatalf("unexpected tick %q", got)
		}
	}

	tm.Stop()
	tm.Stop()
	if fc.Tickers() != 0 {
		t.Errorf("ticker still running after Stop")
	}

	// Drain anything delivered before Stop returned.
	for len(ticks) > 0 {
		<-ticks
	}
	fc.Advance(5 * time.Second)
	select {
	case v := <-ticks:
		t.Errorf("tick %q delivered after Stop", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExecMicrophoneMissingCommand(t *testing.T) {
	mic := &ExecMicrophone{Command: []string{"voiceai-no-such-capture-tool"}}
	if _, err := mic.Open(context.Background()); err == nil {
		t.Error("expected error for missing capture command")
	}
}

func TestExecMicrophoneEmptyCommand(t *testing.T) {
	if _, err := (&ExecMicrophone{}).Open(context.Background()); err == nil {
		t.Error("expected error for empty capture command")
	}
}

func TestExecMicrophoneImmediateExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	mic := &ExecMicrophone{Command: []string{"sh", "-c", "echo 'audio open error: Permission denied' >&2; exit 1"}}
	_, err := mic.Open(context.Background())
	if err == nil {
		t.Fatal("expected error when capture exits immediately")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("Permission denied")) {
		t.Errorf("error = %q, want stderr included", err)
	}
}

func TestExecMicrophoneStreamsAndCloses(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	mic := &ExecMicrophone{
		Command:   []string{"sh", "-c", "head -c 6400 /dev/zero; exec sleep 30"},
		ChunkSize: 3200,
	}
	stream, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	s := Start(stream, time.Now(), DefaultSampleRate)
	deadline := time.Now().Add(2 * time.Second)
	for s.ChunkCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	audio, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.ChunkCount() != 2 {
		t.Errorf("chunks = %d, want 2", s.ChunkCount())
	}
	if len(audio.Data) <= 6400 {
		t.Errorf("wav size = %d, want header plus 6400 bytes of samples", len(audio.Data))
	}
}

func TestDefaultCommandUsesSampleRate(t *testing.T) {
	cmd := DefaultCommand(22050)
	if cmd[0] != "arecord" || cmd[len(cmd)-1] != "22050" {
		t.Errorf("DefaultCommand(22050) = %v", cmd)
	}
}
