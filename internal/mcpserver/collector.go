package mcpserver

import (
	"sync"

	"github.com/0anu/VoiceAI/internal/orchestrator"
)

// Collector is a headless orchestrator surface. It keeps the notices a
// handler reports so a tool call can return them.
type Collector struct {
	orchestrator.NopSurface

	mu    sync.Mutex
	lines []string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// Drain returns everything collected since the last call.
func (c *Collector) Drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	c.lines = nil
	return lines
}

func (c *Collector) ShowError(message string)   { c.add("Error: " + message) }
func (c *Collector) ShowSuccess(message string) { c.add(message) }
func (c *Collector) ShowWarning(message string) { c.add("Warning: " + message) }

func (c *Collector) UploadStatus(message string, status orchestrator.UploadStatus) {
	if status != orchestrator.UploadPending {
		c.add(message)
	}
}

func (c *Collector) ShowTranscription(text string) {
	if text != orchestrator.TranscriptionIdle {
		c.add("Transcription: " + text)
	}
}
