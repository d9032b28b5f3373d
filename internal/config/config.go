// Package config loads VoiceAI client settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// VOICEAI_* environment variables. Command-line flags are applied last by
// the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0anu/VoiceAI/internal/api"
	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/recorder"
)

// Defaults.
const (
	DefaultAPIURL     = api.DefaultBaseURL
	DefaultTimeout    = 60 * time.Second
	DefaultLogLevel   = "info"
	DefaultJournal    = journal.MemoryPath
	DefaultSampleRate = recorder.DefaultSampleRate
)

// Config is the client configuration.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string `yaml:"api_url"`

	// GroqAPIKey is sent with CSV uploads when non-empty.
	GroqAPIKey string `yaml:"groq_api_key"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Journal is the diagnostics database path, or ":memory:".
	Journal string `yaml:"journal"`

	// RecordCommand captures raw 16-bit mono PCM on stdout.
	RecordCommand []string `yaml:"record_command"`
	SampleRate    int      `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:     DefaultAPIURL,
		Timeout:    DefaultTimeout,
		LogLevel:   DefaultLogLevel,
		LogFile:    filepath.Join(os.TempDir(), "voiceai.log"),
		Journal:    DefaultJournal,
		SampleRate: DefaultSampleRate,
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// UnmarshalYAML decodes a Config, accepting the timeout either as a Go
// duration or as whole seconds.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		type plain Config
		return node.Decode((*plain)(c))
	}
	rest := *node
	rest.Content = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value != "timeout" {
			rest.Content = append(rest.Content, key, val)
			continue
		}
		d, err := parseDuration(val.Value)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	type plain Config
	return rest.Decode((*plain)(c))
}

func (c *Config) applyEnv() error {
	c.APIURL = getenv("VOICEAI_API_URL", c.APIURL)
	c.GroqAPIKey = getenv("VOICEAI_GROQ_API_KEY", c.GroqAPIKey)
	c.LogLevel = getenv("VOICEAI_LOG_LEVEL", c.LogLevel)
	c.LogFile = getenv("VOICEAI_LOG_FILE", c.LogFile)
	c.Journal = getenv("VOICEAI_JOURNAL", c.Journal)
	if v := os.Getenv("VOICEAI_RECORD_COMMAND"); v != "" {
		c.RecordCommand = strings.Fields(v)
	}

	timeout, err := getenvDuration("VOICEAI_TIMEOUT", c.Timeout)
	if err != nil {
		return err
	}
	c.Timeout = timeout
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api url is empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("api url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("api url %q: want http(s)://host[:port]", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseDuration accepts a Go duration ("90s") or whole seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
