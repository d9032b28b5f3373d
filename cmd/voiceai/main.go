// voiceai is a terminal client for the VoiceAI text-to-SQL backend. Load a
// CSV, then ask questions by voice or text and get the retrieved context
// and the generated SQL.
//
// With --mcp it serves the same workflow as Model Context Protocol tools on
// stdio instead of starting the TUI.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/0anu/VoiceAI/internal/api"
	"github.com/0anu/VoiceAI/internal/app"
	"github.com/0anu/VoiceAI/internal/config"
	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/mcpserver"
	"github.com/0anu/VoiceAI/internal/orchestrator"
	"github.com/0anu/VoiceAI/internal/recorder"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("voiceai", pflag.ContinueOnError)
	configPath := flagSet.String("config", os.Getenv("VOICEAI_CONFIG"), "path to a YAML config file")
	apiURL := flagSet.String("api-url", "", "backend base URL (default "+config.DefaultAPIURL+")")
	apiKey := flagSet.String("api-key", "", "Groq API key sent with CSV uploads")
	timeout := flagSet.Duration("timeout", 0, "HTTP request timeout")
	logLevel := flagSet.String("log-level", "", "log level (debug, info, warn, error)")
	logFile := flagSet.String("log-file", "", "log file path")
	journalPath := flagSet.String("journal", "", "diagnostics database path, or :memory:")
	recordCommand := flagSet.StringSlice("record-command", nil, "command that writes raw s16le mono PCM to stdout")
	dir := flagSet.String("dir", "", "directory the file picker opens in")
	mcpMode := flagSet.Bool("mcp", false, "serve MCP tools on stdio instead of starting the TUI")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println("voiceai", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *apiKey != "" {
		cfg.GroqAPIKey = *apiKey
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *journalPath != "" {
		cfg.Journal = *journalPath
	}
	if len(*recordCommand) > 0 {
		cfg.RecordCommand = *recordCommand
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the TUI (or to the MCP protocol), so logs go
	// to a file.
	logOut, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()
	log := newLogger(logOut, cfg.LogLevel)

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	mic := &recorder.ExecMicrophone{Command: cfg.RecordCommand}
	if len(mic.Command) == 0 {
		mic.Command = recorder.DefaultCommand(cfg.SampleRate)
	}

	log.Info().
		Str("version", version).
		Str("api", cfg.APIURL).
		Dur("timeout", cfg.Timeout).
		Str("journal", cfg.Journal).
		Bool("mcp", *mcpMode).
		Msg("voiceai starting")

	orchCfg := orchestrator.Config{
		Backend:    api.New(cfg.APIURL, cfg.Timeout),
		Microphone: mic,
		Journal:    store,
		Logger:     log,
		APIURL:     cfg.APIURL,
		SampleRate: cfg.SampleRate,
	}

	if *mcpMode {
		collector := mcpserver.NewCollector()
		orchCfg.Surface = collector
		orch := orchestrator.New(orchCfg)
		defer orch.Close()
		return mcpserver.New(orch, collector, version, log).ServeStdio()
	}

	surface := app.NewSurface()
	orchCfg.Surface = surface
	orch := orchestrator.New(orchCfg)
	defer orch.Close()

	model := app.New(app.Options{
		Orchestrator: orch,
		Journal:      store,
		APIURL:       cfg.APIURL,
		APIKey:       cfg.GroqAPIKey,
		StartDir:     *dir,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	surface.Attach(program.Send)

	if _, err := program.Run(); err != nil {
		log.Error().Err(err).Msg("tui exited with error")
		return err
	}
	log.Info().Msg("voiceai stopped")
	return nil
}

func newLogger(out *os.File, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = l
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
