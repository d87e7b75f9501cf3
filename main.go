// streamchat - A terminal chat client that streams answers as they arrive.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/streamchat/internal/autoscroll"
	"github.com/jeranaias/streamchat/internal/cli"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/ui/chat"
	"github.com/jeranaias/streamchat/internal/ui/markdown"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// watchDebounce collapses bursts of history writes from another process.
const watchDebounce = 200 * time.Millisecond

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])
	os.Exit(run(cmd, args))
}

// run executes cmd and returns the process exit code.
func run(cmd cli.Command, args cli.Args) int {
	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		return exit(cmd, args, cli.HandleVersion(os.Stdout, args))
	}

	configPath, err := resolveConfigPath(args)
	if err != nil {
		return exit(cmd, args, err)
	}
	cfg, err := loadConfig(configPath, args)
	if err != nil {
		return exit(cmd, args, err)
	}

	if cmd == cli.CmdConfig {
		return exit(cmd, args, cli.HandleConfig(&cli.Env{Config: cfg}, args, configPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd)
	if err != nil {
		return exit(cmd, args, err)
	}
	defer a.Close()

	switch cmd {
	case cli.CmdTUI:
		err = a.runTUI(ctx)
	case cli.CmdAsk:
		askCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
		err = cli.HandleAsk(askCtx, a.env, args)
		cancel()
	case cli.CmdChat:
		err = cli.HandleChat(ctx, a.env, args)
	case cli.CmdHistory:
		err = cli.HandleHistory(a.env, args)
	default:
		err = fmt.Errorf("unhandled command %s", cmd)
	}
	return exit(cmd, args, err)
}

// exit reports err and maps it to an exit code.
func exit(cmd cli.Command, args cli.Args, err error) int {
	if err == nil {
		return cli.ExitSuccess
	}
	// The failure text was already streamed as the answer.
	if !errors.Is(err, cli.ErrStreamFailed) {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
	}
	return cli.GetExitCode(err)
}

func resolveConfigPath(args cli.Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPath()
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(path string, args cli.Args) (*config.Config, error) {
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if args.Provider != "" {
		cfg.Provider = args.Provider
	}
	if args.Model != "" {
		cfg.Defaults.Model = args.Model
	}
	if args.Offline {
		cfg.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds everything a command runs against.
type app struct {
	cfg         *config.Config
	log         zerolog.Logger
	kv          storage.KV
	transcripts *storage.TranscriptStore
	store       *state.Store
	controller  *session.Controller
	program     *chat.ProgramRef
	env         *cli.Env
	cancel      context.CancelFunc
}

func newApp(parent context.Context, cfg *config.Config, cmd cli.Command) (*app, error) {
	logFile, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		File:   logFile,
	}); err != nil {
		return nil, err
	}
	log := logging.L()

	ctx, cancel := context.WithCancel(parent)
	a := &app{cfg: cfg, log: log, cancel: cancel, program: chat.NewProgramRef()}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				log.Error().Err(err).Str("listen", cfg.Metrics.Listen).Msg("metrics server stopped")
			}
		}()
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.kv, err = storage.Open(cfg.Storage.Backend, dataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	a.transcripts = storage.NewTranscriptStore(a.kv,
		storage.WithSettings(cfg.Settings()),
		storage.WithLogger(logging.For("storage")),
		storage.WithMetrics(m))

	p, err := producer.New(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	consumer := stream.NewConsumer(
		stream.WithLogger(logging.For("stream")),
		stream.WithMetrics(m))

	var md *markdown.Renderer
	if cfg.UI.Markdown {
		md = markdown.New(cfg.UI.Theme)
	}

	// The TUI receives snapshots as messages; the REPL prints them.
	var printer *cli.Printer
	observer := a.program.Snapshot()
	if cmd != cli.CmdTUI {
		printer = cli.NewPrinter(os.Stdout)
		observer = printer.Observe
	}

	a.store = state.NewStore(state.Initial())
	a.controller = session.New(a.store, a.transcripts, p,
		session.WithConsumer(consumer),
		session.WithObserver(observer),
		session.WithLogger(logging.For("session")))

	if cmd == cli.CmdTUI || cmd == cli.CmdChat {
		if err := a.controller.Bootstrap(); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.env = &cli.Env{
		Config:      cfg,
		Transcripts: a.transcripts,
		Producer:    p,
		Consumer:    consumer,
		Controller:  a.controller,
		Printer:     printer,
		Markdown:    md,
		Log:         log,
	}

	log.Info().
		Str("command", cmd.String()).
		Str("provider", cfg.Provider).
		Str("backend", cfg.Storage.Backend).
		Bool("offline", cfg.Offline).
		Msg("starting")
	return a, nil
}

// Close stops background work and releases the store and log file.
func (a *app) Close() {
	a.cancel()
	if a.transcripts != nil {
		if err := a.transcripts.Close(); err != nil {
			a.log.Error().Err(err).Msg("close store")
		}
	} else if a.kv != nil {
		a.kv.Close()
	}
	logging.Close()
}

// =============================================================================
// TUI
// =============================================================================

func (a *app) runTUI(ctx context.Context) error {
	theme := styles.NewTheme(a.cfg.UI.Theme)
	a.store.Dispatch(state.Action{Field: state.FieldLightMode, Value: theme.LightMode()})

	m := chat.New(chat.Options{
		Controller: a.controller,
		Theme:      theme,
		Autoscroll: autoscroll.New(a.cfg.UI.ScrollTolerance,
			time.Duration(a.cfg.UI.ScrollIntervalMs)*time.Millisecond),
		Markdown: a.env.Markdown,
		Logger:   logging.For("ui"),
		Context:  ctx,
		Offline:  a.cfg.Offline,
		Check: func(ctx context.Context) error {
			return producer.Check(ctx, a.env.Producer)
		},
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx))
	a.program.Set(p)
	defer a.program.Set(nil)

	unsubscribe := a.store.Subscribe(a.program.State())
	defer unsubscribe()

	if w := a.watchHistory(); w != nil {
		defer w.Close()
	}

	_, err := p.Run()
	a.controller.Stop()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchHistory forwards history changes made by other processes to the
// program. It returns nil when watching is off or unsupported.
func (a *app) watchHistory() *storage.Watcher {
	if !a.cfg.Storage.Watch {
		return nil
	}
	fkv, ok := a.kv.(*storage.FileKV)
	if !ok {
		a.log.Debug().Str("backend", a.cfg.Storage.Backend).Msg("history watch needs the file backend")
		return nil
	}
	w, err := storage.NewWatcher(fkv, watchDebounce, func(key string) {
		if key == storage.KeyConversationHistory {
			a.program.Send(chat.HistoryChangedMsg{Key: key})
		}
	}, logging.For("watcher"))
	if err != nil {
		a.log.Warn().Err(err).Msg("history watch disabled")
		return nil
	}
	return w
}
