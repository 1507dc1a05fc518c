package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"file-assets.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Build struct {
		Only string `help:"Restrict the pass to one content type (css or js)"`
		Refs bool   `help:"Print the HTML reference fragment for the exported assets"`
	} `cmd:"" help:"Run one export pass over the configured sources"`

	Scan struct {
		Page    string `arg:"" type:"existingfile" help:"HTML page to extract asset references from"`
		WebRoot string `help:"Directory absolute references in the page resolve against" default:"."`
		Refs    bool   `help:"Print the HTML reference fragment for the exported assets"`
	} `cmd:"" help:"Seed the pass with references extracted from an HTML page, then build"`

	Ls struct {
		Only string `help:"Restrict the listing to one content type (css or js)"`
	} `cmd:"" help:"List discovered assets and their bucket grouping without building"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write an example configuration file"`

	History struct {
		Limit int `short:"n" default:"20" help:"Export passes to display"`
	} `cmd:"" help:"Show recent export passes from the history store"`

	Clean struct{} `cmd:"" help:"Drop build-skip cache markers, forcing a rebuild on the next pass"`

	Daemon struct{} `cmd:"" help:"Watch, schedule and serve continuous exports"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("file-assets"),
		kong.Description("Groups web asset references, runs them through a filter pipeline and writes derived outputs."),
		kong.Vars{"version": version.Version},
	)

	logger := newLogger(nil)
	slog.SetDefault(logger)

	// SIGINT/SIGTERM cancel the running pass; the daemon shuts down
	// gracefully on the same signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := errors.NewCLIErrorAdapter(CLI.Verbose, logger)

	var err error
	switch kctx.Command() {
	case "build":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runBuild(ctx, cfg, logger, CLI.Build.Only, CLI.Build.Refs)
		})
	case "scan <page>":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runScan(ctx, cfg, logger, CLI.Scan.Page, CLI.Scan.WebRoot, CLI.Scan.Refs)
		})
	case "ls":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runLs(cfg, logger, CLI.Ls.Only)
		})
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	case "history":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runHistory(ctx, cfg, CLI.History.Limit)
		})
	case "clean":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runClean(cfg, logger)
		})
	case "daemon":
		err = withConfig(func(cfg *config.Config, logger *slog.Logger) error {
			return runDaemon(ctx, cfg, logger)
		})
	default:
		kctx.Fatalf("unknown command %q", kctx.Command())
	}

	adapter.HandleError(err)
}

// withConfig loads the configuration, rebuilds the logger from its logging
// section and hands both to the command body.
func withConfig(run func(cfg *config.Config, logger *slog.Logger) error) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	return run(cfg, logger)
}

// newLogger builds the process logger. Before configuration is available
// cfg is nil and a plain text logger is used; --verbose always wins over
// the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	format := config.LogFormatText
	if cfg != nil && cfg.Monitoring != nil {
		switch cfg.Monitoring.Logging.Level {
		case config.LogLevelDebug:
			level = slog.LevelDebug
		case config.LogLevelWarn:
			level = slog.LevelWarn
		case config.LogLevelError:
			level = slog.LevelError
		}
		format = cfg.Monitoring.Logging.Format
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
