// Herald is a Discord assistant bot.
//
// It connects to the Discord realtime gateway, watches for messages that
// mention the bot or reply to it, and answers them using the OpenAI
// Responses API. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	herald serve             Connect to Discord and start answering
//	herald version           Print version and build information
//	herald -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/herald-bot/herald/internal/buildinfo"
	"github.com/herald-bot/herald/internal/config"
	"github.com/herald-bot/herald/internal/discord"
	"github.com/herald-bot/herald/internal/fetch"
	"github.com/herald-bot/herald/internal/openai"
	"github.com/herald-bot/herald/internal/responder"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the herald command. All OS-level
// dependencies are injected as parameters: ctx controls the process
// lifetime (cancelling it triggers graceful shutdown), stdout and stderr
// receive all output, and args is os.Args[1:].
//
// Arguments are parsed by hand. The flag package relies on package-level
// globals (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// herald is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Herald - Discord assistant bot")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: herald [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Connect to Discord and start answering")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./herald.yaml, ~/.config/herald/herald.yaml, /etc/herald/herald.yaml")
	return nil
}

// runServe handles the "herald serve" subcommand. It is the only
// operating mode: loads config, connects to the Discord gateway, and
// spawns one response cycle per inbound message until a shutdown signal
// arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The gateway connection closes, ending the event loop
//  3. In-flight response cycles are waited out before exit
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Herald",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		// ParseLogLevel is already validated by config loading, so this
		// error path should be unreachable in practice.
		level, _ := config.ParseLogLevel(cfg.LogLevel)
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"seed_depth", cfg.Responder.SeedDepth,
		"typing_interval", cfg.Responder.TypingInterval(),
	)

	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Discord REST client ---
	// Message history, replies, and the typing indicator all go through
	// the REST API; only inbound events use the realtime gateway.
	rest := discord.NewClient(cfg.Discord.Token, logger)

	me, err := rest.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("discord authentication failed: %w", err)
	}
	logger.Info("authenticated with Discord", "user", me.DisplayName(), "user_id", me.ID)

	// --- Discord gateway ---
	// Realtime event stream. Connect blocks until READY, so after this
	// point the gateway knows the bot's identity too.
	gw := discord.NewGateway(cfg.Discord.Token, logger)
	if err := gw.Connect(ctx); err != nil {
		return fmt.Errorf("discord gateway connect: %w", err)
	}
	defer gw.Close()

	// --- Completion client ---
	oai := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)

	// --- Responder ---
	rsp := responder.New(responder.Config{
		Gateway:        rest,
		Completer:      oai,
		Inliner:        fetch.New(),
		Logger:         logger,
		BotUser:        *me,
		SeedDepth:      cfg.Responder.SeedDepth,
		TypingInterval: cfg.Responder.TypingInterval(),
		RateLimit:      cfg.Responder.RateLimit,
	})

	logger.Info("Herald ready", "bot", me.DisplayName())

	// --- Event loop ---
	// One goroutine per accepted message, so a slow completion never
	// blocks other channels. The WaitGroup lets shutdown drain in-flight
	// cycles instead of cutting off half-sent replies. A dropped gateway
	// connection is re-dialed; only a failed reconnect ends the process.
	var wg sync.WaitGroup
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-gw.Done():
			if ctx.Err() != nil {
				break loop
			}
			logger.Warn("gateway connection lost, reconnecting")
			if err := gw.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					break loop
				}
				wg.Wait()
				return fmt.Errorf("gateway reconnect: %w", err)
			}
			logger.Info("gateway reconnected")
		case msg := <-gw.Messages():
			wg.Add(1)
			go func() {
				defer wg.Done()
				rsp.HandleMessage(ctx, msg)
			}()
		}
	}

	logger.Info("shutdown signal received, draining in-flight responses")
	wg.Wait()
	logger.Info("Herald stopped")
	return nil
}

// newLogger creates a structured text logger that writes to w at the
// given level. All log output in Herald goes through slog; this helper
// standardizes the handler configuration.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
