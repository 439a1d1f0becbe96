// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// katrix is a terminal Matrix client. By default it runs a full-screen
// TUI with the joined rooms, the active room's timeline, and an input
// line. With --shell it runs a line-oriented REPL instead, for
// terminals where a full-screen interface is unwelcome.
//
// Configuration is read from --config, $KATRIX_CONFIG, or
// $XDG_CONFIG_HOME/katrix/config.yaml, in that order. Flags override
// the file. Operational logs go to katrix.log in the state directory;
// the Matrix SDK's request log goes to mautrix.log next to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/chatui"
	"github.com/bureau-foundation/katrix/lib/config"
	"github.com/bureau-foundation/katrix/lib/mediacache"
	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/tui"
	"github.com/bureau-foundation/katrix/lib/version"
	"github.com/bureau-foundation/katrix/messaging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			if message := err.Error(); message != "" {
				fmt.Fprintf(os.Stderr, "error: %s\n", message)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// usageError is a command-line mistake. It exits with status 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
func (e *usageError) ExitCode() int { return 2 }

func usage(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// errHelp reports that --help was handled.
var errHelp = errors.New("help requested")

// options are the parsed command-line flags.
type options struct {
	configPath  string
	homeserver  string
	username    string
	debug       bool
	shell       bool
	showVersion bool

	// login logs in at startup, reading the password from
	// passwordFile ("-" for stdin) or else from the terminal.
	login        bool
	passwordFile string
}

// parseArgs parses the command line. It returns errHelp after printing
// usage to out when --help is given.
func parseArgs(args []string, out io.Writer) (options, error) {
	var parsed options
	flagSet := pflag.NewFlagSet("katrix", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&parsed.configPath, "config", "c", "", "configuration file (default: $KATRIX_CONFIG or $XDG_CONFIG_HOME/katrix/config.yaml)")
	flagSet.StringVar(&parsed.homeserver, "homeserver", "", "homeserver URL offered at login (overrides the config file)")
	flagSet.StringVarP(&parsed.username, "user", "u", "", "username offered at login (overrides the config file)")
	flagSet.BoolVar(&parsed.debug, "debug", false, "log debug records and SDK requests")
	flagSet.BoolVar(&parsed.shell, "shell", false, "run the line-oriented shell instead of the TUI")
	flagSet.BoolVar(&parsed.login, "login", false, "log in at startup with the configured homeserver and username")
	flagSet.StringVar(&parsed.passwordFile, "password-file", "", "read the startup password from this file (\"-\" for stdin); implies --login")
	flagSet.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(out, "katrix, a terminal Matrix client.\n\nUsage:\n  katrix [flags]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return parsed, errHelp
		}
		return parsed, usage("%v", err)
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return parsed, usage("unexpected argument: %s", rest[0])
	}
	if parsed.passwordFile != "" {
		parsed.login = true
	}
	return parsed, nil
}

// apply overrides configuration values with the flags that were set.
func (o options) apply(cfg *config.Config) {
	if o.homeserver != "" {
		cfg.Homeserver = o.homeserver
	}
	if o.username != "" {
		cfg.Username = o.username
	}
}

func run(args []string) error {
	opts, err := parseArgs(args, os.Stderr)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("katrix %s\n", version.Full())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.login && (cfg.Homeserver == "" || cfg.Username == "") {
		return usage("--login needs a homeserver and username (flags or config file)")
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	var password *secret.Buffer
	if opts.login {
		password, err = readStartupPassword(opts.passwordFile)
		if err != nil {
			return err
		}
		defer password.Close()
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	fileHandler, closeLog, err := openFileLogHandler(filepath.Join(cfg.StateDir, "katrix.log"), level)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()

	sdkLogger, closeSDKLog, err := openSDKLogger(filepath.Join(cfg.StateDir, "mautrix.log"), opts.debug)
	if err != nil {
		return fmt.Errorf("opening SDK log file: %w", err)
	}
	defer closeSDKLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.shell {
		return runShell(ctx, cfg, password, fileHandler, sdkLogger)
	}
	return runTUI(ctx, cfg, password, fileHandler, sdkLogger)
}

// readStartupPassword reads the --login password before any interface
// takes over the terminal.
func readStartupPassword(path string) (*secret.Buffer, error) {
	if path != "" {
		password, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		return password, nil
	}
	return secret.ReadPassword(int(os.Stdin.Fd()), os.Stderr, "Password: ")
}

// runTUI runs the full-screen interface. A non-nil password logs in
// while the interface starts. Background logging is routed
// through a chatui.LogHandler so that warnings show in the
// notification bar instead of corrupting the alt screen.
func runTUI(ctx context.Context, cfg *config.Config, password *secret.Buffer, fileHandler slog.Handler, sdkLogger *zerolog.Logger) error {
	theme, err := tui.ThemeByName(cfg.Theme)
	if err != nil {
		return err
	}

	tuiHandler := chatui.NewLogHandler(slog.LevelWarn)
	logger := slog.New(fanoutHandler{tuiHandler, fileHandler})

	client, closeClient, err := newChatClient(ctx, cfg, logger, sdkLogger)
	if err != nil {
		return err
	}
	defer closeClient()

	model := chatui.New(client, chatui.Options{
		Theme:      theme,
		Profile:    termenv.EnvColorProfile(),
		Homeserver: cfg.Homeserver,
		Username:   cfg.Username,
		Context:    ctx,
	})
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tuiHandler.SetProgram(program)
	defer tuiHandler.SetProgram(nil)

	// The model follows the login through the client's holders. The
	// buffer stays open until run returns, after the login is done.
	var login sync.WaitGroup
	if password != nil {
		login.Add(1)
		go func() {
			defer login.Done()
			_ = client.Login(ctx, cfg.Homeserver, cfg.Username, password)
		}()
	}
	defer login.Wait()

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// newChatClient builds the thumbnail cache and the chat client. The
// returned function closes both.
func newChatClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, sdkLogger *zerolog.Logger) (*chat.Client, func(), error) {
	syncTimeout, err := cfg.SyncTimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	media, err := mediacache.Open(ctx, mediacache.Config{
		Path:           filepath.Join(cfg.CacheDir, "thumbnails.db"),
		Logger:         logger,
		MemoryCapacity: uint64(cfg.Thumbnail.MemoryEntries),
		DiskEntries:    cfg.Thumbnail.DiskEntries,
		Compression:    cfg.Thumbnail.Compression,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening thumbnail cache: %w", err)
	}

	client, err := chat.NewClient(chat.Config{
		Connect: chat.PasswordLogin(messaging.ClientConfig{
			Logger:      logger,
			SDKLogger:   sdkLogger,
			SyncTimeout: syncTimeout,
		}),
		BatchSize:       cfg.BatchSize,
		ThumbnailWidth:  cfg.Thumbnail.Width,
		ThumbnailHeight: cfg.Thumbnail.Height,
		Media:           media,
		Logger:          logger,
	})
	if err != nil {
		media.Close()
		return nil, nil, err
	}

	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing session failed", "error", err)
		}
		if err := media.Close(); err != nil {
			logger.Warn("closing thumbnail cache failed", "error", err)
		}
	}, nil
}

// openFileLogHandler creates a slog.JSONHandler appending to path.
// Returns the handler and a function that closes the file.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// openSDKLogger creates the zerolog logger handed to mautrix. Without
// debug it records warnings and above.
func openSDKLogger(path string, debug bool) (*zerolog.Logger, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(file).Level(level).With().Timestamp().Logger()
	return &logger, func() { file.Close() }, nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
