// Command tw is a command-line client for the termmux control API:
// create windows and tabs, type into sessions, read screen contents,
// and watch live notifications, all from scripts or an interactive
// shell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/termwiresh/termwire"
	"github.com/termwiresh/termwire/internal/config"
)

var (
	socketFlag  string
	urlFlag     string
	timeoutFlag time.Duration
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tw",
		Short:         "Control a termmux terminal multiplexer from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the termmux control socket")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "Connect over WebSocket (ws://, wss://, or ws+unix:///path.sock)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Per-operation deadline")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log connection details to stderr")

	rootCmd.AddCommand(
		listCmd(),
		newWindowCmd(),
		newTabCmd(),
		sendCmd(),
		bufferCmd(),
		activateCmd(),
		varCmd(),
		watchCmd(),
		applyCmd(),
		authCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tw:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and folds the global flags in on
// top.
func loadConfig() (*config.Config, error) {
	dir, err := config.DefaultDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if socketFlag != "" {
		cfg.SocketPath = socketFlag
	}
	if urlFlag != "" {
		cfg.URL = urlFlag
	}
	return cfg, nil
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// connect dials termmux using the resolved configuration. The caller
// must Close the returned connection.
func connect(ctx context.Context) (*termwire.Conn, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	conn, err := termwire.Connect(ctx, &termwire.Options{
		SocketPath:      cfg.SocketPath,
		URL:             cfg.URL,
		ClientName:      cfg.ClientName,
		CredentialCache: cfg.CredentialCache,
		OnAuthPending: func(message string) {
			if message == "" {
				message = "waiting for approval in termmux..."
			}
			fmt.Fprintln(os.Stderr, "tw:", message)
		},
		Logger: logger(),
	})
	if err != nil {
		return nil, nil, err
	}
	return conn, cfg, nil
}

// opCtx returns the context for one operation: the per-operation
// deadline, cancelled early on SIGINT/SIGTERM.
func opCtx() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, tcancel := context.WithTimeout(ctx, timeoutFlag)
	return ctx, func() {
		tcancel()
		cancel()
	}
}
