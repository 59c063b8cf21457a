package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termwiresh/termwire"
)

// findSession resolves a session id to a handle via a fresh listing,
// so a typo'd id fails with a clear local error.
func findSession(ctx context.Context, conn *termwire.Conn, id string) (*termwire.Session, error) {
	sessions, err := conn.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no session %q (try 'tw list')", id)
}

// ---------------------------------------------------------------------------
// sendCmd
// ---------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "send <session-id> <text>...",
		Short: "Type text into a session",
		Long: `Type text into a session as if entered at the keyboard.
Multiple arguments are joined with spaces. With --run a carriage
return is appended, executing the text as a command.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := findSession(ctx, conn, args[0])
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")
			if run {
				text += "\r"
			}
			return s.SendText(ctx, text)
		},
	}
	cmd.Flags().BoolVarP(&run, "run", "r", false, "Append a carriage return to execute the text")
	return cmd
}

// ---------------------------------------------------------------------------
// bufferCmd
// ---------------------------------------------------------------------------

func bufferCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "buffer <session-id>",
		Short: "Print a session's screen contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := findSession(ctx, conn, args[0])
			if err != nil {
				return err
			}

			buf, err := s.Buffer(ctx, lines)
			if err != nil {
				return fmt.Errorf("fetching buffer: %w", err)
			}
			for _, line := range buf {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Include this many lines of scrollback")
	return cmd
}
