package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/termwiresh/termwire"
)

// ---------------------------------------------------------------------------
// listCmd
// ---------------------------------------------------------------------------

func listCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List windows, tabs, and sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			windows, err := conn.ListWindows(ctx)
			if err != nil {
				return fmt.Errorf("listing windows: %w", err)
			}

			if jsonOutput {
				snapshots := make([]any, 0, len(windows))
				for _, w := range windows {
					snapshots = append(snapshots, w.Snapshot)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snapshots)
			}

			printTree(windows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit raw snapshots as JSON")
	return cmd
}

// printTree renders the window tree. On a terminal, window lines are
// bolded; piped output stays plain so it greps cleanly.
func printTree(windows []*termwire.Window) {
	if len(windows) == 0 {
		fmt.Println("no windows")
		return
	}

	bold, reset := "", ""
	if isatty.IsTerminal(os.Stdout.Fd()) {
		bold, reset = "\x1b[1m", "\x1b[0m"
	}

	for _, w := range windows {
		title := w.Snapshot.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s%s%s  %s\n", bold, w.ID, reset, title)
		for _, tab := range w.Snapshot.Tabs {
			fmt.Printf("  %s  %s\n", tab.TabID, tab.Title)
			for _, s := range tab.Sessions {
				size := ""
				if s.Grid != nil {
					size = fmt.Sprintf(" [%dx%d]", s.Grid.Cols, s.Grid.Rows)
				}
				fmt.Printf("    %s  %s%s\n", s.SessionID, s.Title, size)
			}
		}
	}
}
