package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// newWindowCmd
// ---------------------------------------------------------------------------

func newWindowCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "new-window",
		Short: "Create a new window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, cfg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if profile == "" {
				profile = cfg.DefaultProfile
			}
			w, err := conn.CreateWindow(ctx, profile)
			if err != nil {
				return fmt.Errorf("creating window: %w", err)
			}
			fmt.Println(w.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile for the new window's session")
	return cmd
}

// ---------------------------------------------------------------------------
// newTabCmd
// ---------------------------------------------------------------------------

func newTabCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "new-tab <window-id>",
		Short: "Create a new tab in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, cfg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if profile == "" {
				profile = cfg.DefaultProfile
			}
			tab, err := conn.CreateTab(ctx, args[0], profile)
			if err != nil {
				return err
			}
			fmt.Println(tab.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile for the new tab's session")
	return cmd
}

// ---------------------------------------------------------------------------
// activateCmd
// ---------------------------------------------------------------------------

func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <session-id>",
		Short: "Focus a session, bringing its tab and window forward",
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
			return s.Activate(ctx)
		},
	}
}
