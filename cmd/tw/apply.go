package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/termwiresh/termwire"
	"github.com/termwiresh/termwire/protocol"
)

// ---------------------------------------------------------------------------
// applyCmd
// ---------------------------------------------------------------------------

// layoutPlan is the YAML schema for "tw apply": a batch of windows to
// create, each with extra tabs and commands to run in them.
type layoutPlan struct {
	Windows []windowPlan `yaml:"windows"`
}

type windowPlan struct {
	Profile string    `yaml:"profile"`
	Run     []string  `yaml:"run"`
	Tabs    []tabPlan `yaml:"tabs"`
}

type tabPlan struct {
	Profile string   `yaml:"profile"`
	Run     []string `yaml:"run"`
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Create a window layout from a YAML plan",
		Long: `Create windows, tabs, and running commands from a declarative
YAML plan. Example:

  windows:
    - profile: dev
      run: ["cd ~/src && make watch"]
      tabs:
        - run: ["tail -f /var/log/app.log"]

Each "run" entry is sent to the window's or tab's first session with a
trailing carriage return. "-" reads the plan from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := opCtx()
			defer cancel()

			conn, cfg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			for i, wp := range plan.Windows {
				if err := applyWindow(ctx, conn, cfg.DefaultProfile, wp); err != nil {
					return fmt.Errorf("window %d: %w", i, err)
				}
			}
			return nil
		},
	}
}

func readPlan(path string) (*layoutPlan, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var plan layoutPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if len(plan.Windows) == 0 {
		return nil, fmt.Errorf("plan declares no windows")
	}
	return &plan, nil
}

func applyWindow(ctx context.Context, conn *termwire.Conn, defaultProfile string, wp windowPlan) error {
	profile := wp.Profile
	if profile == "" {
		profile = defaultProfile
	}

	w, err := conn.CreateWindow(ctx, profile)
	if err != nil {
		return err
	}
	fmt.Println(w.ID)

	if len(wp.Run) > 0 {
		if err := runInFirstSession(ctx, conn, w.Snapshot.Tabs, wp.Run); err != nil {
			return err
		}
	}

	for i, tp := range wp.Tabs {
		tabProfile := tp.Profile
		if tabProfile == "" {
			tabProfile = defaultProfile
		}
		tab, err := w.CreateTab(ctx, tabProfile)
		if err != nil {
			return fmt.Errorf("tab %d: %w", i, err)
		}
		fmt.Println(tab.ID)

		if len(tp.Run) > 0 {
			if err := runInFirstSession(ctx, conn, []protocol.TabSnapshot{tab.Snapshot}, tp.Run); err != nil {
				return fmt.Errorf("tab %d: %w", i, err)
			}
		}
	}
	return nil
}

// runInFirstSession types each command into the first session of the
// first tab, carriage return appended.
func runInFirstSession(ctx context.Context, conn *termwire.Conn, tabs []protocol.TabSnapshot, cmds []string) error {
	if len(tabs) == 0 || len(tabs[0].Sessions) == 0 {
		return fmt.Errorf("created window has no session to run commands in")
	}
	sessionID := tabs[0].Sessions[0].SessionID
	for _, c := range cmds {
		if err := conn.SendText(ctx, sessionID, c+"\r"); err != nil {
			return fmt.Errorf("running %q: %w", c, err)
		}
	}
	return nil
}
