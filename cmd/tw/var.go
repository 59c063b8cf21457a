package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// varCmd (get / set)
// ---------------------------------------------------------------------------

func varCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Read and write termmux variables",
	}
	cmd.AddCommand(varGetCmd(), varSetCmd())
	return cmd
}

func varGetCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Read a variable",
		Long: `Read a variable. With --session the variable is scoped to that
session; otherwise it is a global variable. An unset variable exits
with status 1, distinguishing it from a variable set to the empty
string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			value, ok, err := conn.GetVariable(ctx, sessionID, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("variable %q is not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Scope to a session instead of global")
	return cmd
}

func varSetCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			return conn.SetVariable(ctx, sessionID, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Scope to a session instead of global")
	return cmd
}
