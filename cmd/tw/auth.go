package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/termwiresh/termwire"
	"github.com/termwiresh/termwire/internal/credstore"
)

// ---------------------------------------------------------------------------
// authCmd (login / list / clear)
// ---------------------------------------------------------------------------

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage cached termmux credentials",
	}
	cmd.AddCommand(authLoginCmd(), authListCmd(), authClearCmd())
	return cmd
}

func authLoginCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a shared key and cache the issued cookie",
		Long: `Authenticate using the multiplexer's shared key. On success the
issued cookie is cached, so later commands connect without prompting.
Without --key the key is read from the terminal with echo disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				var err error
				key, err = promptKey()
				if err != nil {
					return err
				}
			}

			ctx, cancel := opCtx()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := termwire.Connect(ctx, &termwire.Options{
				SocketPath:      cfg.SocketPath,
				URL:             cfg.URL,
				Auth:            termwire.AuthPreauthorized,
				Key:             key,
				ClientName:      cfg.ClientName,
				CredentialCache: cfg.CredentialCache,
				Logger:          logger(),
			})
			if err != nil {
				return err
			}
			conn.Close()

			fmt.Println("authenticated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Shared key (prompted when omitted)")
	return cmd
}

// promptKey reads the shared key from the terminal without echoing it.
func promptKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("stdin is not a terminal; pass --key")
	}
	fmt.Fprint(os.Stderr, "termmux key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty key")
	}
	return string(key), nil
}

func authListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no cached credentials")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s  %s  %s\n", r.Endpoint, r.ClientName, r.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func authClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <endpoint>",
		Short: "Remove a cached credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(args[0])
		},
	}
}

func openStore() (*credstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.CredentialCache == "" {
		return nil, fmt.Errorf("credential cache is disabled in config")
	}
	return credstore.Open(cfg.CredentialCache)
}
