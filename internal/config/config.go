// Package config loads the client's configuration file and applies
// environment overrides. Configuration is optional: the zero config
// connects to the multiplexer's default control socket.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
)

// Environment variables recognized by Load. Each overrides the
// corresponding file setting.
const (
	EnvConfigDir  = "TERMWIRE_CONFIG_DIR"
	EnvSocket     = "TERMWIRE_SOCKET"
	EnvURL        = "TERMWIRE_URL"
	EnvClientName = "TERMWIRE_CLIENT_NAME"
)

// Config is the on-disk client configuration, TOML-encoded.
type Config struct {
	// SocketPath overrides the multiplexer's default control socket.
	SocketPath string `toml:"socket_path"`

	// URL connects over WebSocket instead of the control socket.
	// Takes precedence over SocketPath when both are set.
	URL string `toml:"url"`

	// ClientName is shown in the multiplexer's approval prompt.
	ClientName string `toml:"client_name"`

	// CredentialCache is the path of the SQLite cookie cache. Empty
	// means the default location inside the config directory; "off"
	// disables caching.
	CredentialCache string `toml:"credential_cache"`

	// DefaultProfile is used by create operations when no profile is
	// given on the command line.
	DefaultProfile string `toml:"default_profile"`
}

// DefaultDir returns the configuration directory, honoring
// TERMWIRE_CONFIG_DIR.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".termwire"), nil
}

// Load reads dir/config.toml, fills defaults, and applies environment
// overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	var cfg Config

	path := filepath.Join(dir, "config.toml")
	meta, err := toml.DecodeFile(path, &cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("loading %s: %w", path, err)
	default:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("loading %s: unknown key %q", path, undecoded[0].String())
		}
	}

	if v := os.Getenv(EnvSocket); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv(EnvURL); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv(EnvClientName); v != "" {
		cfg.ClientName = v
	}

	if cfg.ClientName == "" {
		cfg.ClientName = "termwire"
	}
	switch cfg.CredentialCache {
	case "":
		cfg.CredentialCache = filepath.Join(dir, "credentials.db")
	case "off":
		cfg.CredentialCache = ""
	}

	return &cfg, nil
}
