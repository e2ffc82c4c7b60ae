// Package config loads the daemon's process-level settings: the
// listen address, data directory, and logging sinks. This is the
// ambient, outer-surface configuration — the in-core `rust` settings
// object recognized from `initializationOptions`/`didChangeConfiguration`
// lives in package rustconfig instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the top-level process configuration, loaded once at
// startup from an rls.toml file (or defaults, if none is present).
type Config struct {
	Service ServiceConfig `toml:"service"`
	Debug   DebugConfig   `toml:"debug"`
	Logging LoggingConfig `toml:"logging"`
}

// ServiceConfig controls the daemon's transports.
type ServiceConfig struct {
	// ListenAddress is the host:port the JSON-RPC TCP transport binds
	// to, for clients that don't speak framed stdio (e.g. rlsctl).
	ListenAddress string `toml:"listen_address"`
	// DataDir holds the PID file and log output.
	DataDir string `toml:"data_dir"`
	// PIDFile overrides the default PID file location.
	PIDFile string `toml:"pid_file"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

// DebugConfig controls the read-only introspection HTTP surface.
type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// LoggingConfig controls the arbor-backed logger.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
}

// StringSlice unmarshals from either a bare string or an array of
// strings, so a single-output config doesn't need `output = ["x"]`.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultConfig returns the configuration used when no rls.toml is
// present. RLS_LISTEN_ADDRESS overrides the listen address, matching
// the environment-override convention the teacher uses for its own
// host/port.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	listen := "127.0.0.1:8421"
	if env := os.Getenv("RLS_LISTEN_ADDRESS"); env != "" {
		listen = env
	}

	return &Config{
		Service: ServiceConfig{
			ListenAddress:          listen,
			DataDir:                dataDir,
			PIDFile:                filepath.Join(dataDir, "rls.pid"),
			ShutdownTimeoutSeconds: 30,
		},
		Debug: DebugConfig{
			Enabled: true,
			Address: "127.0.0.1:8422",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"stdout"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// DefaultDataDir mirrors the teacher's per-OS XDG-ish data directory
// resolution.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "rls")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "rls")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "rls")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "rls")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".rls")
	}
}

// Load reads path, merging over DefaultConfig. A missing file is not
// an error — the daemon runs on defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects an unusable configuration before the daemon starts.
func (c *Config) Validate() error {
	if _, portStr, err := splitHostPort(c.Service.ListenAddress); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			if port < 1 || port > 65535 {
				return fmt.Errorf("invalid listen port: %d", port)
			}
		}
	}
	if c.Service.ShutdownTimeoutSeconds < 1 {
		return fmt.Errorf("shutdown_timeout_seconds must be at least 1")
	}
	return nil
}

func splitHostPort(addr string) (host, port string, err error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("no port in address %q", addr)
}

// EnsureDirectories creates the data directory tree.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Service.DataDir, filepath.Join(c.Service.DataDir, "logs")}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPath returns the daemon's log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "rls.log")
}

// PIDPath returns the PID file path.
func (c *Config) PIDPath() string {
	if c.Service.PIDFile != "" {
		return c.Service.PIDFile
	}
	return filepath.Join(c.Service.DataDir, "rls.pid")
}
