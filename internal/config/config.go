// Package config provides configuration file support for trippy.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the trippy configuration file structure.
type Config struct {
	// Defaults are applied when flags are not specified.
	Defaults Defaults `yaml:"defaults"`

	// Aliases for common targets.
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// Defaults holds default values for trace parameters.
type Defaults struct {
	// Output mode
	TUI     bool `yaml:"tui"`
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
	CSV     bool `yaml:"csv"`
	NoColor bool `yaml:"no_color"`

	// Probe method: icmp, udp, tcp
	ProbeMethod string `yaml:"probe_method"`

	// Round parameters
	FirstTTL         int           `yaml:"first_ttl"`
	MaxTTL           int           `yaml:"max_ttl"`
	MaxInflight      int           `yaml:"max_inflight"`
	MinRoundDuration time.Duration `yaml:"min_round_duration"`
	MaxRoundDuration time.Duration `yaml:"max_round_duration"`
	GraceDuration    time.Duration `yaml:"grace_duration"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	MaxUnknownHops   int           `yaml:"max_unknown_hops"`
	PacketSize       int           `yaml:"packet_size"`

	// Network
	SourcePort int `yaml:"source_port"`
	DestPort   int `yaml:"dest_port"`

	// Resolution
	Resolve ResolveConfig `yaml:"resolve"`
}

// ResolveConfig holds reverse-DNS settings, the one enrichment feature
// this module carries. See DESIGN.md for why ASN/GeoIP were dropped.
type ResolveConfig struct {
	Enabled bool          `yaml:"enabled"`
	Method  string        `yaml:"method"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			TUI:              true,
			Verbose:          false,
			JSON:             false,
			CSV:              false,
			NoColor:          false,
			ProbeMethod:      "icmp",
			FirstTTL:         1,
			MaxTTL:           30,
			MaxInflight:      8,
			MinRoundDuration: 1 * time.Second,
			MaxRoundDuration: 5 * time.Second,
			GraceDuration:    200 * time.Millisecond,
			ReadTimeout:      50 * time.Millisecond,
			MaxUnknownHops:   10,
			PacketSize:       64,
			SourcePort:       0,
			DestPort:         33434,
			Resolve: ResolveConfig{
				Enabled: true,
				Method:  "system",
				Timeout: 2 * time.Second,
			},
		},
		Aliases: make(map[string]string),
	}
}

// Load reads configuration from the default config file locations.
// It searches in order:
//  1. ./trippy.yaml (current directory)
//  2. ~/.config/trippy/config.yaml (Linux/macOS)
//  3. %APPDATA%\trippy\config.yaml (Windows)
//
// If no config file is found, returns default configuration.
func Load() (*Config, error) {
	paths := getConfigPaths()

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to the default user config path.
func (c *Config) Save() error {
	return c.SaveTo(getUserConfigPath())
}

// SaveTo writes the configuration to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// getConfigPaths returns the list of config file paths to search.
func getConfigPaths() []string {
	paths := []string{
		"trippy.yaml",
		"trippy.yml",
		".trippy.yaml",
		".trippy.yml",
	}

	if userPath := getUserConfigPath(); userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

// getUserConfigPath returns the user-specific config file path.
func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "trippy", "config.yaml")
		}
	default: // Linux, macOS, etc.
		home, err := os.UserHomeDir()
		if err == nil {
			if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
				return filepath.Join(xdgConfig, "trippy", "config.yaml")
			}
			return filepath.Join(home, ".config", "trippy", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the path where user config would be saved.
func GetConfigPath() string {
	return getUserConfigPath()
}

// GenerateExample generates an example configuration file's content.
func GenerateExample() string {
	return `# trippy configuration file
# Location: ~/.config/trippy/config.yaml (Linux/macOS)
#           %APPDATA%\trippy\config.yaml (Windows)
#           ./trippy.yaml (current directory)

defaults:
  # Output mode (only one should be true)
  tui: true               # Interactive TUI mode
  verbose: false          # Detailed table output
  json: false             # JSON output
  csv: false              # CSV output
  no_color: false         # Disable colors

  # Probe method: icmp, udp, tcp
  probe_method: icmp

  # Round parameters
  first_ttl: 1
  max_ttl: 30
  max_inflight: 8
  min_round_duration: 1s
  max_round_duration: 5s
  grace_duration: 200ms
  read_timeout: 50ms
  max_unknown_hops: 10
  packet_size: 64

  # Network settings
  source_port: 0          # 0 = UDP probes use port 0, TCP starts at 40000
  dest_port: 33434

  # Reverse DNS resolution
  resolve:
    enabled: true
    method: system         # system, resolv, google, cloudflare
    timeout: 2s

# Target aliases (optional)
aliases:
  dns: 8.8.8.8
  cf: 1.1.1.1
`
}
