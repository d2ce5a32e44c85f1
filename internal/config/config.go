// Package config parses relay.toml: execution defaults, ambient settings
// and the named connection profiles credentials are built from.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/logging"
)

// FileName is the configuration file Load looks for.
const FileName = "relay.toml"

// ErrNotFound is returned by Load when no relay.toml exists in the working
// directory or any of its parents.
var ErrNotFound = errors.New("config: " + FileName + " not found")

// Config is the top-level relay.toml configuration.
type Config struct {
	DefaultProfile string              `toml:"default_profile"`
	Defaults       DefaultsConfig      `toml:"defaults"`
	Log            LogConfig           `toml:"log"`
	Metrics        MetricsConfig       `toml:"metrics"`
	Notifications  NotificationsConfig `toml:"notifications"`
	Results        ResultsConfig       `toml:"results"`
	Profiles       map[string]Profile  `toml:"profiles"`
}

// DefaultsConfig fills execution parameters a command line leaves unset.
type DefaultsConfig struct {
	OutputFormat   string `toml:"output_format"`
	Model          string `toml:"model"`
	PermissionMode string `toml:"permission_mode"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTurns       int    `toml:"max_turns"` // 0 = CLI default
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// MetricsConfig controls the Prometheus endpoint served during batch runs.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty = disabled
}

// NotificationsConfig controls the per-result webhook.
type NotificationsConfig struct {
	URL       string `toml:"url"`
	OnSuccess bool   `toml:"on_success"`
	OnFailure bool   `toml:"on_failure"`
}

// ResultsConfig controls the JSONL result log written by batch runs.
type ResultsConfig struct {
	Path string `toml:"path"`
}

// Defaults returns a Config with a single local profile.
func Defaults() Config {
	return Config{
		DefaultProfile: "local",
		Defaults: DefaultsConfig{
			OutputFormat:   string(claude.FormatJSON),
			TimeoutSeconds: int(claude.DefaultTimeout / time.Second),
		},
		Log: LogConfig{Level: "info"},
		Notifications: NotificationsConfig{
			OnSuccess: false,
			OnFailure: true,
		},
		Results: ResultsConfig{Path: filepath.Join(".relay", "results.jsonl")},
		Profiles: map[string]Profile{
			"local": {Mode: "local"},
		},
	}
}

// Validate checks the configuration for issues that would otherwise
// surface as confusing execution failures. It returns all found issues
// joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			errs = append(errs, fmt.Errorf("default_profile %q is not defined under [profiles]", c.DefaultProfile))
		}
	}

	if f := c.Defaults.OutputFormat; f != "" && !claude.OutputFormat(f).Valid() {
		errs = append(errs, fmt.Errorf("defaults.output_format must be text, json or stream-json"))
	}
	if m := c.Defaults.PermissionMode; m != "" && !claude.PermissionMode(m).Valid() {
		errs = append(errs, fmt.Errorf("defaults.permission_mode %q is not a known permission mode", m))
	}
	if c.Defaults.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("defaults.timeout_seconds must be >= 0 (0 = %d)", int(claude.DefaultTimeout/time.Second)))
	}
	if c.Defaults.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("defaults.max_turns must be >= 0 (0 = CLI default)"))
	}

	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			errs = append(errs, fmt.Errorf("log.level %q is not a valid level", c.Log.Level))
		}
	}

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr must be host:port"))
		}
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		for _, err := range p.validate() {
			errs = append(errs, fmt.Errorf("profiles.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ProfileNames returns the defined profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile, or the default profile when name is
// empty.
func (c *Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return Profile{}, errors.New("config: no profile selected and no default_profile set")
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("config: unknown profile %q (defined: %s)", name, joinKeys(c.ProfileNames()))
	}
	return p, nil
}

// ApplyDefaults fills the fields of p that the caller left empty.
func (c *Config) ApplyDefaults(p *claude.Params) {
	if p.OutputFormat == "" {
		p.OutputFormat = claude.OutputFormat(c.Defaults.OutputFormat)
	}
	if p.Model == "" {
		p.Model = c.Defaults.Model
	}
	if p.PermissionMode == "" {
		p.PermissionMode = claude.PermissionMode(c.Defaults.PermissionMode)
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = c.Defaults.TimeoutSeconds
	}
	if p.MaxTurns == 0 {
		p.MaxTurns = c.Defaults.MaxTurns
	}
}

// Load reads relay.toml from the given path. If path is empty, it walks up
// from the current working directory looking for relay.toml and returns an
// error wrapping ErrNotFound when there is none. Unknown keys (likely
// typos) are an error. ${VAR} references in profile secrets are expanded
// from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	for name, p := range cfg.Profiles {
		cfg.Profiles[name] = p.expand()
	}
	return &cfg, nil
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// findConfig walks up from the current directory looking for relay.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (searched up from %s)", ErrNotFound, dir)
		}
		dir = parent
	}
}

var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandRefs replaces ${VAR} with the value of VAR. A bare $ is left alone
// so secrets containing dollar signs survive.
func expandRefs(s string) string {
	return envRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}
