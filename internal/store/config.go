package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DBPath is the sqlite file backing the local booklet store.
	DBPath string `yaml:"db_path,omitempty"`

	// RemoteURL points the CLI/TUI at a `booklet serve` instance instead of the local db.
	RemoteURL string `yaml:"remote_url,omitempty"`

	// BulkReplace toggles the atomic replace endpoint. Disabling it forces clients onto the
	// item-by-item path.
	BulkReplace *bool `yaml:"bulk_replace,omitempty"`

	DisplaceOffset int      `yaml:"displace_offset,omitempty"`
	PageSize       int      `yaml:"page_size,omitempty"`
	HTTPTimeout    Duration `yaml:"http_timeout,omitempty"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Duration reads "15s"-style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(strings.TrimSpace(n.Value))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

const (
	defaultPageSize    = 10
	defaultHTTPTimeout = 15 * time.Second
)

func (c *Config) BulkReplaceEnabled() bool {
	return c.BulkReplace == nil || *c.BulkReplace
}

func (c *Config) EffectivePageSize() int {
	if c.PageSize <= 0 {
		return defaultPageSize
	}
	return c.PageSize
}

func (c *Config) EffectiveHTTPTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(c.HTTPTimeout)
}

// EffectiveDBPath resolves DBPath, BOOKLET_DB and the default location, in that order of
// precedence after an explicit override.
func (c *Config) EffectiveDBPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv("BOOKLET_DB")); v != "" {
		return expandHome(v)
	}
	if strings.TrimSpace(c.DBPath) != "" {
		return expandHome(c.DBPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "booklets.sqlite"), nil
}

func (c *Config) EffectiveRemoteURL() string {
	if v := strings.TrimSpace(os.Getenv("BOOKLET_REMOTE")); v != "" {
		return v
	}
	return strings.TrimSpace(c.RemoteURL)
}

func (c *Config) EffectiveLogLevel() string {
	if v := strings.TrimSpace(os.Getenv("BOOKLET_LOG_LEVEL")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Log.Level)
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.booklet).
	if v := strings.TrimSpace(os.Getenv("BOOKLET_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".booklet"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfig reads config.yaml. A missing file is an empty config.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}
