package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings, persisted as
// .gitter/config.toml.
type Config struct {
	User UserConfig `toml:"user"`
	Core CoreConfig `toml:"core"`
}

// UserConfig is the identity recorded in commits.
type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// CoreConfig holds engine settings.
type CoreConfig struct {
	// Compression toggles zstd encoding of newly written objects.
	Compression bool `toml:"compression"`
}

func defaultConfig() *Config {
	return &Config{Core: CoreConfig{Compression: true}}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GitterDir, "config.toml")
}

// ReadConfig reads .gitter/config.toml. A missing file yields defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes .gitter/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = defaultConfig()
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.GitterDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}

	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// Identity returns the commit identity "Name <email>" from config, or a
// placeholder when no identity is configured.
func (r *Repo) Identity() string {
	cfg, err := r.ReadConfig()
	if err != nil || strings.TrimSpace(cfg.User.Name) == "" {
		return "unknown <unknown@localhost>"
	}
	if strings.TrimSpace(cfg.User.Email) == "" {
		return cfg.User.Name
	}
	return fmt.Sprintf("%s <%s>", cfg.User.Name, cfg.User.Email)
}
