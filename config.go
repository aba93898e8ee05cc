package trayitem

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds item configuration.
type Config struct {
	// DisableMenuExport turns off com.canonical.dbusmenu. The item advertises
	// the /NO_DBUSMENU menu path, which tells hosts to request the menu through
	// ContextMenu instead.
	DisableMenuExport bool `yaml:"disable_menu_export"`

	// ModernSession marks desktop sessions that always provide a
	// StatusNotifierWatcher. No fallback surface is created in such sessions,
	// which prevents switching back and forth when the watcher is temporarily
	// missing.
	ModernSession bool `yaml:"modern_session"`

	// ProbeTimeout bounds the protocol version request to the watcher.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// IconThemePath is an additional directory hosts search for icon names.
	IconThemePath string `yaml:"icon_theme_path"`

	// DesktopEntry is the desktop file name of the application without the
	// .desktop suffix. It is sent as a hint with notifications.
	DesktopEntry string `yaml:"desktop_entry"`
}

// Environment variables read by [ConfigFromEnv].
const (
	EnvNoDBusMenu = "SNI_NO_DBUSMENU"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ProbeTimeout: 25 * time.Second,
	}
}

// ConfigFromEnv returns the default configuration adjusted by the process
// environment.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.DisableMenuExport = os.Getenv(EnvNoDBusMenu) != ""
	cfg.ModernSession = isModernSession(os.Getenv)
	cfg.DesktopEntry = strings.TrimSuffix(os.Getenv("DESKTOP_ENTRY"), ".desktop")
	return cfg
}

// isModernSession reports whether the environment describes a Plasma
// session, where the watcher is part of the shell.
func isModernSession(getenv func(string) string) bool {
	return getenv("KDE_FULL_SESSION") != "" ||
		getenv("XDG_CURRENT_DESKTOP") == "KDE" ||
		strings.ToLower(getenv("QT_QPA_PLATFORMTHEME")) == "kde"
}

// LoadConfig reads configuration from a YAML file. Environment variables in
// the file are expanded. Fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("probe_timeout must not be negative")
	}
	if strings.HasSuffix(c.DesktopEntry, ".desktop") {
		return fmt.Errorf("desktop_entry must not include the .desktop suffix")
	}
	return nil
}
