package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/agentofempires/agent-of-empires/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// UserConfigFileName is the TOML config file inside the base directory
const UserConfigFileName = "config.toml"

// UserConfig is the contents of config.toml.
type UserConfig struct {
	// DefaultProfile is used when neither -p nor AOE_PROFILE is set
	DefaultProfile string `toml:"default_profile"`

	// Theme is "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Logs configures the rotated debug log
	Logs LogSettings `toml:"logs"`

	// MCPs defines available MCP servers, keyed by name
	MCPs map[string]MCPDef `toml:"mcps"`
}

// LogSettings configures debug logging.
type LogSettings struct {
	// DebugLevel sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	DebugLevel string `toml:"debug_level"`

	// DebugFormat sets the log format: "json" (default) or "text"
	DebugFormat string `toml:"debug_format"`

	// DebugMaxMB is the max size in MB for debug.log before rotation
	// Default: 10
	DebugMaxMB int `toml:"debug_max_mb"`

	// DebugBackups is the number of rotated debug.log files to keep
	// Default: 5
	DebugBackups int `toml:"debug_backups"`

	// DebugRetentionDays is the number of days to keep rotated debug logs
	// Default: 10
	DebugRetentionDays int `toml:"debug_retention_days"`
}

// MCPDef defines an MCP server an agent tool can be attached to.
type MCPDef struct {
	// Command is the executable to run (e.g., "npx", "docker", "node")
	Command string `toml:"command"`

	// Args are command-line arguments
	Args []string `toml:"args"`

	// Env is optional environment variables
	Env map[string]string `toml:"env"`

	// Description is optional help text
	Description string `toml:"description"`

	// URL is the endpoint for HTTP/SSE MCPs
	URL string `toml:"url"`

	// Transport is "stdio" (default), "http", or "sse"
	Transport string `toml:"transport"`
}

// GetTransport returns the transport type, defaulting to "stdio"
func (m *MCPDef) GetTransport() string {
	if m.Transport == "" {
		return "stdio"
	}
	return m.Transport
}

var defaultUserConfig = UserConfig{
	MCPs: make(map[string]MCPDef),
}

// Cache for user config (loaded once per process)
var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	dir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

// LoadUserConfig loads config.toml, returning the cached copy after the first call.
// A missing file yields the defaults. A parse error is returned alongside the
// defaults so callers can warn and continue.
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if userConfigCache != nil {
		defer userConfigCacheMu.RUnlock()
		return userConfigCache, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()

	if userConfigCache != nil {
		return userConfigCache, nil
	}

	configPath, err := GetUserConfigPath()
	if err != nil {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	var config UserConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		// Cache defaults so a broken file is reported once, not on every call
		userConfigCache = &defaultUserConfig
		configLog.Warn("config_parse_failed", slog.String("path", configPath), slog.String("error", err.Error()))
		return userConfigCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	if config.MCPs == nil {
		config.MCPs = make(map[string]MCPDef)
	}

	userConfigCache = &config
	return userConfigCache, nil
}

// ReloadUserConfig forces a reload of the user config
func ReloadUserConfig() (*UserConfig, error) {
	ClearUserConfigCache()
	return LoadUserConfig()
}

// ClearUserConfigCache clears the cached user config.
// The next LoadUserConfig call reads from disk.
func ClearUserConfigCache() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// GetTheme returns the configured theme, defaulting to "dark"
func GetTheme() string {
	config, err := LoadUserConfig()
	if err != nil || config == nil {
		return "dark"
	}
	switch config.Theme {
	case "dark", "light", "system":
		return config.Theme
	default:
		return "dark"
	}
}

// ResolveTheme resolves the configured theme to "dark" or "light".
// "system" asks the OS and falls back to "dark" when detection fails.
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// GetLogSettings returns log settings with defaults applied
func GetLogSettings() LogSettings {
	settings := LogSettings{}
	if config, err := LoadUserConfig(); err == nil && config != nil {
		settings = config.Logs
	}

	if settings.DebugLevel == "" {
		settings.DebugLevel = "info"
	}
	if settings.DebugFormat == "" {
		settings.DebugFormat = "json"
	}
	if settings.DebugMaxMB <= 0 {
		settings.DebugMaxMB = 10
	}
	if settings.DebugBackups <= 0 {
		settings.DebugBackups = 5
	}
	if settings.DebugRetentionDays <= 0 {
		settings.DebugRetentionDays = 10
	}
	return settings
}
