package profile

import (
	"os"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

// Source records where the active profile name came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

// Detect resolves the active profile and reports which setting chose it.
// Priority order:
// 1. explicit (the -p/--profile flag)
// 2. AOE_PROFILE environment variable
// 3. default_profile in config.toml
// 4. Fallback to "default"
func Detect(explicit string) (string, Source) {
	if explicit != "" {
		return explicit, SourceFlag
	}

	if p := os.Getenv(session.ProfileEnvVar); p != "" {
		return p, SourceEnv
	}

	if cfg, err := session.LoadUserConfig(); err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile, SourceConfig
	}

	return session.DefaultProfile, SourceDefault
}

// DetectCurrentProfile returns the profile a command without -p would use.
func DetectCurrentProfile() string {
	name, _ := Detect("")
	return name
}
