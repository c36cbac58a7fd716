package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultProfile is the name of the default profile
	DefaultProfile = "default"

	// ProfilesDirName is the directory containing all profiles
	ProfilesDirName = "profiles"

	// StateDBName is the SQLite file inside each profile directory
	StateDBName = "state.db"

	// LegacyJSONName is the pre-SQLite sessions file, imported on first open
	LegacyJSONName = "sessions.json"

	// HomeEnvVar overrides the base directory
	HomeEnvVar = "AOE_HOME"

	// ProfileEnvVar selects the profile when no flag is given
	ProfileEnvVar = "AOE_PROFILE"
)

// GetBaseDir returns the base directory (~/.agent-of-empires, or $AOE_HOME).
func GetBaseDir() (string, error) {
	if dir := os.Getenv(HomeEnvVar); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agent-of-empires"), nil
}

// GetProfilesDir returns the path to the profiles directory
func GetProfilesDir() (string, error) {
	dir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProfilesDirName), nil
}

// SanitizeProfileName strips any directory components from a profile name.
func SanitizeProfileName(profile string) (string, error) {
	if profile == "" {
		return DefaultProfile, nil
	}
	name := filepath.Base(strings.TrimSpace(profile))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid profile name: %q", profile)
	}
	return name, nil
}

// GetProfileDir returns the path to a specific profile's directory
func GetProfileDir(profile string) (string, error) {
	name, err := SanitizeProfileName(profile)
	if err != nil {
		return "", err
	}
	profilesDir, err := GetProfilesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(profilesDir, name), nil
}

// ListProfiles returns every profile that has a state.db or a legacy sessions.json.
func ListProfiles() ([]string, error) {
	profilesDir, err := GetProfilesDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(profilesDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	profiles := []string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if profileHasData(filepath.Join(profilesDir, entry.Name())) {
			profiles = append(profiles, entry.Name())
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

// ProfileExists checks if a profile exists
func ProfileExists(profile string) (bool, error) {
	dir, err := GetProfileDir(profile)
	if err != nil {
		return false, err
	}
	return profileHasData(dir), nil
}

func profileHasData(dir string) bool {
	for _, name := range []string{StateDBName, LegacyJSONName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// GetEffectiveProfile returns the profile to use, considering:
// 1. Explicitly provided profile (from -p flag)
// 2. Environment variable AOE_PROFILE
// 3. default_profile in config.toml
// 4. Fallback to "default"
func GetEffectiveProfile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if envProfile := os.Getenv(ProfileEnvVar); envProfile != "" {
		return envProfile
	}
	if cfg, err := LoadUserConfig(); err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultProfile
}
