package ui

import (
	"os"
	"testing"

	"github.com/muesli/termenv"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

// TestMain forces the _test profile and a throwaway base dir so UI tests
// can never write to real user data.
func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "aoe-ui-test-*")
	if err != nil {
		panic(err)
	}
	os.Setenv(session.HomeEnvVar, home)
	os.Setenv(session.ProfileEnvVar, "_test")

	// Plain output keeps View assertions free of escape codes
	SetColorProfile(termenv.Ascii)

	code := m.Run()

	os.RemoveAll(home)
	os.Exit(code)
}
