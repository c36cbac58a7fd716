package main

import (
	"os"
	"testing"

	"github.com/muesli/termenv"

	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

func TestMain(m *testing.M) {
	// Never let CLI tests touch the real ~/.agent-of-empires
	home, err := os.MkdirTemp("", "aoe-cli-test-*")
	if err != nil {
		panic(err)
	}
	os.Setenv(session.HomeEnvVar, home)
	os.Setenv(session.ProfileEnvVar, "_test")
	ui.SetColorProfile(termenv.Ascii)

	code := m.Run()

	os.RemoveAll(home)
	os.Exit(code)
}
