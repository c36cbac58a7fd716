package ui

import (
	"testing"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

func TestStatusTableIsExhaustive(t *testing.T) {
	seen := make(map[string]bool)
	for _, st := range session.AllStatuses {
		p, ok := statusTable[st]
		if !ok {
			t.Fatalf("status %q has no presentation", st)
		}
		if p.Symbol == "" || p.Label == "" {
			t.Errorf("status %q has an empty symbol or label", st)
		}
		if seen[p.Symbol] {
			t.Errorf("symbol %q used twice", p.Symbol)
		}
		seen[p.Symbol] = true
	}
	if len(statusTable) != len(session.AllStatuses) {
		t.Errorf("statusTable has %d entries, want %d", len(statusTable), len(session.AllStatuses))
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := map[session.Status]string{
		session.StatusRunning:  "●",
		session.StatusWaiting:  "◐",
		session.StatusIdle:     "○",
		session.StatusStarting: "⟳",
		session.StatusError:    "✕",
		session.Status("bogus"): "?",
	}
	for st, want := range tests {
		if got := StatusSymbol(st); got != want {
			t.Errorf("StatusSymbol(%q) = %q, want %q", st, got, want)
		}
	}
}

func TestStatusIndicatorContainsSymbol(t *testing.T) {
	for _, st := range session.AllStatuses {
		if got := StatusIndicator(st); got == "" {
			t.Errorf("StatusIndicator(%q) is empty", st)
		}
	}
	if got := StatusLabel(session.StatusWaiting); got != "waiting" {
		t.Errorf("StatusLabel = %q", got)
	}
}

func TestInitTheme(t *testing.T) {
	defer InitTheme("dark")

	InitTheme("light")
	if GetCurrentTheme() != ThemeLight {
		t.Errorf("theme = %q, want light", GetCurrentTheme())
	}
	if colors.Bg != lightPalette.Bg {
		t.Error("light palette not applied")
	}

	InitTheme("nonsense")
	if GetCurrentTheme() != ThemeDark {
		t.Errorf("unknown theme should fall back to dark, got %q", GetCurrentTheme())
	}
}

func TestMenuKey(t *testing.T) {
	got := MenuKey("g", "new group")
	if got == "" {
		t.Fatal("MenuKey returned empty string")
	}
}
