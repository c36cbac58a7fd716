package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentofempires/agent-of-empires/internal/logging"
	"github.com/agentofempires/agent-of-empires/internal/profile"
	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

const Version = "0.4.0"

var cliLog = logging.ForComponent(logging.CompCLI)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	profile string
	debug   bool
}

func main() {
	initColorProfile()

	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "aoe",
		Short: "Organize agent sessions into groups",
		Long: `Agent of Empires keeps your agent sessions in a hierarchy of groups.

Run without arguments to open the interactive view, or use a subcommand
to script group and session management.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.initLogging()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "",
		"Profile to use (default: $"+session.ProfileEnvVar+", then default_profile in config.toml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Write debug logs to debug.log")

	root.AddCommand(
		newGroupCmd(opts),
		newListCmd(opts),
		newSessionCmd(opts),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveProfile applies flag → env → config → default.
func (o *rootOptions) resolveProfile() string {
	name, source := profile.Detect(o.profile)
	cliLog.Debug("profile_resolved", slog.String("profile", name), slog.String("source", string(source)))
	return name
}

// openStorage opens the state database for the active profile.
func (o *rootOptions) openStorage() (*session.Storage, error) {
	storage, err := session.NewStorageWithProfile(o.resolveProfile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}

func (o *rootOptions) initLogging() {
	baseDir, err := session.GetBaseDir()
	if err != nil {
		return
	}
	settings := session.GetLogSettings()
	level := settings.DebugLevel
	if o.debug {
		level = "debug"
	}
	logging.Init(logging.Config{
		LogDir:     baseDir,
		Level:      level,
		Format:     settings.DebugFormat,
		MaxSizeMB:  settings.DebugMaxMB,
		MaxBackups: settings.DebugBackups,
		MaxAgeDays: settings.DebugRetentionDays,
		Compress:   true,
		Debug:      o.debug,
	})
}

// initColorProfile disables colors when stdout is not a terminal or
// NO_COLOR is set. AOE_COLOR forces a profile.
func initColorProfile() {
	switch strings.ToLower(os.Getenv("AOE_COLOR")) {
	case "truecolor", "24bit":
		ui.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		ui.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi":
		ui.SetColorProfile(termenv.ANSI)
		return
	case "none", "ascii":
		ui.SetColorProfile(termenv.Ascii)
		return
	}

	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.SetColorProfile(termenv.Ascii)
		return
	}
	ui.SetColorProfile(termenv.EnvColorProfile())
}

func runTUI(opts *rootOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the interactive view needs a terminal; try 'aoe list' or 'aoe --help'")
	}

	ui.InitTheme(session.ResolveTheme())

	storage, err := opts.openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	watcher := ui.NewStorageWatcher(storage.GetDB(), storage.Path())
	if watcher != nil {
		watcher.Start()
		defer watcher.Close()
	}

	cliLog.Info("tui_started", slog.String("profile", storage.Profile()))

	home := ui.NewHome(storage, storage.Profile(), watcher)
	p := tea.NewProgram(home, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running interactive view: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Agent of Empires v%s\n", Version)
		},
	}
}
