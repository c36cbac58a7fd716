package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

// sessionJSON is the structured form of `session show`.
type sessionJSON struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Group       string    `json:"group" yaml:"group"`
	ProjectPath string    `json:"project_path" yaml:"project_path"`
	Tool        string    `json:"tool" yaml:"tool"`
	Command     string    `json:"command,omitempty" yaml:"command,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect sessions",
	}
	cmd.AddCommand(newSessionShowCmd(opts))
	return cmd
}

func newSessionShowCmd(opts *rootOptions) *cobra.Command {
	var jsonOut, yamlOut bool
	cmd := &cobra.Command{
		Use:   "show <id|title>",
		Short: "Show session details",
		Long: `Show one session. The identifier may be the full ID, an ID prefix, or
the exact title; the first session in list order that matches wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			out := NewCLIOutput(cmd, format, false)

			identifier := strings.TrimSpace(args[0])
			if identifier == "" {
				return out.Fail(errors.New("session identifier is required"), nil)
			}

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			instances, _, err := storage.LoadWithGroups()
			if err != nil {
				return out.Fail(fmt.Errorf("failed to load sessions: %w", err), nil)
			}

			inst, err := session.ResolveSession(identifier, instances)
			if err != nil {
				return out.Fail(err, session.SuggestSessions(identifier, instances, maxSuggestions))
			}

			data := sessionJSON{
				ID:          inst.ID,
				Title:       inst.Title,
				Group:       inst.GroupPath,
				ProjectPath: inst.ProjectPath,
				Tool:        inst.Tool,
				Command:     inst.Command,
				Status:      string(inst.Status),
				CreatedAt:   inst.CreatedAt,
			}
			out.Print(renderSession(data), data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}

func renderSession(s sessionJSON) string {
	group := s.Group
	if group == "" {
		group = "(root)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.StatusIndicator(session.Status(s.Status)), ui.TitleStyle.Render(s.Title))
	fmt.Fprintf(&b, "  %s ID:      %s\n", bulletSymbol, s.ID)
	fmt.Fprintf(&b, "  %s Status:  %s\n", bulletSymbol, ui.StatusLabel(session.Status(s.Status)))
	fmt.Fprintf(&b, "  %s Group:   %s\n", bulletSymbol, group)
	fmt.Fprintf(&b, "  %s Path:    %s\n", bulletSymbol, s.ProjectPath)
	fmt.Fprintf(&b, "  %s Tool:    %s\n", bulletSymbol, s.Tool)
	if s.Command != "" {
		fmt.Fprintf(&b, "  %s Command: %s\n", bulletSymbol, s.Command)
	}
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "  %s Created: %s\n", bulletSymbol, s.CreatedAt.Local().Format(time.DateTime))
	}
	return b.String()
}
