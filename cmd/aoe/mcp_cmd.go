package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

type mcpJSON struct {
	Name        string   `json:"name" yaml:"name"`
	Transport   string   `json:"transport" yaml:"transport"`
	Command     string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect the MCP server catalog",
	}
	cmd.AddCommand(newMCPListCmd())
	return cmd
}

func newMCPListCmd() *cobra.Command {
	var jsonOut, yamlOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List MCP servers defined in config.toml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			out := NewCLIOutput(cmd, format, false)

			mcps := session.GetAvailableMCPs()
			rows := make([]mcpJSON, 0, len(mcps))
			for _, m := range mcps {
				rows = append(rows, mcpJSON{
					Name:        m.Name,
					Transport:   m.Def.GetTransport(),
					Command:     m.Def.Command,
					Args:        m.Def.Args,
					URL:         m.Def.URL,
					Description: m.Def.Description,
				})
			}

			if len(rows) == 0 {
				path, _ := session.GetUserConfigPath()
				out.Print(fmt.Sprintf("No MCPs configured.\nAdd [mcps.<name>] sections to %s\n", path),
					map[string]any{"mcps": rows})
				return nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Available MCPs (%d):\n", len(rows))
			for _, r := range rows {
				target := r.Command
				if r.URL != "" {
					target = r.URL
				}
				fmt.Fprintf(&b, "  %s %s %s %s\n", bulletSymbol,
					truncate(r.Name, 16), truncate(r.Transport, 6), ui.DimStyle.Render(target))
				if r.Description != "" {
					fmt.Fprintf(&b, "      %s\n", r.Description)
				}
			}
			out.Print(b.String(), map[string]any{"mcps": rows})
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}
