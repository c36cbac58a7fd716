package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

// rowJSON is one flattened row in `list --json` output.
type rowJSON struct {
	Type         string `json:"type" yaml:"type"`
	Depth        int    `json:"depth" yaml:"depth"`
	Path         string `json:"path,omitempty" yaml:"path,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Collapsed    bool   `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	SessionCount int    `json:"session_count,omitempty" yaml:"session_count,omitempty"`
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Tool         string `json:"tool,omitempty" yaml:"tool,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var jsonOut, yamlOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions grouped as in the interactive view",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			out := NewCLIOutput(cmd, format, false)

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			instances, groups, err := storage.LoadWithGroups()
			if err != nil {
				return out.Fail(fmt.Errorf("failed to load sessions: %w", err), nil)
			}
			tree := session.NewGroupTreeWithGroups(instances, groups)
			rows := buildRows(session.FlattenTree(tree, instances), instances)

			if len(rows) == 0 {
				out.Print(fmt.Sprintf("No sessions found in profile '%s'.\n", storage.Profile()),
					map[string]any{"profile": storage.Profile(), "rows": rows})
				return nil
			}
			out.Print(renderRows(rows, storage.Profile(), len(instances)),
				map[string]any{"profile": storage.Profile(), "rows": rows})
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}

// buildRows joins flattened items with their session records.
func buildRows(items []session.Item, instances []*session.Instance) []rowJSON {
	byID := make(map[string]*session.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}

	rows := make([]rowJSON, 0, len(items))
	for _, it := range items {
		row := rowJSON{Type: it.Type.String(), Depth: it.Depth}
		if it.IsGroup() {
			row.Path = it.Path
			row.Name = it.Name
			row.Collapsed = it.Collapsed
			row.SessionCount = it.SessionCount
		} else {
			row.ID = it.SessionID
			if inst := byID[it.SessionID]; inst != nil {
				row.Title = inst.Title
				row.Tool = inst.Tool
				row.Status = string(inst.Status)
				row.Path = inst.GroupPath
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderRows(rows []rowJSON, profile string, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s  (%s)\n\n", profile, pluralize(total, "session"))
	for _, row := range rows {
		indent := strings.Repeat("  ", row.Depth)
		if row.Type == session.ItemTypeGroup.String() {
			marker := "▾"
			if row.Collapsed {
				marker = "▸"
			}
			fmt.Fprintf(&b, "%s%s %s (%d)\n", indent, marker, ui.GroupNameStyle.Render(row.Name), row.SessionCount)
			continue
		}
		fmt.Fprintf(&b, "%s%s %s %s %s\n", indent,
			ui.StatusIndicator(session.Status(row.Status)),
			truncate(row.Title, tableColTitle),
			truncate(row.Tool, tableColTool),
			ui.DimStyle.Render(shortID(row.ID)))
	}
	return b.String()
}
