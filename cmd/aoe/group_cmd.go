package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentofempires/agent-of-empires/internal/session"
	"github.com/agentofempires/agent-of-empires/internal/ui"
)

const maxSuggestions = 3

// groupJSON is one entry of `group list` structured output.
type groupJSON struct {
	Name          string   `json:"name" yaml:"name"`
	Path          string   `json:"path" yaml:"path"`
	Collapsed     bool     `json:"collapsed" yaml:"collapsed"`
	SessionCount  int      `json:"session_count" yaml:"session_count"`
	TotalSessions int      `json:"total_sessions" yaml:"total_sessions"`
	Children      []string `json:"children,omitempty" yaml:"children,omitempty"`
}

func newGroupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "group",
		Aliases: []string{"groups"},
		Short:   "Manage groups",
		Example: `  aoe group list
  aoe group create mobile
  aoe group create ios --parent mobile
  aoe group delete work --force
  aoe group move my-project work/frontend
  aoe group move my-project ""            # ungroup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGroupList(cmd, opts, formatText)
		},
	}
	cmd.AddCommand(
		newGroupListCmd(opts),
		newGroupCreateCmd(opts),
		newGroupDeleteCmd(opts),
		newGroupMoveCmd(opts),
		newGroupToggleCmd(opts),
	)
	return cmd
}

func newGroupListCmd(opts *rootOptions) *cobra.Command {
	var jsonOut, yamlOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all groups with session counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			return runGroupList(cmd, opts, format)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}

func runGroupList(cmd *cobra.Command, opts *rootOptions, format string) error {
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

	all := tree.GetAllGroups()
	rows := make([]groupJSON, 0, len(all))
	for _, g := range all {
		row := groupJSON{
			Name:          g.Name,
			Path:          g.Path,
			Collapsed:     g.Collapsed,
			SessionCount:  session.CountDirectSessions(g.Path, instances),
			TotalSessions: session.CountSessionsInGroup(g.Path, instances),
		}
		for _, child := range g.Children {
			row.Children = append(row.Children, child.Name)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		out.Print("No groups found.\nCreate one with: aoe group create <name>\n",
			map[string]any{"groups": rows})
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Groups (%d):\n", len(rows))
	for _, row := range rows {
		indent := strings.Repeat("  ", session.GetGroupLevel(row.Path))
		marker := "▾"
		if row.Collapsed {
			marker = "▸"
		}
		fmt.Fprintf(&b, "  %s%s %s  %s\n", indent, marker, row.Name,
			ui.DimStyle.Render(fmt.Sprintf("%d direct, %d total", row.SessionCount, row.TotalSessions)))
	}
	out.Print(b.String(), map[string]any{"groups": rows})
	return nil
}

func newGroupCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		parent  string
		jsonOut bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:     "create <name>",
		Aliases: []string{"new"},
		Short:   "Create a new group",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := outputFormat(jsonOut, false)
			out := NewCLIOutput(cmd, format, quiet)

			path, err := session.ValidateGroupPath(session.JoinGroupPath(strings.Trim(parent, session.GroupSeparator), args[0]))
			if err != nil {
				return out.Fail(err, nil)
			}

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			err = session.Transact(storage, func(_ []*session.Instance, tree *session.GroupTree) (bool, error) {
				return true, session.CreateGroupChecked(tree, path)
			})
			if err != nil {
				return out.Fail(err, nil)
			}

			out.Success(fmt.Sprintf("Created group %s", path), map[string]any{
				"success": true,
				"path":    path,
				"name":    session.GroupName(path),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent group path")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	return cmd
}

func newGroupDeleteCmd(opts *rootOptions) *cobra.Command {
	var (
		force   bool
		jsonOut bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:     "delete <path>",
		Aliases: []string{"rm"},
		Short:   "Delete a group and its subgroups",
		Long: `Delete a group and every group below it.

A group that still holds sessions (directly or in a subgroup) is only
deleted with --force, which moves those sessions to the root first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := outputFormat(jsonOut, false)
			out := NewCLIOutput(cmd, format, quiet)

			path, err := session.ValidateGroupPath(args[0])
			if err != nil {
				return out.Fail(err, nil)
			}

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			var (
				ungrouped int
				hints     []string
			)
			err = session.Transact(storage, func(instances []*session.Instance, tree *session.GroupTree) (bool, error) {
				n, err := session.DeleteGroupChecked(tree, instances, path, force)
				if errors.Is(err, session.ErrNotFound) {
					hints = session.SuggestGroups(path, tree, maxSuggestions)
				}
				ungrouped = n
				return err == nil, err
			})
			if err != nil {
				return out.Fail(err, hints)
			}

			msg := fmt.Sprintf("Deleted group %s", path)
			if ungrouped > 0 {
				msg += fmt.Sprintf(" (%s moved to root)", pluralize(ungrouped, "session"))
			}
			out.Success(msg, map[string]any{
				"success":   true,
				"path":      path,
				"ungrouped": ungrouped,
			})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Ungroup member sessions and delete anyway")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	return cmd
}

func newGroupMoveCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOut bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:     "move <session> <group>",
		Aliases: []string{"mv"},
		Short:   "Move a session to a group (\"\" ungroups it)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := outputFormat(jsonOut, false)
			out := NewCLIOutput(cmd, format, quiet)

			identifier := strings.TrimSpace(args[0])
			if identifier == "" {
				return out.Fail(errors.New("session identifier is required"), nil)
			}

			target := ""
			if strings.TrimSpace(args[1]) != "" {
				p, err := session.ValidateGroupPath(args[1])
				if err != nil {
					return out.Fail(err, nil)
				}
				target = p
			}

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			var (
				moved *session.Instance
				from  string
				hints []string
			)
			err = session.Transact(storage, func(instances []*session.Instance, tree *session.GroupTree) (bool, error) {
				inst, err := session.ResolveSession(identifier, instances)
				if err != nil {
					hints = session.SuggestSessions(identifier, instances, maxSuggestions)
					return false, err
				}
				moved, from = inst, inst.GroupPath
				session.MoveSession(tree, inst, target)
				return true, nil
			})
			if err != nil {
				return out.Fail(err, hints)
			}

			cliLog.Info("cli_session_moved", slog.String("session_id", moved.ID), slog.String("to", target))

			dest := target
			if dest == "" {
				dest = "root"
			}
			out.Success(fmt.Sprintf("Moved %s to %s", moved.Title, dest), map[string]any{
				"success": true,
				"id":      moved.ID,
				"title":   moved.Title,
				"from":    from,
				"to":      target,
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	return cmd
}

func newGroupToggleCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "toggle <path>",
		Short: "Collapse or expand a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := outputFormat(jsonOut, false)
			out := NewCLIOutput(cmd, format, false)

			path, err := session.ValidateGroupPath(args[0])
			if err != nil {
				return out.Fail(err, nil)
			}

			storage, err := opts.openStorage()
			if err != nil {
				return out.Fail(err, nil)
			}
			defer storage.Close()

			var (
				collapsed bool
				hints     []string
			)
			err = session.Transact(storage, func(_ []*session.Instance, tree *session.GroupTree) (bool, error) {
				if !tree.GroupExists(path) {
					hints = session.SuggestGroups(path, tree, maxSuggestions)
					return false, fmt.Errorf("group %q: %w", path, session.ErrNotFound)
				}
				tree.ToggleCollapsed(path)
				g, _ := tree.GetGroup(path)
				collapsed = g.Collapsed
				return true, nil
			})
			if err != nil {
				return out.Fail(err, hints)
			}

			state := "expanded"
			if collapsed {
				state = "collapsed"
			}
			out.Success(fmt.Sprintf("Group %s %s", path, state), map[string]any{
				"success":   true,
				"path":      path,
				"collapsed": collapsed,
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
