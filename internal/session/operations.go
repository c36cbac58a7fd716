package session

import (
	"fmt"
	"log/slog"
	"strings"
)

// Store loads and saves sessions and groups as one unit.
type Store interface {
	LoadWithGroups() ([]*Instance, []*Group, error)
	SaveWithGroups(instances []*Instance, tree *GroupTree) error
}

// MutateFunc performs at most one logical change. It reports whether
// anything changed; a non-nil error means nothing may be saved.
type MutateFunc func(instances []*Instance, tree *GroupTree) (mutated bool, err error)

// Transact loads state from store, builds the tree, runs fn, and saves
// only when fn mutated something and returned no error.
func Transact(store Store, fn MutateFunc) error {
	instances, groups, err := store.LoadWithGroups()
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	tree := NewGroupTreeWithGroups(instances, groups)
	mutated, err := fn(instances, tree)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}

	if err := store.SaveWithGroups(instances, tree); err != nil {
		return fmt.Errorf("failed to save sessions: %w", err)
	}
	return nil
}

// ValidateGroupPath normalizes a user supplied group path.
// Surrounding whitespace and slashes are trimmed; empty paths and empty
// segments ("a//b") are rejected.
func ValidateGroupPath(path string) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(path), GroupSeparator)
	if cleaned == "" {
		return "", fmt.Errorf("group path %q is empty: %w", path, ErrInvalidPath)
	}
	for _, seg := range strings.Split(cleaned, GroupSeparator) {
		if strings.TrimSpace(seg) == "" {
			return "", fmt.Errorf("group path %q has an empty segment: %w", path, ErrInvalidPath)
		}
	}
	return cleaned, nil
}

// JoinGroupPath joins a parent path and a child name.
func JoinGroupPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + GroupSeparator + name
}

// MoveSession reassigns inst to target, creating the target group and its
// ancestors when target is non-empty. An empty target ungroups the session.
func MoveSession(tree *GroupTree, inst *Instance, target string) {
	from := inst.GroupPath
	inst.GroupPath = target
	if target != "" {
		tree.CreateGroup(target)
	}
	groupLog.Info("session_moved",
		slog.String("session_id", inst.ID),
		slog.String("from", from),
		slog.String("to", target))
}

// CreateGroupChecked creates path, failing with ErrAlreadyExists when it is
// already present. Nothing is mutated on failure.
func CreateGroupChecked(tree *GroupTree, path string) error {
	if tree.GroupExists(path) {
		return fmt.Errorf("group %q: %w", path, ErrAlreadyExists)
	}
	tree.CreateGroup(path)
	groupLog.Info("group_created", slog.String("path", path))
	return nil
}

// DeleteGroupChecked deletes path and its descendant groups.
//
// When sessions live anywhere in the subtree the delete fails with
// ErrPreconditionFailed unless force is set; with force those sessions are
// ungrouped first. Returns the number of sessions ungrouped.
func DeleteGroupChecked(tree *GroupTree, instances []*Instance, path string, force bool) (int, error) {
	if !tree.GroupExists(path) {
		return 0, fmt.Errorf("group %q: %w", path, ErrNotFound)
	}

	count := CountSessionsInGroup(path, instances)
	if count > 0 && !force {
		return 0, fmt.Errorf("group %q contains %d session(s), use --force to ungroup them: %w",
			path, count, ErrPreconditionFailed)
	}

	if count > 0 {
		for _, inst := range instances {
			if inst.InGroupSubtree(path) {
				inst.GroupPath = ""
			}
		}
	}

	tree.DeleteGroup(path)
	groupLog.Info("group_deleted", slog.String("path", path), slog.Int("ungrouped", count))
	return count, nil
}
