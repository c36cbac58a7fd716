package session

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/agentofempires/agent-of-empires/internal/logging"
)

var groupLog = logging.ForComponent(logging.CompGroup)

// GroupSeparator splits a group path into its segments.
const GroupSeparator = "/"

// Group is a node in the session hierarchy, identified by its full path.
type Group struct {
	Name      string // Last path segment
	Path      string // Full path like "work" or "work/frontend"
	Collapsed bool

	// Children is derived on every rebuild and never persisted.
	Children []*Group
}

// GroupTree manages hierarchical session organization.
//
// groups is the only source of truth. roots and index are rebuilt from it
// after every mutation and hold copies, so nothing read from them can drift
// from the map.
type GroupTree struct {
	groups map[string]*Group // path -> group metadata
	roots  []*Group          // derived, sorted by name
	index  map[string]*Group // derived, path -> node in roots
}

// NewGroupTreeWithGroups creates a group tree from persisted groups and instances.
// Persisted groups keep their collapsed flag; any group path referenced by an
// instance, and every ancestor of any path, is created expanded if missing.
func NewGroupTreeWithGroups(instances []*Instance, persisted []*Group) *GroupTree {
	tree := &GroupTree{
		groups: make(map[string]*Group),
	}

	for _, g := range persisted {
		if g == nil || g.Path == "" {
			continue
		}
		name := g.Name
		if name == "" {
			name = GroupName(g.Path)
		}
		tree.groups[g.Path] = &Group{Name: name, Path: g.Path, Collapsed: g.Collapsed}
	}

	// Ancestors of persisted groups may be missing if an older version wrote them.
	for _, g := range persisted {
		if g != nil && g.Path != "" {
			tree.ensureGroupExists(g.Path)
		}
	}

	for _, inst := range instances {
		if inst.GroupPath != "" {
			tree.ensureGroupExists(inst.GroupPath)
		}
	}

	tree.rebuild()
	return tree
}

// ensureGroupExists inserts path and any missing ancestor. Existing entries are left alone.
func (t *GroupTree) ensureGroupExists(path string) {
	parts := strings.Split(path, GroupSeparator)
	current := ""
	for i, part := range parts {
		if i > 0 {
			current += GroupSeparator
		}
		current += part
		if current == "" {
			continue
		}
		if _, exists := t.groups[current]; !exists {
			t.groups[current] = &Group{Name: part, Path: current}
			groupLog.Debug("group_materialized", slog.String("path", current))
		}
	}
}

// rebuild recomputes roots and index from the groups map.
func (t *GroupTree) rebuild() {
	byParent := make(map[string][]*Group, len(t.groups))
	for path, g := range t.groups {
		parent := ParentPath(path)
		byParent[parent] = append(byParent[parent], g)
	}

	t.index = make(map[string]*Group, len(t.groups))
	t.roots = t.buildLevel(byParent, "")
}

func (t *GroupTree) buildLevel(byParent map[string][]*Group, parent string) []*Group {
	entries := byParent[parent]
	if len(entries) == 0 {
		return nil
	}

	nodes := make([]*Group, 0, len(entries))
	for _, g := range entries {
		node := &Group{Name: g.Name, Path: g.Path, Collapsed: g.Collapsed}
		t.index[node.Path] = node
		nodes = append(nodes, node)
	}
	sortGroupsByName(nodes)

	for _, node := range nodes {
		node.Children = t.buildLevel(byParent, node.Path)
	}
	return nodes
}

func sortGroupsByName(groups []*Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].Path < groups[j].Path
	})
}

// CreateGroup ensures path and all of its ancestors exist.
// It is idempotent; reporting "already exists" is up to the caller.
func (t *GroupTree) CreateGroup(path string) {
	if path == "" {
		return
	}
	t.ensureGroupExists(path)
	t.rebuild()
}

// DeleteGroup removes path and every descendant group.
// Sessions are not touched, so their GroupPath may now dangle.
func (t *GroupTree) DeleteGroup(path string) {
	prefix := path + GroupSeparator
	removed := 0
	for p := range t.groups {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(t.groups, p)
			removed++
		}
	}
	if removed > 0 {
		groupLog.Debug("groups_deleted", slog.String("path", path), slog.Int("count", removed))
	}
	t.rebuild()
}

// ToggleCollapsed flips the collapsed flag of an existing group.
// Unknown paths are ignored.
func (t *GroupTree) ToggleCollapsed(path string) {
	if g, exists := t.groups[path]; exists {
		g.Collapsed = !g.Collapsed
		t.rebuild()
	}
}

// SetCollapsed sets the collapsed flag of an existing group.
func (t *GroupTree) SetCollapsed(path string, collapsed bool) {
	if g, exists := t.groups[path]; exists && g.Collapsed != collapsed {
		g.Collapsed = collapsed
		t.rebuild()
	}
}

// GroupExists reports whether path is a known group.
func (t *GroupTree) GroupExists(path string) bool {
	_, exists := t.groups[path]
	return exists
}

// GetGroup returns the tree node for path, with its children populated.
func (t *GroupTree) GetGroup(path string) (*Group, bool) {
	g, ok := t.index[path]
	return g, ok
}

// GetRoots returns the top-level groups sorted by name.
func (t *GroupTree) GetRoots() []*Group {
	return t.roots
}

// GetAllGroups returns every group sorted by full path.
func (t *GroupTree) GetAllGroups() []*Group {
	all := make([]*Group, 0, len(t.index))
	for _, g := range t.index {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Path < all[j].Path
	})
	return all
}

// Paths returns every group path sorted ascending.
func (t *GroupTree) Paths() []string {
	paths := make([]string, 0, len(t.groups))
	for p := range t.groups {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GroupCount returns total group count.
func (t *GroupTree) GroupCount() int {
	return len(t.groups)
}

// ParentPath returns the parent path of a group path ("" for root groups).
func ParentPath(path string) string {
	if idx := strings.LastIndex(path, GroupSeparator); idx != -1 {
		return path[:idx]
	}
	return ""
}

// GroupName returns the last segment of a group path.
func GroupName(path string) string {
	if idx := strings.LastIndex(path, GroupSeparator); idx != -1 {
		return path[idx+1:]
	}
	return path
}

// GetGroupLevel returns the nesting level of a group (0 for root, 1 for child, etc.)
func GetGroupLevel(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, GroupSeparator)
}
