package session

// ItemType represents the type of item in the flattened list
type ItemType int

const (
	ItemTypeGroup ItemType = iota
	ItemTypeSession
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeGroup:
		return "group"
	case ItemTypeSession:
		return "session"
	}
	return "unknown"
}

// Item is one display row. Group rows carry Path, Name, Collapsed and
// SessionCount; session rows carry SessionID.
type Item struct {
	Type         ItemType
	Depth        int
	Path         string
	Name         string
	Collapsed    bool
	SessionCount int // whole subtree, regardless of collapse state
	SessionID    string
}

// IsGroup reports whether the row is a group header.
func (it Item) IsGroup() bool { return it.Type == ItemTypeGroup }

// FlattenTree projects the tree and the session list into display rows.
//
// Ungrouped sessions come first in list order. Root groups follow in name
// order, depth first, each group's direct sessions before its subgroups.
// A collapsed group contributes only its own row; nothing below it is
// emitted, even subgroups that are themselves expanded.
func FlattenTree(tree *GroupTree, instances []*Instance) []Item {
	items := make([]Item, 0, len(instances)+tree.GroupCount())

	for _, inst := range instances {
		if inst.GroupPath == "" {
			items = append(items, Item{Type: ItemTypeSession, SessionID: inst.ID})
		}
	}

	for _, root := range tree.GetRoots() {
		items = flattenGroup(items, root, instances, 0)
	}
	return items
}

func flattenGroup(items []Item, g *Group, instances []*Instance, depth int) []Item {
	items = append(items, Item{
		Type:         ItemTypeGroup,
		Depth:        depth,
		Path:         g.Path,
		Name:         g.Name,
		Collapsed:    g.Collapsed,
		SessionCount: CountSessionsInGroup(g.Path, instances),
	})

	if g.Collapsed {
		return items
	}

	for _, inst := range instances {
		if inst.GroupPath == g.Path {
			items = append(items, Item{Type: ItemTypeSession, Depth: depth + 1, SessionID: inst.ID})
		}
	}

	for _, child := range g.Children {
		items = flattenGroup(items, child, instances, depth+1)
	}
	return items
}

// CountSessionsInGroup counts sessions in path and all of its descendants.
func CountSessionsInGroup(path string, instances []*Instance) int {
	n := 0
	for _, inst := range instances {
		if inst.InGroupSubtree(path) {
			n++
		}
	}
	return n
}

// CountDirectSessions counts sessions whose group is exactly path.
func CountDirectSessions(path string, instances []*Instance) int {
	n := 0
	for _, inst := range instances {
		if inst.GroupPath == path {
			n++
		}
	}
	return n
}
