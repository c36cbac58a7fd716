package session

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// ResolveSession returns the first session, in list order, whose ID equals
// identifier, whose ID starts with identifier, or whose title equals
// identifier. An earlier prefix match wins over a later exact ID match.
func ResolveSession(identifier string, instances []*Instance) (*Instance, error) {
	for _, inst := range instances {
		if inst.ID == identifier || strings.HasPrefix(inst.ID, identifier) || inst.Title == identifier {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("session %q: %w", identifier, ErrNotFound)
}

// sessionSource implements fuzzy.Source over session titles
type sessionSource struct {
	instances []*Instance
}

func (s sessionSource) String(i int) string {
	return s.instances[i].Title
}

func (s sessionSource) Len() int {
	return len(s.instances)
}

// SuggestSessions returns up to limit session titles that fuzzily match
// identifier, best match first. Used for "did you mean" hints.
func SuggestSessions(identifier string, instances []*Instance, limit int) []string {
	if identifier == "" || limit <= 0 {
		return nil
	}
	matches := fuzzy.FindFrom(identifier, sessionSource{instances: instances})
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, instances[m.Index].Title)
	}
	return out
}

// SuggestGroups returns up to limit existing group paths that fuzzily match path.
func SuggestGroups(path string, tree *GroupTree, limit int) []string {
	if path == "" || limit <= 0 {
		return nil
	}
	paths := tree.Paths()
	matches := fuzzy.Find(path, paths)
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
