package session

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the current state of a session.
// It is written by the process monitor; this package only reads it.
type Status string

const (
	StatusStarting Status = "starting" // Session is being created (tmux initializing)
	StatusRunning  Status = "running"
	StatusWaiting  Status = "waiting"
	StatusIdle     Status = "idle"
	StatusError    Status = "error"
)

// AllStatuses lists every status in display priority order.
var AllStatuses = []Status{StatusRunning, StatusWaiting, StatusIdle, StatusStarting, StatusError}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStarting, StatusRunning, StatusWaiting, StatusIdle, StatusError:
		return true
	}
	return false
}

// ParseStatus converts a persisted status string. Matching is case-insensitive
// so rows written by older versions ("Running") still load.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return StatusError, fmt.Errorf("unknown session status %q", s)
	}
	return st, nil
}

// Instance is a single agent session record.
type Instance struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ProjectPath string    `json:"project_path"`
	GroupPath   string    `json:"group_path"` // empty means ungrouped
	Command     string    `json:"command,omitempty"`
	Tool        string    `json:"tool"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsUngrouped reports whether the session sits outside every group.
func (i *Instance) IsUngrouped() bool {
	return i.GroupPath == ""
}

// InGroupSubtree reports whether the session belongs to path or any of its descendants.
func (i *Instance) InGroupSubtree(path string) bool {
	return i.GroupPath == path || strings.HasPrefix(i.GroupPath, path+GroupSeparator)
}
