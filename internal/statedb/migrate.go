package statedb

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// jsonStorageData is the legacy sessions.json layout that predates state.db.
type jsonStorageData struct {
	Instances []*jsonInstanceData `json:"instances"`
	Groups    []*jsonGroupData    `json:"groups,omitempty"`
}

type jsonInstanceData struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ProjectPath string    `json:"project_path"`
	GroupPath   string    `json:"group_path"`
	Command     string    `json:"command"`
	Tool        string    `json:"tool"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type jsonGroupData struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Collapsed bool   `json:"collapsed"`
}

// MigrateFromJSON reads a legacy sessions.json file and writes its contents
// into db with a single SaveState call. Returns instance and group counts.
func MigrateFromJSON(jsonPath string, db *StateDB) (int, int, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read json: %w", err)
	}

	var storage jsonStorageData
	if err := json.Unmarshal(data, &storage); err != nil {
		return 0, 0, fmt.Errorf("parse json: %w", err)
	}

	rows := make([]*InstanceRow, 0, len(storage.Instances))
	for i, inst := range storage.Instances {
		if inst.ID == "" {
			return 0, 0, fmt.Errorf("instance %d has no id", i)
		}
		tool := inst.Tool
		if tool == "" {
			tool = "shell"
		}
		status := strings.ToLower(inst.Status)
		if status == "" {
			status = "idle"
		}
		created := inst.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		rows = append(rows, &InstanceRow{
			ID:          inst.ID,
			Title:       inst.Title,
			ProjectPath: inst.ProjectPath,
			GroupPath:   inst.GroupPath,
			Order:       i,
			Command:     inst.Command,
			Tool:        tool,
			Status:      status,
			CreatedAt:   created,
		})
	}

	groupRows := make([]*GroupRow, 0, len(storage.Groups))
	for _, g := range storage.Groups {
		if g.Path == "" {
			continue
		}
		groupRows = append(groupRows, &GroupRow{
			Path:      g.Path,
			Name:      g.Name,
			Collapsed: g.Collapsed,
		})
	}

	if err := db.SaveState(rows, groupRows); err != nil {
		return 0, 0, fmt.Errorf("save state: %w", err)
	}

	return len(rows), len(groupRows), nil
}
