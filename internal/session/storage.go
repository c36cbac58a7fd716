package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentofempires/agent-of-empires/internal/logging"
	"github.com/agentofempires/agent-of-empires/internal/statedb"
)

var storageLog = logging.ForComponent(logging.CompStorage)

// Storage persists sessions and groups for one profile in SQLite.
// Multiple processes share data via SQLite WAL mode.
type Storage struct {
	db      *statedb.StateDB
	dbPath  string
	profile string
	mu      sync.Mutex
}

var _ Store = (*Storage)(nil)

// NewStorageWithProfile opens the state database for a profile.
// If profile is empty, uses the effective profile (from env var or config).
// A legacy sessions.json is imported when state.db is empty.
func NewStorageWithProfile(profile string) (*Storage, error) {
	effectiveProfile := GetEffectiveProfile(profile)

	profileDir, err := GetProfileDir(effectiveProfile)
	if err != nil {
		return nil, err
	}
	return openStorage(profileDir, effectiveProfile)
}

func openStorage(profileDir, profile string) (*Storage, error) {
	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbPath := filepath.Join(profileDir, StateDBName)
	db, err := statedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	importLegacyJSON(db, filepath.Join(profileDir, LegacyJSONName))

	storageLog.Debug("storage_opened", slog.String("profile", profile), slog.String("path", dbPath))
	return &Storage{db: db, dbPath: dbPath, profile: profile}, nil
}

// importLegacyJSON copies sessions.json into an empty database and renames
// the file so the import runs once. Failures leave the database empty.
func importLegacyJSON(db *statedb.StateDB, jsonPath string) {
	if _, err := os.Stat(jsonPath); err != nil {
		return
	}
	empty, err := db.IsEmpty()
	if err != nil || !empty {
		return
	}

	nInst, nGroups, err := statedb.MigrateFromJSON(jsonPath, db)
	if err != nil {
		storageLog.Warn("json_migration_failed", slog.String("error", err.Error()))
		return
	}
	storageLog.Info("migrated_from_json", slog.Int("instances", nInst), slog.Int("groups", nGroups))

	if err := os.Rename(jsonPath, jsonPath+".migrated"); err != nil {
		storageLog.Warn("json_rename_failed", slog.String("error", err.Error()))
	}
}

// Profile returns the profile name this storage is using
func (s *Storage) Profile() string {
	return s.profile
}

// Path returns the database path this storage is using
func (s *Storage) Path() string {
	return s.dbPath
}

// GetDB returns the underlying StateDB (change detection, status writes)
func (s *Storage) GetDB() *statedb.StateDB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadWithGroups loads sessions in their stored order and the persisted groups.
func (s *Storage) LoadWithGroups() ([]*Instance, []*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, nil, fmt.Errorf("storage database not initialized")
	}

	rows, err := s.db.LoadInstances()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load instances: %w", err)
	}

	instances := make([]*Instance, 0, len(rows))
	for _, r := range rows {
		status, err := ParseStatus(r.Status)
		if err != nil {
			storageLog.Warn("unknown_status",
				slog.String("session_id", r.ID),
				slog.String("status", r.Status))
		}
		instances = append(instances, &Instance{
			ID:          r.ID,
			Title:       r.Title,
			ProjectPath: r.ProjectPath,
			GroupPath:   r.GroupPath,
			Command:     r.Command,
			Tool:        r.Tool,
			Status:      status,
			CreatedAt:   r.CreatedAt,
		})
	}

	groupRows, err := s.db.LoadGroups()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load groups: %w", err)
	}

	groups := make([]*Group, 0, len(groupRows))
	for _, g := range groupRows {
		groups = append(groups, &Group{Name: g.Name, Path: g.Path, Collapsed: g.Collapsed})
	}

	return instances, groups, nil
}

// SaveWithGroups persists instances and every group in tree in one
// transaction. A nil tree saves instances and clears the groups table.
func (s *Storage) SaveWithGroups(instances []*Instance, tree *GroupTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("storage database not initialized")
	}

	rows := make([]*statedb.InstanceRow, len(instances))
	for i, inst := range instances {
		created := inst.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		rows[i] = &statedb.InstanceRow{
			ID:          inst.ID,
			Title:       inst.Title,
			ProjectPath: inst.ProjectPath,
			GroupPath:   inst.GroupPath,
			Order:       i,
			Command:     inst.Command,
			Tool:        inst.Tool,
			Status:      string(inst.Status),
			CreatedAt:   created,
		}
	}

	var groupRows []*statedb.GroupRow
	if tree != nil {
		all := tree.GetAllGroups()
		groupRows = make([]*statedb.GroupRow, 0, len(all))
		for _, g := range all {
			groupRows = append(groupRows, &statedb.GroupRow{
				Path:      g.Path,
				Name:      g.Name,
				Collapsed: g.Collapsed,
			})
		}
	}

	if err := s.db.SaveState(rows, groupRows); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	storageLog.Debug("state_saved",
		slog.Int("instances", len(rows)),
		slog.Int("groups", len(groupRows)))
	return nil
}
