package statedb

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db1.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db1.SaveState([]*InstanceRow{{
		ID:          "test-1",
		Title:       "Test",
		ProjectPath: "/tmp",
		GroupPath:   "group",
		Tool:        "shell",
		Status:      "idle",
		CreatedAt:   time.Now(),
	}}, []*GroupRow{{Path: "group", Name: "group"}}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer db2.Close()
	if err := db2.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	rows, err := db2.LoadInstances()
	if err != nil {
		t.Fatalf("LoadInstances: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 instance, got %d", len(rows))
	}
	if rows[0].ID != "test-1" || rows[0].Title != "Test" {
		t.Errorf("Unexpected data: %+v", rows[0])
	}
}

func TestSaveLoadInstancesKeepsOrder(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	instances := []*InstanceRow{
		{ID: "z", Title: "Zulu", ProjectPath: "/z", GroupPath: "grp", Order: 0, Tool: "claude", Status: "idle", CreatedAt: now},
		{ID: "a", Title: "Alpha", ProjectPath: "/a", GroupPath: "", Order: 1, Tool: "shell", Status: "running", CreatedAt: now},
	}

	if err := db.SaveState(instances, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := db.LoadInstances()
	if err != nil {
		t.Fatalf("LoadInstances: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 instances, got %d", len(loaded))
	}
	if loaded[0].ID != "z" || loaded[1].ID != "a" {
		t.Errorf("Wrong order: %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if loaded[0].Tool != "claude" {
		t.Errorf("Expected tool 'claude', got %q", loaded[0].Tool)
	}
	if loaded[1].GroupPath != "" {
		t.Errorf("Expected ungrouped, got %q", loaded[1].GroupPath)
	}
	if loaded[0].CreatedAt.Unix() != now.Unix() {
		t.Errorf("CreatedAt mismatch: %v vs %v", loaded[0].CreatedAt, now)
	}
}

func TestSaveLoadGroups(t *testing.T) {
	db := newTestDB(t)

	groups := []*GroupRow{
		{Path: "work", Name: "work", Collapsed: true},
		{Path: "personal", Name: "personal", Collapsed: false},
	}

	if err := db.SaveState(nil, groups); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := db.LoadGroups()
	if err != nil {
		t.Fatalf("LoadGroups: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(loaded))
	}
	// Ordered by path
	if loaded[0].Path != "personal" || loaded[1].Path != "work" {
		t.Errorf("Unexpected order: %s, %s", loaded[0].Path, loaded[1].Path)
	}
	if loaded[0].Collapsed || !loaded[1].Collapsed {
		t.Errorf("Collapsed mismatch: %v, %v", loaded[0].Collapsed, loaded[1].Collapsed)
	}
}

func TestSaveStateReplacesPreviousRows(t *testing.T) {
	db := newTestDB(t)

	if err := db.SaveState(
		[]*InstanceRow{{ID: "old", Title: "Old", ProjectPath: "/o", Tool: "shell", Status: "idle", CreatedAt: time.Now()}},
		[]*GroupRow{{Path: "gone", Name: "gone"}},
	); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	if err := db.SaveState(
		[]*InstanceRow{{ID: "new", Title: "New", ProjectPath: "/n", Tool: "shell", Status: "idle", CreatedAt: time.Now()}},
		[]*GroupRow{{Path: "kept", Name: "kept"}},
	); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	insts, _ := db.LoadInstances()
	groups, _ := db.LoadGroups()
	if len(insts) != 1 || insts[0].ID != "new" {
		t.Errorf("Expected only 'new' instance, got %+v", insts)
	}
	if len(groups) != 1 || groups[0].Path != "kept" {
		t.Errorf("Expected only 'kept' group, got %+v", groups)
	}
}

func TestSaveStateIsAtomic(t *testing.T) {
	db := newTestDB(t)

	if err := db.SaveState(
		[]*InstanceRow{{ID: "a", Title: "A", ProjectPath: "/a", Tool: "shell", Status: "idle", CreatedAt: time.Now()}},
		[]*GroupRow{{Path: "work", Name: "work"}},
	); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// Duplicate group paths violate the primary key after instances were written.
	err := db.SaveState(
		[]*InstanceRow{{ID: "b", Title: "B", ProjectPath: "/b", Tool: "shell", Status: "idle", CreatedAt: time.Now()}},
		[]*GroupRow{{Path: "dup", Name: "dup"}, {Path: "dup", Name: "dup"}},
	)
	if err == nil {
		t.Fatal("Expected primary key violation")
	}

	insts, _ := db.LoadInstances()
	groups, _ := db.LoadGroups()
	if len(insts) != 1 || insts[0].ID != "a" {
		t.Errorf("Instances changed by failed save: %+v", insts)
	}
	if len(groups) != 1 || groups[0].Path != "work" {
		t.Errorf("Groups changed by failed save: %+v", groups)
	}
}

func TestWriteStatus(t *testing.T) {
	db := newTestDB(t)

	if err := db.SaveState([]*InstanceRow{
		{ID: "s1", Title: "S1", ProjectPath: "/s", Tool: "claude", Status: "starting", CreatedAt: time.Now()},
	}, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	if err := db.WriteStatus("s1", "waiting"); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	loaded, _ := db.LoadInstances()
	if loaded[0].Status != "waiting" {
		t.Errorf("Expected 'waiting', got %q", loaded[0].Status)
	}

	if err := db.WriteStatus("missing", "idle"); err == nil {
		t.Error("Expected error for unknown instance")
	}
}

func TestTouchAndLastModified(t *testing.T) {
	db := newTestDB(t)

	ts0, err := db.LastModified()
	if err != nil {
		t.Fatalf("LastModified: %v", err)
	}
	if ts0 != 0 {
		t.Errorf("Expected 0 before any touch, got %d", ts0)
	}

	if err := db.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	ts1, err := db.LastModified()
	if err != nil {
		t.Fatalf("LastModified: %v", err)
	}
	if ts1 == 0 {
		t.Error("Expected non-zero after touch")
	}

	time.Sleep(2 * time.Millisecond)
	if err := db.SaveState(nil, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	ts2, _ := db.LastModified()
	if ts2 <= ts1 {
		t.Errorf("Expected SaveState to advance last_modified: %d <= %d", ts2, ts1)
	}
}

func TestConcurrentAccess(t *testing.T) {
	db := newTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = db.LoadInstances()
				_, _ = db.LoadGroups()
			}
		}()
	}

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id := "concurrent-" + string(rune('a'+idx))
				_ = db.SaveState([]*InstanceRow{
					{ID: id, Title: id, ProjectPath: "/tmp", Tool: "shell", Status: "idle", CreatedAt: time.Now()},
				}, nil)
				_ = db.Touch()
			}
		}(i)
	}

	wg.Wait()
}

func TestIsEmpty(t *testing.T) {
	db := newTestDB(t)

	empty, err := db.IsEmpty()
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("Expected empty db")
	}

	// A lone empty group still counts as state.
	if err := db.SaveState(nil, []*GroupRow{{Path: "solo", Name: "solo"}}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	empty, _ = db.IsEmpty()
	if empty {
		t.Error("Expected non-empty after saving a group")
	}
}

func TestMetadata(t *testing.T) {
	db := newTestDB(t)

	val, err := db.GetMeta("nonexistent")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if val != "" {
		t.Errorf("Expected empty, got %q", val)
	}

	if err := db.SetMeta("test_key", "test_value"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	val, _ = db.GetMeta("test_key")
	if val != "test_value" {
		t.Errorf("Expected 'test_value', got %q", val)
	}

	if err := db.SetMeta("test_key", "new_value"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	val, _ = db.GetMeta("test_key")
	if val != "new_value" {
		t.Errorf("Expected 'new_value', got %q", val)
	}
}

func TestMigrateFromJSON(t *testing.T) {
	db := newTestDB(t)

	jsonPath := filepath.Join(t.TempDir(), "sessions.json")
	content := `{
		"instances": [
			{"id": "abc123", "title": "api", "project_path": "/src/api", "group_path": "work/backend", "tool": "claude", "status": "Running"},
			{"id": "def456", "title": "notes", "project_path": "/notes", "group_path": ""}
		],
		"groups": [
			{"name": "work", "path": "work", "collapsed": true},
			{"name": "", "path": ""}
		]
	}`
	if err := os.WriteFile(jsonPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	nInst, nGroups, err := MigrateFromJSON(jsonPath, db)
	if err != nil {
		t.Fatalf("MigrateFromJSON: %v", err)
	}
	if nInst != 2 || nGroups != 1 {
		t.Errorf("Expected 2 instances and 1 group, got %d and %d", nInst, nGroups)
	}

	insts, _ := db.LoadInstances()
	if insts[0].ID != "abc123" || insts[0].Status != "running" {
		t.Errorf("Unexpected first instance: %+v", insts[0])
	}
	if insts[1].Tool != "shell" || insts[1].Status != "idle" {
		t.Errorf("Expected defaults on second instance, got %+v", insts[1])
	}

	groups, _ := db.LoadGroups()
	if len(groups) != 1 || !groups[0].Collapsed {
		t.Errorf("Unexpected groups: %+v", groups)
	}
}

func TestMigrateFromJSONRejectsMissingID(t *testing.T) {
	db := newTestDB(t)

	jsonPath := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(jsonPath, []byte(`{"instances":[{"title":"x"}]}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := MigrateFromJSON(jsonPath, db); err == nil {
		t.Fatal("Expected error for instance without id")
	}
	empty, _ := db.IsEmpty()
	if !empty {
		t.Error("Failed migration must not write anything")
	}
}
