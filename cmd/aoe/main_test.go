package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

// cliEnv points the CLI at a fresh base dir and returns it.
func cliEnv(t *testing.T, configTOML string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(session.HomeEnvVar, home)
	t.Setenv(session.ProfileEnvVar, "_test")
	if configTOML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(home, session.UserConfigFileName), []byte(configTOML), 0600))
	}
	session.ClearUserConfigCache()
	t.Cleanup(session.ClearUserConfigCache)
	return home
}

// seed writes sessions and groups into the _test profile.
func seed(t *testing.T, instances []*session.Instance, groups []*session.Group) {
	t.Helper()
	storage, err := session.NewStorageWithProfile("_test")
	require.NoError(t, err)
	defer storage.Close()
	require.NoError(t, storage.SaveWithGroups(instances, session.NewGroupTreeWithGroups(instances, groups)))
}

func load(t *testing.T) ([]*session.Instance, *session.GroupTree) {
	t.Helper()
	storage, err := session.NewStorageWithProfile("_test")
	require.NoError(t, err)
	defer storage.Close()
	instances, groups, err := storage.LoadWithGroups()
	require.NoError(t, err)
	return instances, session.NewGroupTreeWithGroups(instances, groups)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func sampleInstances() []*session.Instance {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []*session.Instance{
		{ID: "abc123def456", Title: "api-server", ProjectPath: "/src/api", GroupPath: "work/backend", Tool: "claude", Status: session.StatusRunning, CreatedAt: created},
		{ID: "abc999xyz000", Title: "frontend", ProjectPath: "/src/web", GroupPath: "work", Tool: "claude", Status: session.StatusWaiting, CreatedAt: created},
		{ID: "fff000aaa111", Title: "scratch", ProjectPath: "/tmp", Tool: "shell", Status: session.StatusIdle, CreatedAt: created},
	}
}

func TestVersionCmd(t *testing.T) {
	cliEnv(t, "")
	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Agent of Empires v%s\n", Version), stdout)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
		exit int
	}{
		{fmt.Errorf("group %q: %w", "x", session.ErrNotFound), ErrCodeNotFound, exitNotFound},
		{fmt.Errorf("x: %w", session.ErrAlreadyExists), ErrCodeAlreadyExists, exitFailure},
		{fmt.Errorf("x: %w", session.ErrPreconditionFailed), ErrCodeGroupNotEmpty, exitFailure},
		{fmt.Errorf("x: %w", session.ErrInvalidPath), ErrCodeInvalidOperation, exitFailure},
		{errors.New("boom"), ErrCodeInvalidOperation, exitFailure},
	}
	for _, tt := range tests {
		code, exit := errorCode(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.exit, exit, tt.err.Error())
	}
}

func TestOutputFormat(t *testing.T) {
	f, err := outputFormat(false, false)
	require.NoError(t, err)
	assert.Equal(t, formatText, f)

	f, err = outputFormat(true, false)
	require.NoError(t, err)
	assert.Equal(t, formatJSON, f)

	f, err = outputFormat(false, true)
	require.NoError(t, err)
	assert.Equal(t, formatYAML, f)

	_, err = outputFormat(true, true)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc  ", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	// CJK characters are two cells wide
	assert.Equal(t, "日本…", truncate("日本語テキスト", 5))
	assert.Equal(t, "abc123de", shortID("abc123def456"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestGroupCreateAndList(t *testing.T) {
	cliEnv(t, "")

	stdout, _, err := runCLI(t, "group", "create", "mobile")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created group mobile")

	_, _, err = runCLI(t, "group", "create", "ios", "--parent", "mobile")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, "group", "list", "--json")
	require.NoError(t, err)

	var resp struct {
		Groups []groupJSON `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "mobile", resp.Groups[0].Path)
	assert.Equal(t, []string{"ios"}, resp.Groups[0].Children)
	assert.Equal(t, "mobile/ios", resp.Groups[1].Path)
	assert.Equal(t, "ios", resp.Groups[1].Name)
}

func TestGroupCreateDuplicate(t *testing.T) {
	cliEnv(t, "")

	_, _, err := runCLI(t, "group", "create", "work")
	require.NoError(t, err)

	_, stderr, err := runCLI(t, "group", "create", "work")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, stderr, "already exists")
}

func TestGroupCreateInvalidPath(t *testing.T) {
	cliEnv(t, "")

	stdout, _, err := runCLI(t, "group", "create", "a//b", "--json")
	require.Error(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, ErrCodeInvalidOperation, resp["code"])

	_, tree := load(t)
	assert.Equal(t, 0, tree.GroupCount(), "nothing is written on a failed check")
}

func TestGroupListText(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Groups (2):")
	assert.Contains(t, stdout, "▾ work  1 direct, 2 total")
	assert.Contains(t, stdout, "▾ backend  1 direct, 1 total")
}

func TestGroupListEmpty(t *testing.T) {
	cliEnv(t, "")
	stdout, _, err := runCLI(t, "group")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No groups found.")
}

func TestGroupListYAML(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "list", "--yaml")
	require.NoError(t, err)

	var resp struct {
		Groups []groupJSON `yaml:"groups"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "work", resp.Groups[0].Path)
	assert.Equal(t, 2, resp.Groups[0].TotalSessions)
}

func TestGroupDeleteNonEmpty(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "delete", "work", "--json")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ErrCodeGroupNotEmpty, resp["code"])

	_, tree := load(t)
	assert.True(t, tree.GroupExists("work"))
	assert.True(t, tree.GroupExists("work/backend"))
}

func TestGroupDeleteForce(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "delete", "work", "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Deleted group work (2 sessions moved to root)")

	instances, tree := load(t)
	assert.False(t, tree.GroupExists("work"))
	assert.False(t, tree.GroupExists("work/backend"))
	for _, inst := range instances {
		assert.Empty(t, inst.GroupPath, inst.Title)
	}
}

func TestGroupDeleteMissing(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	_, stderr, err := runCLI(t, "group", "delete", "wrok")
	require.Error(t, err)
	assert.Equal(t, exitNotFound, exitCode(err))
	assert.Contains(t, stderr, "not found")
}

func TestGroupMove(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	// "abc" is a prefix of two IDs: the first in list order wins
	stdout, _, err := runCLI(t, "group", "move", "abc", "personal/notes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Moved api-server to personal/notes")

	instances, tree := load(t)
	assert.Equal(t, "personal/notes", instances[0].GroupPath)
	assert.True(t, tree.GroupExists("personal"), "target ancestors are created")
	assert.True(t, tree.GroupExists("personal/notes"))
	assert.True(t, tree.GroupExists("work/backend"), "emptied group is kept")
}

func TestGroupMoveToRoot(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "move", "frontend", "", "--json")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "work", resp["from"])
	assert.Equal(t, "", resp["to"])

	instances, _ := load(t)
	assert.Empty(t, instances[1].GroupPath)
}

func TestGroupMoveUnknownSession(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	_, stderr, err := runCLI(t, "group", "move", "frontnd", "work")
	require.Error(t, err)
	assert.Equal(t, exitNotFound, exitCode(err))
	assert.Contains(t, stderr, "Did you mean: frontend?")
}

func TestGroupMoveEmptyIdentifier(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "move", " ", "work", "--json")
	require.Error(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ErrCodeInvalidOperation, resp["code"])
}

func TestGroupToggle(t *testing.T) {
	cliEnv(t, "")
	seed(t, sampleInstances(), nil)

	stdout, _, err := runCLI(t, "group", "toggle", "work")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Group work collapsed")

	_, tree := load(t)
	g, ok := tree.GetGroup("work")
	require.True(t, ok)
	assert.True(t, g.Collapsed)

	stdout, _, err = runCLI(t, "group", "toggle", "work")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Group work expanded")

	_, _, err = runCLI(t, "group", "toggle", "nope")
	assert.Equal(t, exitNotFound, exitCode(err))
}

func TestProfileFlag(t *testing.T) {
	home := cliEnv(t, "")

	_, _, err := runCLI(t, "-p", "other", "group", "create", "elsewhere")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(home, session.ProfilesDirName, "other", session.StateDBName))
	_, tree := load(t)
	assert.False(t, tree.GroupExists("elsewhere"), "_test profile is untouched")
}
