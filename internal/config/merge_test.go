package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMergeWorkspaceFoldersCaseInsensitiveUnion(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{
		"workspaceFolders": [{"uri":"file:///A","name":"A","includePath":["/a"]}]
	}`)
	user := writeJSON(t, dir, "user.json", `{
		"workspaceFolders": [{"uri":"FILE:///a","name":"A2","includePath":["/b","/a"]}]
	}`)

	snap, err := Load(machine, user, Defaults{})
	require.NoError(t, err)
	require.Len(t, snap.WorkspaceFolders, 1)
	wf := snap.WorkspaceFolders[0]
	assert.Equal(t, "A2", wf.Name)
	assert.Equal(t, []string{"/a", "/b"}, wf.IncludePath)
}

func TestMergeAdditionalIncludePathDedupPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{"additionalIncludePath":["/x","/y","/x"]}`)
	user := writeJSON(t, dir, "user.json", `{"additionalIncludePath":["/y","/z"]}`)

	snap, err := Load(machine, user, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/x", "/y", "/z"}, snap.AdditionalIncludePath)
}

func TestMergeMissingFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	user := writeJSON(t, dir, "user.json", `{"additionalIncludePath":["/only-user"]}`)

	snap, err := Load(filepath.Join(dir, "does-not-exist.json"), user, Defaults{})
	require.Error(t, err) // logged, but non-fatal
	assert.Equal(t, []string{"/only-user"}, snap.AdditionalIncludePath)
}

func TestMergeMalformedJSONTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{not valid json`)
	user := writeJSON(t, dir, "user.json", `{"additionalIncludePath":["/ok"]}`)

	snap, err := Load(machine, user, Defaults{})
	require.Error(t, err)
	assert.Equal(t, []string{"/ok"}, snap.AdditionalIncludePath)
}

func TestDefaultWorkspaceFoldersInjectedWhenMissing(t *testing.T) {
	snap, err := Load("", "", Defaults{OrgDirExe: "/opt/origin", OrgDirUserAppData: "/home/u/appdata"})
	require.NoError(t, err)
	require.Len(t, snap.WorkspaceFolders, 2)

	names := map[string]bool{}
	for _, wf := range snap.WorkspaceFolders {
		names[wf.Name] = true
	}
	assert.True(t, names["XFC"])
	assert.True(t, names["AppXFC"])
}

func TestDefaultWorkspaceFoldersSkippedWhenEnvMissing(t *testing.T) {
	snap, err := Load("", "", Defaults{})
	require.NoError(t, err)
	assert.Empty(t, snap.WorkspaceFolders)
}

func TestDefaultWorkspaceFolderNotDuplicatedIfAlreadyConfigured(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{
		"workspaceFolders": [{"uri":"/opt/origin/XFC","name":"CustomXFC"}]
	}`)

	snap, err := Load(machine, "", Defaults{OrgDirExe: "/opt/origin"})
	require.NoError(t, err)
	require.Len(t, snap.WorkspaceFolders, 1)
	assert.Equal(t, "CustomXFC", snap.WorkspaceFolders[0].Name)
}

func TestAllowedRefTypeDefaultsAndOverride(t *testing.T) {
	snap, err := Load("", "", Defaults{})
	require.NoError(t, err)
	assert.True(t, snap.IsRefTypeAllowed(0))
	assert.True(t, snap.IsRefTypeAllowed(4))
	assert.False(t, snap.IsRefTypeAllowed(2))

	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{"allowed_ref_type":[2,3]}`)
	snap2, err := Load(machine, "", Defaults{})
	require.NoError(t, err)
	assert.True(t, snap2.IsRefTypeAllowed(2))
	assert.False(t, snap2.IsRefTypeAllowed(0))
}

func TestScalarUserOverridesMachine(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{"someFlag":"machine"}`)
	user := writeJSON(t, dir, "user.json", `{"someFlag":"user"}`)

	snap, err := Load(machine, user, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, "user", snap.Scalars["someFlag"])
}

func TestCacheLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	machine := writeJSON(t, dir, "machine.json", `{"additionalIncludePath":["/a"]}`)

	c := NewCache(machine, "", Defaults{})
	snap1, err := c.Get()
	require.NoError(t, err)

	// Mutate the file on disk; the cache must not observe the change.
	require.NoError(t, os.WriteFile(machine, []byte(`{"additionalIncludePath":["/b"]}`), 0o644))

	snap2, err := c.Get()
	require.NoError(t, err)
	assert.Same(t, snap1, snap2)
	assert.Equal(t, []string{"/a"}, snap2.AdditionalIncludePath)
}
