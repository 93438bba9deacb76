package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/sceneforge/testutil"
)

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestArchiver_Archive(t *testing.T) {
	work := t.TempDir()
	program := testutil.WriteFile(t, work, "scene.py", "import bpy\n")
	r1 := testutil.WriteFile(t, work, "renders/render_1.png", "png-1")
	r2 := filepath.Join(work, "renders", "render_2.png")

	a, err := NewArchiver(filepath.Join(t.TempDir(), "archive"), zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := a.Archive(context.Background(), Snapshot{
		RunID:   "run-1",
		Attempt: 2,
		State:   "VALIDATE",
		Reason:  "render_2.png: missing-artifact",
		Program: program,
		Renders: []string{r1, r2},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(a.Root(), "run-1", "attempt_2"), m.Dir())
	require.Len(t, m.Entries, 2)
	assert.Equal(t, Entry{Name: "scene.py", Kind: KindProgram, Size: 11, Checksum: sum("import bpy\n"), Source: program}, m.Entries[0])
	assert.Equal(t, KindRender, m.Entries[1].Kind)
	assert.Equal(t, sum("png-1"), m.Entries[1].Checksum)
	assert.Equal(t, []string{"render_2.png"}, m.Missing)

	assert.FileExists(t, filepath.Join(m.Dir(), "manifest.json"))
	data, err := os.ReadFile(filepath.Join(m.Dir(), "render_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-1", string(data))
}

func TestArchiver_ListAndVerify(t *testing.T) {
	work := t.TempDir()
	program := testutil.WriteFile(t, work, "scene.py", "v1")

	a, err := NewArchiver(t.TempDir(), nil)
	require.NoError(t, err)
	for _, k := range []int{3, 1, 2} {
		_, err := a.Archive(context.Background(), Snapshot{RunID: "run-x", Attempt: k, Program: program})
		require.NoError(t, err)
	}

	list, err := a.List("run-x")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, m := range list {
		assert.Equal(t, i+1, m.Attempt)
	}

	bad, err := a.Verify(list[0])
	require.NoError(t, err)
	assert.Empty(t, bad)

	require.NoError(t, os.WriteFile(filepath.Join(list[0].Dir(), "scene.py"), []byte("tampered"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(list[1].Dir(), "scene.py")))

	bad, err = a.Verify(list[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"scene.py"}, bad)
	bad, err = a.Verify(list[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"scene.py"}, bad)

	empty, err := a.List("unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestArchiver_InvalidSnapshot(t *testing.T) {
	a, err := NewArchiver(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), Snapshot{Attempt: 1})
	assert.Error(t, err)
	_, err = a.Archive(context.Background(), Snapshot{RunID: "r", Attempt: 0})
	assert.Error(t, err)

	_, err = NewArchiver("", nil)
	assert.Error(t, err)
}

func TestArchiver_Cancelled(t *testing.T) {
	work := t.TempDir()
	program := testutil.WriteFile(t, work, "scene.py", "x")
	a, err := NewArchiver(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = a.Archive(testutil.CancelledContext(), Snapshot{RunID: "r", Attempt: 1, Program: program})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "renders/render_1.png", "old")
	b := filepath.Join(dir, "renders", "render_2.png")

	n, err := Clear([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, a)

	n, err = Clear([]string{a})
	require.NoError(t, err)
	assert.Zero(t, n)
}
