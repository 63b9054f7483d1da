package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestFiles_RefreshHonorsIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go")
	writeFile(t, root, "src/app.ts")
	writeFile(t, root, "node_modules/pkg/index.js")
	writeFile(t, root, ".git/HEAD")

	f := NewFiles(root, []string{"**/node_modules/**"})
	require.NoError(t, f.Refresh())

	var rels []string
	for _, desc := range f.Workspace() {
		rels = append(rels, desc.RelPath)
	}
	assert.Equal(t, []string{"main.go", filepath.Join("src", "app.ts")}, rels)
}

func TestFiles_RecentlyOpenedRing(t *testing.T) {
	root := t.TempDir()
	f := NewFiles(root, nil)

	f.RecordOpened("file://" + filepath.Join(root, "a.go"))
	f.RecordOpened("file://" + filepath.Join(root, "b.go"))
	f.RecordOpened("file://" + filepath.Join(root, "a.go")) // re-open moves to front

	recent := f.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "a.go", recent[0].Name)
	assert.Equal(t, "b.go", recent[1].Name)
}

func TestFiles_RecentlyOpenedCapacity(t *testing.T) {
	root := t.TempDir()
	f := NewFiles(root, nil)

	for i := 0; i < recentCapacity+5; i++ {
		f.RecordOpened("file://" + filepath.Join(root, string(rune('a'+i))+".go"))
	}

	assert.Len(t, f.Recent(), recentCapacity)
}

func TestFiles_DescribeOutsideRoot(t *testing.T) {
	f := NewFiles(t.TempDir(), nil)

	f.RecordOpened("file:///somewhere/else/thing.go")
	recent := f.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "thing.go", recent[0].Name)
	assert.Equal(t, "/somewhere/else/thing.go", recent[0].RelPath)
}
