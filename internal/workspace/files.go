// Package workspace tracks the file lists surfaced in the omnibar for
// @-mention autocomplete: a ring of recently-opened files and the set of
// workspace-visible files, kept fresh with a filesystem watcher.
package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/riftlabs/rift-host/internal/logging"
	"github.com/riftlabs/rift-host/pkg/types"
)

// recentCapacity bounds the recently-opened ring.
const recentCapacity = 10

// Files tracks the two file lists for one workspace root.
type Files struct {
	root        string
	ignoreGlobs []string
	log         zerolog.Logger

	mu        sync.Mutex
	recent    []types.FileDescriptor
	workspace []types.FileDescriptor
}

// NewFiles creates a tracker for the given root. ignoreGlobs are
// doublestar patterns matched against workspace-relative paths.
func NewFiles(root string, ignoreGlobs []string) *Files {
	return &Files{
		root:        root,
		ignoreGlobs: ignoreGlobs,
		log:         logging.ForComponent("workspace"),
	}
}

// RecordOpened notes that a file was opened. Most recent first, no
// duplicates, bounded capacity.
func (f *Files) RecordOpened(uri string) {
	desc := f.describe(uri)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, existing := range f.recent {
		if existing.URI == uri {
			f.recent = append(f.recent[:i], f.recent[i+1:]...)
			break
		}
	}
	f.recent = append([]types.FileDescriptor{desc}, f.recent...)
	if len(f.recent) > recentCapacity {
		f.recent = f.recent[:recentCapacity]
	}
}

// Recent returns the recently-opened list, most recent first.
func (f *Files) Recent() []types.FileDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.FileDescriptor, len(f.recent))
	copy(out, f.recent)
	return out
}

// Workspace returns the current workspace-visible file list.
func (f *Files) Workspace() []types.FileDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.FileDescriptor, len(f.workspace))
	copy(out, f.workspace)
	return out
}

// Refresh walks the workspace root and rebuilds the visible file list.
func (f *Files) Refresh() error {
	if f.root == "" {
		return nil
	}

	var files []types.FileDescriptor
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(f.root, path)
		if relErr != nil {
			return nil
		}
		if f.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, types.FileDescriptor{
			URI:     "file://" + path,
			Name:    d.Name(),
			RelPath: rel,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("workspace: walk %s: %w", f.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	f.mu.Lock()
	f.workspace = files
	f.mu.Unlock()

	f.log.Debug().Int("count", len(files)).Msg("workspace file list refreshed")
	return nil
}

// ignored reports whether a workspace-relative path matches any ignore
// glob. Dotfile directories are always ignored.
func (f *Files) ignored(rel string) bool {
	if rel == "." {
		return false
	}
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	slashed := filepath.ToSlash(rel)
	for _, glob := range f.ignoreGlobs {
		if ok, err := doublestar.Match(glob, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

func (f *Files) describe(uri string) types.FileDescriptor {
	path := strings.TrimPrefix(uri, "file://")
	desc := types.FileDescriptor{
		URI:  uri,
		Name: filepath.Base(path),
	}
	if f.root != "" {
		if rel, err := filepath.Rel(f.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			desc.RelPath = rel
		}
	}
	if desc.RelPath == "" {
		desc.RelPath = path
	}
	return desc
}
