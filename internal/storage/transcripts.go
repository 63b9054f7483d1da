// Package storage persists session transcripts as JSON files so chat
// history survives host restarts. The backend's history remains
// authoritative; stored transcripts are display state only.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/riftlabs/rift-host/pkg/types"
)

// ErrNotFound is returned when no transcript exists for a session.
var ErrNotFound = errors.New("storage: transcript not found")

// Transcript is the stored record of one session.
type Transcript struct {
	AgentID   string              `json:"agentId"`
	AgentType string              `json:"agentType"`
	Messages  []types.ChatMessage `json:"messages"`
	UpdatedAt int64               `json:"updatedAt"` // unix millis
}

// Transcripts is a directory-backed transcript store. Writes are atomic
// (temp file + rename) and guarded by per-file flocks so concurrent hosts
// sharing a data directory do not corrupt each other.
type Transcripts struct {
	dir string

	mu    sync.Mutex
	locks map[string]*FileLock
}

// New creates a transcript store rooted at dir.
func New(dir string) *Transcripts {
	return &Transcripts{
		dir:   dir,
		locks: make(map[string]*FileLock),
	}
}

func (t *Transcripts) pathFor(agentID string) string {
	return filepath.Join(t.dir, "session", agentID+".json")
}

// Save writes the transcript for a session.
func (t *Transcripts) Save(agentID, agentType string, messages []types.ChatMessage) error {
	path := t.pathFor(agentID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	lock := t.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("storage: acquire lock: %w", err)
	}
	defer lock.Unlock()

	record := Transcript{
		AgentID:   agentID,
		AgentType: agentType,
		Messages:  messages,
		UpdatedAt: time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal transcript: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Load reads the transcript for a session.
func (t *Transcripts) Load(agentID string) (*Transcript, error) {
	data, err := os.ReadFile(t.pathFor(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read transcript: %w", err)
	}

	var record Transcript
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("storage: unmarshal transcript: %w", err)
	}
	return &record, nil
}

// Delete removes the transcript for a session. Deleting a missing
// transcript is not an error.
func (t *Transcripts) Delete(agentID string) error {
	path := t.pathFor(agentID)

	lock := t.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("storage: acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete transcript: %w", err)
	}
	return nil
}

// List returns the agent ids of all stored transcripts.
func (t *Transcripts) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(t.dir, "session"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// lockFor returns the file lock for a path.
func (t *Transcripts) lockFor(path string) *FileLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[path]
	if !ok {
		lock = NewFileLock(path)
		t.locks[path] = lock
	}
	return lock
}
