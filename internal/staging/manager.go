// Package staging tracks locally selected binary files that have not been
// uploaded yet. It is pure per-session bookkeeping: bytes land in a session
// staging directory and are handed to the upload orchestrator at submit time.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/draft-engine/internal/models"
)

// ErrorKindInvalidFileType marks a staging rejection for a media-kind mismatch
const ErrorKindInvalidFileType = "InvalidFileType"

// Error is a staging rejection. It is returned to the caller and handled
// locally; nothing about it is fatal.
type Error struct {
	Kind    string        `json:"kind"`
	Slot    models.SlotID `json:"slot"`
	Message string        `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("staging %s on slot %s: %s", e.Kind, e.Slot, e.Message)
}

// Pending pairs a slot with its staged file
type Pending struct {
	Slot models.SlotID
	File *models.StagedFile
}

// Manager keeps the staged files of one editing session
type Manager struct {
	mu      sync.Mutex
	dir     string
	pending map[models.SlotID]*models.StagedFile
}

// NewManager creates a staging manager rooted at dir. The directory is
// created lazily on the first staged file.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		pending: make(map[models.SlotID]*models.StagedFile),
	}
}

// Stage validates the declared media kind against the slot's expected kind,
// writes the file into the staging directory and records it. On a kind
// mismatch nothing is mutated and an *Error with kind InvalidFileType is
// returned. Staging over an already staged slot replaces the previous file.
func (m *Manager) Stage(slot models.SlotID, filename, contentType string, r io.Reader) (*models.StagedFile, error) {
	expected, err := slot.ExpectedKind()
	if err != nil {
		return nil, err
	}

	kind := models.KindFromContentType(contentType)
	if kind != expected {
		return nil, &Error{
			Kind:    ErrorKindInvalidFileType,
			Slot:    slot,
			Message: fmt.Sprintf("%s file staged into %s slot", kind, expected),
		}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	path := filepath.Join(m.dir, uuid.New().String()[:12]+"-"+filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}

	staged := &models.StagedFile{
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		Kind:        kind,
		Size:        size,
		Path:        path,
		StagedAt:    time.Now(),
	}

	m.mu.Lock()
	if prev, ok := m.pending[slot]; ok && prev.Path != "" {
		os.Remove(prev.Path)
	}
	m.pending[slot] = staged
	m.mu.Unlock()

	return staged, nil
}

// Clear drops the staged file for a slot, removing its bytes. Clearing an
// empty slot is a no-op.
func (m *Manager) Clear(slot models.SlotID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.pending[slot]; ok {
		if prev.Path != "" {
			os.Remove(prev.Path)
		}
		delete(m.pending, slot)
	}
}

// Get returns the staged file for a slot, or nil
func (m *Manager) Get(slot models.SlotID) *models.StagedFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[slot]
}

// ListPending returns all staged files in deterministic slot order
func (m *Manager) ListPending() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pending, 0, len(m.pending))
	for slot, file := range m.pending {
		out = append(out, Pending{Slot: slot, File: file})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// RemoveAll drops every staged file and the staging directory.
// Called when the editing session ends.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[models.SlotID]*models.StagedFile)
	os.RemoveAll(m.dir)
}
