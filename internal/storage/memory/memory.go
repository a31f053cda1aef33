// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/pkg/core"
)

// Backend keeps a session in memory and exports it to JSON when it ends
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	frames  []core.FrameRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and assigns its ID
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	b.session = s
	b.frames = nil
	return nil
}

// RecordFrame stores a copy of the record
func (b *Backend) RecordFrame(r *core.FrameRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no active session")
	}
	b.frames = append(b.frames, core.FrameRecord{
		SessionID: r.SessionID,
		Index:     r.Index,
		Time:      r.Time,
		Raw:       r.Raw.Clone(),
		Scaled:    r.Scaled.Clone(),
	})
	return nil
}

// EndSession writes the export file and clears the session
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no active session")
	}

	// records may arrive out of order from buffered writers
	sort.SliceStable(b.frames, func(i, j int) bool {
		return b.frames[i].Index < b.frames[j].Index
	})

	if err := b.exportJSON(); err != nil {
		return err
	}

	b.session = nil
	b.frames = nil
	return nil
}

// FrameCount returns the number of frames recorded in the active session
func (b *Backend) FrameCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
