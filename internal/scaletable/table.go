// Package scaletable holds the per-bone segment scale factors.
//
// A factor applies to the segment from a bone's parent to that bone. Bones
// without an entry scale by 1.0. Any value is stored as given, including zero
// and negative factors; the scaling engine defines what they do.
package scaletable

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultScale is returned for bones without an entry.
const DefaultScale = 1.0

// Lookup resolves the scale factor of a bone.
type Lookup interface {
	Get(bone string) float64
}

// Table is the caller-editable scale table. It is safe for concurrent use;
// take a Snapshot before scaling a batch of frames in parallel.
type Table struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// New creates a table holding a copy of entries.
func New(entries map[string]float64) *Table {
	t := &Table{entries: make(map[string]float64, len(entries))}
	maps.Copy(t.entries, entries)
	return t
}

// Seed scales every base factor by actualHeight / assumedHeight.
// Non-positive heights leave the base factors unchanged.
func Seed(base map[string]float64, assumedHeight, actualHeight float64) *Table {
	t := New(base)
	if assumedHeight <= 0 || actualHeight <= 0 {
		return t
	}
	ratio := actualHeight / assumedHeight
	for bone, s := range t.entries {
		t.entries[bone] = s * ratio
	}
	return t
}

// Get returns the factor for bone, or DefaultScale when absent.
func (t *Table) Get(bone string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.entries[bone]; ok {
		return s
	}
	return DefaultScale
}

// Set stores the factor for bone unconditionally.
func (t *Table) Set(bone string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[bone] = value
}

// Delete removes the entry for bone, restoring the default.
func (t *Table) Delete(bone string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, bone)
}

// Has reports whether bone has an explicit entry.
func (t *Table) Has(bone string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[bone]
	return ok
}

// Len returns the number of explicit entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of the explicit entries.
func (t *Table) Entries() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.entries)
}

// Bones returns the bones with explicit entries, sorted by name.
func (t *Table) Bones() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for bone := range t.entries {
		out = append(out, bone)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns an immutable copy of the current entries.
func (t *Table) Snapshot() Snapshot {
	return Snapshot{entries: t.Entries()}
}

// Snapshot is a frozen scale table.
type Snapshot struct {
	entries map[string]float64
}

// Get returns the factor for bone, or DefaultScale when absent.
func (s Snapshot) Get(bone string) float64 {
	if v, ok := s.entries[bone]; ok {
		return v
	}
	return DefaultScale
}

// With returns a copy of the snapshot with one entry replaced.
func (s Snapshot) With(bone string, value float64) Snapshot {
	entries := maps.Clone(s.entries)
	if entries == nil {
		entries = make(map[string]float64, 1)
	}
	entries[bone] = value
	return Snapshot{entries: entries}
}

// Entries returns a copy of the frozen entries.
func (s Snapshot) Entries() map[string]float64 {
	return maps.Clone(s.entries)
}

// ParseAssignment parses a "Bone=value" override.
func ParseAssignment(s string) (string, float64, error) {
	bone, raw, ok := strings.Cut(s, "=")
	bone = strings.TrimSpace(bone)
	if !ok || bone == "" {
		return "", 0, fmt.Errorf("invalid scale assignment %q: want Bone=value", s)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid scale value for %s: %w", bone, err)
	}
	return bone, value, nil
}
