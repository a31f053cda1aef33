// Package session binds a skeleton hierarchy to a live scale table and turns
// raw mocap frames into scaled frames for downstream retargeting.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/OCAP2/skelscale/internal/scaletable"
	"github.com/OCAP2/skelscale/internal/scaling"
	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
)

// ErrNoSolver is returned by Retarget when the session has no IK solver.
var ErrNoSolver = errors.New("session: no solver configured")

// Solver turns a scaled frame into robot joint positions. The solver lives
// outside this module.
type Solver interface {
	Solve(scaled core.Frame) ([]float64, error)
}

// Option configures a Session.
type Option func(*Session)

// WithSolver attaches an IK solver used by Retarget.
func WithSolver(s Solver) Option {
	return func(sess *Session) {
		sess.solver = s
	}
}

// Session owns one hierarchy and one scale table for the duration of a
// retargeting run.
type Session struct {
	hierarchy *skeleton.Hierarchy
	table     *scaletable.Table
	solver    Solver

	mu     sync.Mutex
	last   core.Frame
	frames int
}

// New creates a session. A nil table is replaced with an empty one.
func New(h *skeleton.Hierarchy, table *scaletable.Table, opts ...Option) *Session {
	if table == nil {
		table = scaletable.New(nil)
	}
	s := &Session{hierarchy: h, table: table}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hierarchy returns the bone tree of the session.
func (s *Session) Hierarchy() *skeleton.Hierarchy { return s.hierarchy }

// Table returns the live scale table. Edits apply from the next Update.
func (s *Session) Table() *scaletable.Table { return s.table }

// Update scales one raw frame against the current table contents.
func (s *Session) Update(frame core.Frame) (core.Frame, error) {
	scaled, err := scaling.Scale(s.hierarchy, s.table.Snapshot(), frame)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = scaled
	s.frames++
	s.mu.Unlock()

	return scaled.Clone(), nil
}

// Last returns a copy of the most recent scaled frame.
func (s *Session) Last() (core.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, false
	}
	return s.last.Clone(), true
}

// Frames is the number of successful updates.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Retarget scales frame and hands the result to the solver.
func (s *Session) Retarget(frame core.Frame) (core.Frame, []float64, error) {
	if s.solver == nil {
		return nil, nil, ErrNoSolver
	}
	scaled, err := s.Update(frame)
	if err != nil {
		return nil, nil, err
	}
	qpos, err := s.solver.Solve(scaled)
	if err != nil {
		return scaled, nil, fmt.Errorf("solve: %w", err)
	}
	return scaled, qpos, nil
}
