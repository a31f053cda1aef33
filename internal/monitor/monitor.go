// Package monitor reports the progress of a running scaling session to a
// status file and, when configured, to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/skelscale/internal/influx"
	"github.com/OCAP2/skelscale/internal/logging"
	"github.com/OCAP2/skelscale/pkg/core"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Second

// PendingReporter is implemented by storage backends that queue writes.
type PendingReporter interface {
	Pending() int
}

// FrameCounter reports how many frames have been scaled so far.
type FrameCounter interface {
	Frames() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Progress   FrameCounter
	Record     *core.Session
	// Backend is optional; its queue length is reported when it implements
	// PendingReporter.
	Backend any
	// Influx is optional.
	Influx     *influx.Manager
	StatusPath string
	Interval   time.Duration
}

// Status is one progress snapshot.
type Status struct {
	Time           time.Time `json:"time"`
	Clip           string    `json:"clip"`
	SessionID      uint      `json:"sessionId"`
	FramesScaled   int       `json:"framesScaled"`
	PendingRecords int       `json:"pendingRecords"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Record == nil {
		deps.Record = &core.Session{}
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current progress.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:         time.Now(),
		Clip:         s.deps.Record.ClipName,
		SessionID:    s.deps.Record.ID,
		FramesScaled: s.deps.Progress.Frames(),
	}
	if p, ok := s.deps.Backend.(PendingReporter); ok {
		st.PendingRecords = p.Pending()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	stop, done := make(chan struct{}), make(chan struct{})
	s.stopChan, s.done = stop, done
	s.mu.Unlock()

	go s.run(stop, done)
}

// Stop stops the status monitor and writes a final status.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	logger := s.deps.LogManager.Logger()
	logger.Debug("Starting status monitor goroutine", "function", "monitor.run")

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	last := s.GetStatus()
	for {
		select {
		case <-stop:
			s.report(s.GetStatus(), &last)
			return
		case <-ticker.C:
			s.report(s.GetStatus(), &last)
		}
	}
}

func (s *Service) report(st Status, last *Status) {
	logger := s.deps.LogManager.Logger()

	if s.deps.StatusPath != "" {
		if err := writeStatus(s.deps.StatusPath, st); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil {
		frames := st.FramesScaled - last.FramesScaled
		p := influx.PerformancePoint(st.Clip, frames, st.Time.Sub(last.Time), st.Time)
		p.AddField("pending_records", st.PendingRecords)
		if err := s.deps.Influx.WritePoint(context.Background(), influx.PerformanceBucket, p); err != nil {
			logger.Error("Error writing status to InfluxDB", "error", err)
		}
	}

	logger.Debug("Status", "frames", st.FramesScaled, "pending", st.PendingRecords)
	*last = st
}

func writeStatus(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
