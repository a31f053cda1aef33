// Package worker connects the dispatcher to a scaling session: raw frames
// come in as events, scaled frames are recorded to storage and metrics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/OCAP2/skelscale/internal/dispatcher"
	"github.com/OCAP2/skelscale/internal/influx"
	"github.com/OCAP2/skelscale/internal/logging"
	"github.com/OCAP2/skelscale/internal/scaling"
	"github.com/OCAP2/skelscale/internal/session"
	"github.com/OCAP2/skelscale/internal/storage"
	"github.com/OCAP2/skelscale/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/skelscale/internal/worker"

// ErrInvalidPayload is returned when an event carries the wrong payload type.
var ErrInvalidPayload = errors.New("invalid event payload")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session *session.Session
	Backend storage.Backend
	// Record is the stored session; its ID and clip name tag every frame.
	Record *core.Session
	// Influx is optional.
	Influx     *influx.Manager
	LogManager *logging.SlogManager
}

// Manager manages worker goroutines
type Manager struct {
	deps       Dependencies
	dispatcher *dispatcher.Dispatcher

	next atomic.Int64

	scaled   metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
	clipAttr attribute.KeyValue
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Session == nil {
		return nil, errors.New("worker: session is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("worker: storage backend is required")
	}
	if deps.Record == nil {
		deps.Record = &core.Session{}
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}

	m := &Manager{
		deps:     deps,
		clipAttr: attribute.String("clip", deps.Record.ClipName),
	}

	meter := otel.Meter(instrumentationName)
	var err error

	m.scaled, err = meter.Int64Counter(
		"scaling.frames.scaled",
		metric.WithDescription("Frames scaled successfully"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scaled counter: %w", err)
	}

	m.failed, err = meter.Int64Counter(
		"scaling.frames.failed",
		metric.WithDescription("Frames rejected by the scaling engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"scaling.frame.duration",
		metric.WithDescription("Time to scale one frame"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return m, nil
}

// ScaleClip scales every frame of clip against a snapshot of the session
// table and records the results. It returns the number of frames recorded.
func (m *Manager) ScaleClip(ctx context.Context, clip *core.Clip, workers int) (int, error) {
	start := time.Now()
	scaled, err := scaling.ScaleSequence(ctx, m.deps.Session.Hierarchy(), m.deps.Session.Table().Snapshot(), clip.Frames, workers)
	if err != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(m.clipAttr))
		return 0, err
	}
	took := time.Since(start)
	m.scaled.Add(ctx, int64(len(scaled)), metric.WithAttributes(m.clipAttr))
	if len(scaled) > 0 {
		m.duration.Record(ctx, ms(took)/float64(len(scaled)), metric.WithAttributes(m.clipAttr))
	}

	m.deps.LogManager.WriteLog("worker:ScaleClip",
		fmt.Sprintf("Scaled %d frames in %s", len(scaled), took), "INFO")

	if m.deps.Influx != nil {
		p := influx.PerformancePoint(clip.Name, len(scaled), took, time.Now())
		if err := m.deps.Influx.WritePoint(ctx, influx.PerformanceBucket, p); err != nil {
			m.deps.LogManager.WriteLog("worker:ScaleClip", err.Error(), "WARN")
		}
	}

	for i, frame := range scaled {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		r := &core.FrameRecord{
			SessionID: m.deps.Record.ID,
			Index:     int(m.next.Add(1) - 1),
			Time:      m.frameTime(i),
			Raw:       clip.Frames[i],
			Scaled:    frame,
		}
		if err := m.record(r); err != nil {
			return i, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return len(scaled), nil
}

// Frames is the number of frames handed to storage so far.
func (m *Manager) Frames() int {
	return int(m.next.Load())
}

// Wait blocks until every queued record has been handled. It returns an
// error if any queued record failed to reach storage.
func (m *Manager) Wait() error {
	if m.dispatcher == nil {
		return nil
	}
	if err := m.dispatcher.Drain(); err != nil {
		return fmt.Errorf("recording frames: %w", err)
	}
	return nil
}

// record hands r to the :RECORD: handler, or stores it directly when no
// dispatcher is attached.
func (m *Manager) record(r *core.FrameRecord) error {
	if m.dispatcher == nil {
		_, err := m.handleRecord(dispatcher.Event{Command: CmdRecord, Payload: r})
		return err
	}
	_, err := m.dispatcher.Dispatch(dispatcher.Event{
		Command:   CmdRecord,
		Payload:   r,
		Timestamp: time.Now(),
	})
	return err
}

func (m *Manager) frameTime(i int) time.Time {
	rec := m.deps.Record
	if rec.StartTime.IsZero() || rec.FPS <= 0 {
		return time.Now()
	}
	return rec.StartTime.Add(time.Duration(float64(i) / rec.FPS * float64(time.Second)))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
