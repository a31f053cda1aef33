package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/OCAP2/skelscale/internal/dispatcher"
	"github.com/OCAP2/skelscale/internal/influx"
	"github.com/OCAP2/skelscale/pkg/core"

	"go.opentelemetry.io/otel/metric"
)

// Commands understood by the handlers.
const (
	CmdFrame    = ":FRAME:"
	CmdRecord   = ":RECORD:"
	CmdScaleSet = ":SCALE:SET:"
	CmdScaleGet = ":SCALE:GET:"
)

// RecordBufferSize bounds the queue in front of the storage backend.
const RecordBufferSize = 10000

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.dispatcher = d

	// Scaling is sync so callers get the scaled frame back
	d.Register(CmdFrame, m.handleFrame, dispatcher.Logged())

	// Persistence - buffered, never drops frames
	d.Register(CmdRecord, m.handleRecord, dispatcher.Buffered(RecordBufferSize), dispatcher.Blocking())

	// Table edits - sync
	d.Register(CmdScaleSet, m.handleScaleSet, dispatcher.Logged())
	d.Register(CmdScaleGet, m.handleScaleGet)
}

func (m *Manager) handleFrame(e dispatcher.Event) (any, error) {
	frame, ok := e.Payload.(core.Frame)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects core.Frame, got %T", ErrInvalidPayload, e.Command, e.Payload)
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(m.clipAttr)

	start := time.Now()
	scaled, err := m.deps.Session.Update(frame)
	if err != nil {
		m.failed.Add(ctx, 1, attrs)
		return nil, fmt.Errorf("failed to scale frame: %w", err)
	}
	m.duration.Record(ctx, ms(time.Since(start)), attrs)
	m.scaled.Add(ctx, 1, attrs)

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r := &core.FrameRecord{
		SessionID: m.deps.Record.ID,
		Index:     int(m.next.Add(1) - 1),
		Time:      ts,
		Raw:       frame.Clone(),
		Scaled:    scaled.Clone(),
	}
	if err := m.record(r); err != nil {
		return scaled, fmt.Errorf("failed to queue frame record: %w", err)
	}

	return scaled, nil
}

func (m *Manager) handleRecord(e dispatcher.Event) (any, error) {
	r, ok := e.Payload.(*core.FrameRecord)
	if !ok || r == nil {
		return nil, fmt.Errorf("%w: %s expects *core.FrameRecord, got %T", ErrInvalidPayload, e.Command, e.Payload)
	}

	if err := m.deps.Backend.RecordFrame(r); err != nil {
		return nil, fmt.Errorf("failed to record frame %d: %w", r.Index, err)
	}

	if m.deps.Influx != nil {
		points := influx.SegmentPoints(m.deps.Record.ClipName, r.Index, m.deps.Session.Hierarchy(), r.Raw, r.Scaled, r.Time)
		for _, p := range points {
			if err := m.deps.Influx.WritePoint(context.Background(), influx.SegmentBucket, p); err != nil {
				return nil, fmt.Errorf("failed to write segment metrics: %w", err)
			}
		}
	}

	return nil, nil
}

func (m *Manager) handleScaleSet(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("%s expects [bone, value], got %d args", e.Command, len(e.Args))
	}
	bone := e.Args[0]
	value, err := strconv.ParseFloat(e.Args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scale for %s: %w", bone, err)
	}

	if !m.deps.Session.Hierarchy().Contains(bone) {
		m.deps.LogManager.WriteLog("worker:ScaleSet",
			fmt.Sprintf("Bone %q is not in the hierarchy; entry will be ignored", bone), "WARN")
	}
	m.deps.Session.Table().Set(bone, value)
	return value, nil
}

func (m *Manager) handleScaleGet(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%s expects [bone], got %d args", e.Command, len(e.Args))
	}
	return m.deps.Session.Table().Get(e.Args[0]), nil
}
