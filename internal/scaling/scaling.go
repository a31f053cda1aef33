// Package scaling rescales skeleton segments frame by frame.
//
// For every non-root bone B with parent P the scaled position is
//
//	scaled(B) = scaled(P) + s(B) * (raw(B) - raw(P))
//
// with bones visited parents first, so a factor on B moves B and its whole
// subtree and nothing else. The root keeps its raw position and every
// orientation is copied unchanged.
package scaling

import (
	"context"
	"fmt"
	"runtime"

	"github.com/OCAP2/skelscale/internal/scaletable"
	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Scale returns the scaled copy of frame.
//
// Frame bones absent from the hierarchy, and present bones whose parent has no
// pose in the frame, yield a *skeleton.ConfigurationError. Hierarchy bones
// absent from the frame are left out of the result. Table entries for unknown
// bones are ignored.
func Scale(h *skeleton.Hierarchy, table scaletable.Lookup, frame core.Frame) (core.Frame, error) {
	for name := range frame {
		if !h.Contains(name) {
			return nil, &skeleton.ConfigurationError{
				Bone:      name,
				Violation: skeleton.ViolationUnknownBone,
			}
		}
	}

	scaled := make(core.Frame, len(frame))
	for _, name := range h.Order() {
		raw, ok := frame[name]
		if !ok {
			continue
		}

		parent, hasParent := h.Parent(name)
		if !hasParent {
			scaled[name] = raw
			continue
		}

		parentRaw, ok := frame[parent]
		if !ok {
			return nil, &skeleton.ConfigurationError{
				Bone:      name,
				Violation: skeleton.ViolationMissingParentPose,
				Detail:    fmt.Sprintf("parent %q", parent),
			}
		}

		d := raw.Position.Sub(parentRaw.Position)
		s := table.Get(name)
		scaled[name] = core.Pose{
			Position:    scaled[parent].Position.Add(d.Mul(s)),
			Orientation: raw.Orientation,
		}
	}
	return scaled, nil
}

// ScaleSequence scales independent frames in parallel and keeps their order.
//
// table must not change while the batch runs; pass a scaletable.Snapshot.
// workers <= 0 uses runtime.NumCPU. The first failure cancels the remaining
// frames.
func ScaleSequence(ctx context.Context, h *skeleton.Hierarchy, table scaletable.Lookup, frames []core.Frame, workers int) ([]core.Frame, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]core.Frame, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, frame := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scaled, err := Scale(h, table, frame)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			out[i] = scaled
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
