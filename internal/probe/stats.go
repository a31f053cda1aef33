package probe

import (
	"fmt"

	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
	"gonum.org/v1/gonum/stat"
)

// degenerate is the raw segment length below which no ratio is taken.
const degenerate = 1e-9

// SegmentStat summarises one bone's segment over a clip.
type SegmentStat struct {
	Samples    int     `json:"samples"`
	RawMean    float64 `json:"rawMean"`
	RawStd     float64 `json:"rawStd"`
	ScaledMean float64 `json:"scaledMean"`
	ScaledStd  float64 `json:"scaledStd"`
	// Ratio stats skip frames where the raw segment is degenerate.
	RatioSamples int     `json:"ratioSamples"`
	RatioMean    float64 `json:"ratioMean"`
	RatioStd     float64 `json:"ratioStd"`
}

// SegmentStats measures the parent-to-bone segment length of every non-root
// bone in raw and scaled frames. For a fixed table the ratio mean equals the
// absolute scale factor.
func SegmentStats(h *skeleton.Hierarchy, raw, scaled []core.Frame) (map[string]SegmentStat, error) {
	if len(raw) != len(scaled) {
		return nil, fmt.Errorf("frame count mismatch: %d raw, %d scaled", len(raw), len(scaled))
	}

	out := make(map[string]SegmentStat)
	for _, name := range h.Order() {
		parent, ok := h.Parent(name)
		if !ok {
			continue
		}

		var rawLen, scaledLen, ratio []float64
		for i := range raw {
			rl, ok1 := segment(raw[i], parent, name)
			sl, ok2 := segment(scaled[i], parent, name)
			if !ok1 || !ok2 {
				continue
			}
			rawLen = append(rawLen, rl)
			scaledLen = append(scaledLen, sl)
			if rl > degenerate {
				ratio = append(ratio, sl/rl)
			}
		}
		if len(rawLen) == 0 {
			continue
		}

		var s SegmentStat
		s.Samples = len(rawLen)
		s.RawMean, s.RawStd = meanStd(rawLen)
		s.ScaledMean, s.ScaledStd = meanStd(scaledLen)
		s.RatioSamples = len(ratio)
		if len(ratio) > 0 {
			s.RatioMean, s.RatioStd = meanStd(ratio)
		}
		out[name] = s
	}
	return out, nil
}

func segment(f core.Frame, parent, bone string) (float64, bool) {
	p, ok := f[parent]
	if !ok {
		return 0, false
	}
	b, ok := f[bone]
	if !ok {
		return 0, false
	}
	return b.Position.Sub(p.Position).Len(), true
}

// meanStd is stat.MeanStdDev with a zero deviation for single samples.
func meanStd(x []float64) (float64, float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
