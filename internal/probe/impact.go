// Package probe holds diagnostics for checking what a scale table does to a
// skeleton: single-edit impact reports, 2D projections and segment
// statistics.
package probe

import (
	"math"
	"slices"

	"github.com/OCAP2/skelscale/internal/scaletable"
	"github.com/OCAP2/skelscale/internal/scaling"
	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Tolerance is the per-component distance above which a joint counts as moved.
const Tolerance = 1e-6

// Joint is the before/after position of one bone in an impact report.
type Joint struct {
	Bone      string     `json:"bone"`
	Before    mgl64.Vec3 `json:"before"`
	After     mgl64.Vec3 `json:"after"`
	Delta     mgl64.Vec3 `json:"delta"`
	Changed   bool       `json:"changed"`
	InSubtree bool       `json:"inSubtree"`
}

// Report describes the effect of overriding one bone's scale factor.
type Report struct {
	Bone     string  `json:"bone"`
	Previous float64 `json:"previous"`
	Value    float64 `json:"value"`
	// Ancestors runs from the root down to the edited bone's parent.
	Ancestors []string `json:"ancestors"`
	// Subtree is the edited bone followed by its descendants.
	Subtree []string `json:"subtree"`
	Joints  []Joint  `json:"joints"`
}

// Changed returns the joints that moved.
func (r *Report) Changed() []Joint {
	var out []Joint
	for _, j := range r.Joints {
		if j.Changed {
			out = append(out, j)
		}
	}
	return out
}

// Violations returns joints that moved outside the edited subtree. A correct
// scaling engine always yields none.
func (r *Report) Violations() []Joint {
	var out []Joint
	for _, j := range r.Joints {
		if j.Changed && !j.InSubtree {
			out = append(out, j)
		}
	}
	return out
}

type override struct {
	base  scaletable.Lookup
	bone  string
	value float64
}

func (o override) Get(bone string) float64 {
	if bone == o.bone {
		return o.value
	}
	return o.base.Get(bone)
}

// Impact scales frame with base and again with bone set to value, and reports
// which joints moved.
func Impact(h *skeleton.Hierarchy, base scaletable.Lookup, bone string, value float64, frame core.Frame) (*Report, error) {
	if !h.Contains(bone) {
		return nil, &skeleton.ConfigurationError{Bone: bone, Violation: skeleton.ViolationUnknownBone}
	}

	before, err := scaling.Scale(h, base, frame)
	if err != nil {
		return nil, err
	}
	after, err := scaling.Scale(h, override{base: base, bone: bone, value: value}, frame)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Bone:      bone,
		Previous:  base.Get(bone),
		Value:     value,
		Ancestors: ancestors(h, bone),
		Subtree:   append([]string{bone}, h.Descendants(bone)...),
	}
	for _, name := range h.Order() {
		b, ok := before[name]
		if !ok {
			continue
		}
		a := after[name]
		d := a.Position.Sub(b.Position)
		r.Joints = append(r.Joints, Joint{
			Bone:      name,
			Before:    b.Position,
			After:     a.Position,
			Delta:     d,
			Changed:   moved(d),
			InSubtree: name == bone || h.IsDescendant(name, bone),
		})
	}
	return r, nil
}

func moved(d mgl64.Vec3) bool {
	for _, c := range d {
		if math.Abs(c) > Tolerance {
			return true
		}
	}
	return false
}

func ancestors(h *skeleton.Hierarchy, bone string) []string {
	var out []string
	for p, ok := h.Parent(bone); ok; p, ok = h.Parent(p) {
		out = append(out, p)
	}
	slices.Reverse(out)
	return out
}
