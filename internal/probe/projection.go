package probe

import (
	"slices"

	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// View is a 2D projection of 3D joint positions onto two axes.
type View struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// Standard views.
var (
	Front = View{Name: "front", Title: "Front View (X-Z)", X: 0, Y: 2}
	Side  = View{Name: "side", Title: "Side View (Y-Z)", X: 1, Y: 2}
	Top   = View{Name: "top", Title: "Top View (X-Y)", X: 0, Y: 1}
)

// Views returns the three standard views in display order.
func Views() []View {
	return []View{Front, Side, Top}
}

// Projection is one labelled point series projected onto a view.
type Projection struct {
	View   string                `json:"view"`
	Label  string                `json:"label"`
	Points map[string][2]float64 `json:"points"`
	Min    [2]float64            `json:"min"`
	Max    [2]float64            `json:"max"`
	// WKT is the MULTIPOINT of every projected joint, sorted by name.
	WKT string `json:"wkt"`
	// Segments is the MULTILINESTRING of parent-child segments, when the
	// series belongs to the hierarchy.
	Segments string `json:"segments,omitempty"`
}

func (v View) point(p mgl64.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p[v.X], Y: p[v.Y]},
		Type: geom.DimXY,
	})
}

// Project flattens points onto view.
func Project(view View, label string, points map[string]mgl64.Vec3) Projection {
	names := make([]string, 0, len(points))
	for name := range points {
		names = append(names, name)
	}
	slices.Sort(names)

	p := Projection{
		View:   view.Name,
		Label:  label,
		Points: make(map[string][2]float64, len(points)),
	}
	pts := make([]geom.Point, 0, len(names))
	for _, name := range names {
		pos := points[name]
		p.Points[name] = [2]float64{pos[view.X], pos[view.Y]}
		pts = append(pts, view.point(pos))
	}

	mp := geom.NewMultiPoint(pts)
	if lo, hi, ok := mp.Envelope().MinMaxXYs(); ok {
		p.Min = [2]float64{lo.X, lo.Y}
		p.Max = [2]float64{hi.X, hi.Y}
	}
	p.WKT = mp.AsText()
	return p
}

// Segments builds the bone segments of points on view. Bones whose parent
// has no position are skipped.
func Segments(h *skeleton.Hierarchy, view View, points map[string]mgl64.Vec3) geom.MultiLineString {
	var lines []geom.LineString
	for _, name := range h.Order() {
		parent, ok := h.Parent(name)
		if !ok {
			continue
		}
		a, okA := points[parent]
		b, okB := points[name]
		if !okA || !okB {
			continue
		}
		seq := geom.NewSequence([]float64{a[view.X], a[view.Y], b[view.X], b[view.Y]}, geom.DimXY)
		lines = append(lines, geom.NewLineString(seq))
	}
	return geom.NewMultiLineString(lines)
}

// Compare projects the raw, scaled and robot series onto every view. The
// robot series is optional; its positions come from the external simulator
// keyed by body name.
func Compare(h *skeleton.Hierarchy, raw, scaled, robot map[string]mgl64.Vec3) []Projection {
	var out []Projection
	for _, view := range Views() {
		r := Project(view, "raw", raw)
		r.Segments = Segments(h, view, raw).AsText()
		s := Project(view, "scaled", scaled)
		s.Segments = Segments(h, view, scaled).AsText()
		out = append(out, r, s)
		if len(robot) > 0 {
			out = append(out, Project(view, "robot", robot))
		}
	}
	return out
}
