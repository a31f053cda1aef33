// Package motion reads converted mocap clips from disk.
//
// A clip file is JSON, optionally gzip compressed when its name ends in .gz:
//
//	{
//	  "name": "walk1_subject1",
//	  "fps": 30,
//	  "humanHeight": 1.75,
//	  "upAxis": "y",
//	  "unitScale": 0.01,
//	  "skeleton": [{"name": "Hips"}, {"name": "Spine", "parent": "Hips", "offset": [0, 10, 0]}],
//	  "frames": [{"Hips": {"position": [0, 90, 0], "orientation": [1, 0, 0, 0]}}]
//	}
//
// Orientations are [w, x, y, z]. Loaded clips are always Z-up, in meters.
package motion

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/OCAP2/skelscale/internal/probe"
	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidClip is wrapped by every decoding failure.
var ErrInvalidClip = errors.New("invalid clip")

// DefaultFPS is used when a clip does not state its frame rate.
const DefaultFPS = 30

type clipFile struct {
	Name        string                `json:"name"`
	FPS         float64               `json:"fps"`
	HumanHeight float64               `json:"humanHeight"`
	UpAxis      string                `json:"upAxis"`
	UnitScale   float64               `json:"unitScale"`
	Skeleton    []boneJSON            `json:"skeleton"`
	Frames      []map[string]poseJSON `json:"frames"`
}

type boneJSON struct {
	Name   string     `json:"name"`
	Parent string     `json:"parent,omitempty"`
	Offset [3]float64 `json:"offset"`
}

type poseJSON struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// Load reads a clip file.
func Load(path string) (*core.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidClip, path, err)
		}
		defer gz.Close()
		r = gz
	}

	clip, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// Decode reads one clip document from r.
func Decode(r io.Reader) (*core.Clip, error) {
	var doc clipFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}
	if len(doc.Skeleton) == 0 {
		return nil, fmt.Errorf("%w: no skeleton", ErrInvalidClip)
	}

	convert, err := axisConverter(doc.UpAxis)
	if err != nil {
		return nil, err
	}
	unit := doc.UnitScale
	if unit == 0 {
		unit = 1
	}
	if unit < 0 {
		return nil, fmt.Errorf("%w: unitScale %v", ErrInvalidClip, doc.UnitScale)
	}

	clip := &core.Clip{
		Name:        doc.Name,
		FPS:         doc.FPS,
		HumanHeight: doc.HumanHeight,
		Skeleton:    make([]core.BoneDef, len(doc.Skeleton)),
		Frames:      make([]core.Frame, len(doc.Frames)),
	}
	if clip.FPS <= 0 {
		clip.FPS = DefaultFPS
	}

	for i, b := range doc.Skeleton {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: skeleton entry %d has no name", ErrInvalidClip, i)
		}
		clip.Skeleton[i] = core.BoneDef{
			Name:   b.Name,
			Parent: b.Parent,
			Offset: convert.position(mgl64.Vec3(b.Offset).Mul(unit)),
		}
	}

	for i, f := range doc.Frames {
		frame := make(core.Frame, len(f))
		for bone, p := range f {
			if bone == "" {
				return nil, fmt.Errorf("%w: frame %d has a pose without a bone name", ErrInvalidClip, i)
			}
			frame[bone] = core.Pose{
				Position:    convert.position(mgl64.Vec3(p.Position).Mul(unit)),
				Orientation: convert.orientation(orientation(p.Orientation)),
			}
		}
		clip.Frames[i] = frame
	}

	if clip.HumanHeight <= 0 && len(clip.Frames) > 0 {
		clip.HumanHeight = EstimateHeight(clip.Frames[0])
	}
	return clip, nil
}

// EstimateHeight is the vertical extent of a Z-up frame.
func EstimateHeight(f core.Frame) float64 {
	if len(f) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range f {
		lo = math.Min(lo, p.Position.Z())
		hi = math.Max(hi, p.Position.Z())
	}
	return hi - lo
}

type converter struct {
	yUp bool
}

func axisConverter(axis string) (converter, error) {
	switch strings.ToLower(axis) {
	case "", "z":
		return converter{}, nil
	case "y":
		return converter{yUp: true}, nil
	default:
		return converter{}, fmt.Errorf("%w: unsupported upAxis %q", ErrInvalidClip, axis)
	}
}

func (c converter) position(v mgl64.Vec3) mgl64.Vec3 {
	if c.yUp {
		return probe.ToZUp(v)
	}
	return v
}

func (c converter) orientation(q mgl64.Quat) mgl64.Quat {
	if c.yUp {
		q = probe.YUpToZUpQuat.Mul(q)
	}
	return q.Normalize()
}

// orientation reads [w, x, y, z]; an all-zero entry means identity.
func orientation(wxyz [4]float64) mgl64.Quat {
	q := mgl64.Quat{W: wxyz[0], V: mgl64.Vec3{wxyz[1], wxyz[2], wxyz[3]}}
	if q.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return q
}
