package model

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/skelscale/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// PoseJSON is the stored form of a pose: position and [w, x, y, z].
type PoseJSON struct {
	P [3]float64 `json:"p"`
	Q [4]float64 `json:"q"`
}

// FrameToJSON flattens a frame for storage and export.
func FrameToJSON(f core.Frame) map[string]PoseJSON {
	out := make(map[string]PoseJSON, len(f))
	for bone, pose := range f {
		q := pose.Orientation
		out[bone] = PoseJSON{
			P: [3]float64(pose.Position),
			Q: [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
		}
	}
	return out
}

// SessionToModel converts a core session; bone rows are built by BonesToModel.
func SessionToModel(s *core.Session) (Session, error) {
	table, err := json.Marshal(s.Scales)
	if err != nil {
		return Session{}, fmt.Errorf("encode scale table: %w", err)
	}
	return Session{
		ClipName:    s.ClipName,
		FPS:         s.FPS,
		HumanHeight: s.HumanHeight,
		StartTime:   s.StartTime,
		ScaleTable:  datatypes.JSON(table),
	}, nil
}

// BonesToModel converts the session skeleton, keeping its order.
func BonesToModel(sessionID uint, s *core.Session) []Bone {
	out := make([]Bone, len(s.Bones))
	for i, b := range s.Bones {
		scale := 1.0
		if v, ok := s.Scales[b.Name]; ok {
			scale = v
		}
		out[i] = Bone{
			SessionID: sessionID,
			Name:      b.Name,
			Parent:    b.Parent,
			Ordinal:   i,
			OffsetX:   b.Offset[0],
			OffsetY:   b.Offset[1],
			OffsetZ:   b.Offset[2],
			Scale:     scale,
		}
	}
	return out
}

// FrameRecordToModel converts one recorded frame. root names the bone whose
// raw position goes into RootPosition.
func FrameRecordToModel(r *core.FrameRecord, root string) (FrameRecord, error) {
	raw, err := json.Marshal(FrameToJSON(r.Raw))
	if err != nil {
		return FrameRecord{}, fmt.Errorf("encode raw frame %d: %w", r.Index, err)
	}
	scaled, err := json.Marshal(FrameToJSON(r.Scaled))
	if err != nil {
		return FrameRecord{}, fmt.Errorf("encode scaled frame %d: %w", r.Index, err)
	}

	rootPos := geom.NewEmptyPoint(geom.DimXYZ)
	if pose, ok := r.Raw[root]; ok {
		rootPos = geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: pose.Position[0], Y: pose.Position[1]},
			Z:    pose.Position[2],
			Type: geom.DimXYZ,
		})
	}

	return FrameRecord{
		Time:         r.Time,
		SessionID:    r.SessionID,
		FrameIndex:   r.Index,
		RootPosition: rootPos,
		Raw:          datatypes.JSON(raw),
		Scaled:       datatypes.JSON(scaled),
	}, nil
}
