// pkg/core/frame.go
package core

import "github.com/go-gl/mathgl/mgl64"

// Pose is the global state of one bone at one instant.
// Position is in meters, Orientation is a unit quaternion.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Frame maps bone names to their global pose for a single instant.
// Scaled frames share this shape; only positions differ from the source.
type Frame map[string]Pose

// Clone returns an independent copy of the frame.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	for name, pose := range f {
		out[name] = pose
	}
	return out
}

// Positions returns the bone positions of the frame.
func (f Frame) Positions() map[string]mgl64.Vec3 {
	out := make(map[string]mgl64.Vec3, len(f))
	for name, pose := range f {
		out[name] = pose.Position
	}
	return out
}
