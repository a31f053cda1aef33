// pkg/core/skeleton.go
package core

import "github.com/go-gl/mathgl/mgl64"

// BoneDef declares one bone of a source skeleton.
// An empty Parent marks the root.
type BoneDef struct {
	Name   string
	Parent string
	Offset mgl64.Vec3 // rest-pose translation from the parent
}

// Clip is a loaded motion sequence with the skeleton it was captured on.
type Clip struct {
	Name        string
	FPS         float64
	HumanHeight float64 // estimated subject height in meters
	Skeleton    []BoneDef
	Frames      []Frame
}
