package probe

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// YUpToZUp maps Y-up capture space to the Z-up space the robots use:
// (x, y, z) -> (x, -z, y).
var YUpToZUp = mgl64.Mat3FromRows(
	mgl64.Vec3{1, 0, 0},
	mgl64.Vec3{0, 0, -1},
	mgl64.Vec3{0, 1, 0},
)

// YUpToZUpQuat is the rotation YUpToZUp expressed as a quaternion.
var YUpToZUpQuat = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})

// ToZUp rotates a Y-up position into Z-up space.
func ToZUp(v mgl64.Vec3) mgl64.Vec3 {
	return YUpToZUp.Mul3x1(v)
}
