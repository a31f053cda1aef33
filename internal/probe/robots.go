package probe

import "slices"

// SupportedRobots lists the robot models the external retargeter accepts for
// mocap input. The models themselves are not part of this module.
var SupportedRobots = []string{
	"unitree_g1",
	"unitree_g1_with_hands",
	"booster_t1_29dof",
	"fourier_n1",
	"stanford_toddy",
	"engineai_pm01",
}

// DefaultRobot is the robot used when none is named.
const DefaultRobot = "unitree_g1"

// IsSupportedRobot reports whether name is in SupportedRobots.
func IsSupportedRobot(name string) bool {
	return slices.Contains(SupportedRobots, name)
}
