package skeleton

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError through errors.Is.
var ErrConfiguration = errors.New("configuration error")

// Violation names the structural rule a skeleton or frame broke.
type Violation string

const (
	ViolationNoRoot            Violation = "no root bone"
	ViolationMultipleRoots     Violation = "duplicate root"
	ViolationDuplicateBone     Violation = "duplicate bone name"
	ViolationMissingParent     Violation = "missing parent"
	ViolationCycle             Violation = "cycle"
	ViolationUnknownBone       Violation = "bone not in hierarchy"
	ViolationMissingParentPose Violation = "parent pose missing from frame"
)

// ConfigurationError reports a malformed hierarchy or a frame that does not
// fit the hierarchy. It is fatal and never retried.
type ConfigurationError struct {
	Bone      string
	Violation Violation
	Detail    string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("skeleton: bone %q: %s", e.Bone, e.Violation)
	}
	return fmt.Sprintf("skeleton: bone %q: %s (%s)", e.Bone, e.Violation, e.Detail)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func newConfigError(bone string, v Violation, detail string) *ConfigurationError {
	return &ConfigurationError{Bone: bone, Violation: v, Detail: detail}
}
