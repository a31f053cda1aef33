package scaling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/OCAP2/skelscale/internal/scaletable"
	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) (*skeleton.Hierarchy, core.Frame) {
	t.Helper()
	h, err := skeleton.New([]core.BoneDef{
		{Name: "Hips"},
		{Name: "Arm", Parent: "Hips"},
		{Name: "ForeArm", Parent: "Arm"},
		{Name: "Hand", Parent: "ForeArm"},
	})
	require.NoError(t, err)

	q := mgl64.QuatRotate(0.3, mgl64.Vec3{0, 1, 0})
	frame := core.Frame{
		"Hips":    {Position: mgl64.Vec3{0, 0, 0}, Orientation: mgl64.QuatIdent()},
		"Arm":     {Position: mgl64.Vec3{0, 0, 1}, Orientation: q},
		"ForeArm": {Position: mgl64.Vec3{0, 0, 2}, Orientation: q},
		"Hand":    {Position: mgl64.Vec3{0, 0, 3}, Orientation: mgl64.QuatIdent()},
	}
	return h, frame
}

// randomRig builds a random tree of n bones with random poses.
func randomRig(t *testing.T, rng *rand.Rand, n int) (*skeleton.Hierarchy, core.Frame) {
	t.Helper()
	defs := make([]core.BoneDef, n)
	frame := make(core.Frame, n)
	for i := range defs {
		name := fmt.Sprintf("bone%02d", i)
		defs[i].Name = name
		if i > 0 {
			defs[i].Parent = fmt.Sprintf("bone%02d", rng.Intn(i))
		}
		axis := mgl64.Vec3{rng.Float64() - 0.5, rng.Float64() - 0.5, rng.Float64() + 0.1}.Normalize()
		frame[name] = core.Pose{
			Position:    mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()},
			Orientation: mgl64.QuatRotate(rng.Float64()*math.Pi, axis),
		}
	}
	h, err := skeleton.New(defs)
	require.NoError(t, err)
	return h, frame
}

func randomTable(rng *rand.Rand, h *skeleton.Hierarchy) scaletable.Snapshot {
	entries := map[string]float64{}
	for _, name := range h.Order() {
		entries[name] = 0.5 + rng.Float64()
	}
	return scaletable.New(entries).Snapshot()
}

func TestScale_FourBoneChain(t *testing.T) {
	h, frame := chain(t)
	table := scaletable.New(map[string]float64{"Arm": 0.5})

	scaled, err := Scale(h, table, frame)
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{0, 0, 0}, scaled["Hips"].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 0.5}, scaled["Arm"].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 1.5}, scaled["ForeArm"].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 2.5}, scaled["Hand"].Position)
}

func TestScale_DoesNotMutateInput(t *testing.T) {
	h, frame := chain(t)
	before := frame.Clone()

	_, err := Scale(h, scaletable.New(map[string]float64{"Arm": 0.5}), frame)
	require.NoError(t, err)
	assert.Equal(t, before, frame)
}

func TestScale_RootInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		h, frame := randomRig(t, rng, 12)
		table := randomTable(rng, h).With(h.Root(), 3.7)

		scaled, err := Scale(h, table, frame)
		require.NoError(t, err)
		assert.Equal(t, frame[h.Root()].Position, scaled[h.Root()].Position)
	}
}

func TestScale_LocalityAndPropagation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 10; iter++ {
		h, frame := randomRig(t, rng, 15)
		base := randomTable(rng, h)

		before, err := Scale(h, base, frame)
		require.NoError(t, err)

		for _, edited := range h.Order() {
			if edited == h.Root() {
				continue
			}
			after, err := Scale(h, base.With(edited, base.Get(edited)+0.25), frame)
			require.NoError(t, err)

			for _, name := range h.Order() {
				inSubtree := name == edited || h.IsDescendant(name, edited)
				if inSubtree {
					assert.NotEqual(t, before[name].Position, after[name].Position,
						"editing %s should move %s", edited, name)
				} else {
					assert.Equal(t, before[name].Position, after[name].Position,
						"editing %s must not move %s", edited, name)
				}
			}
		}
	}
}

func TestScale_IdentityLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h, frame := randomRig(t, rng, 20)

	scaled, err := Scale(h, scaletable.New(nil), frame)
	require.NoError(t, err)

	for name, pose := range frame {
		got := scaled[name].Position
		for k := 0; k < 3; k++ {
			assert.InDelta(t, pose.Position[k], got[k], 1e-9, "bone %s", name)
		}
	}
}

func TestScale_OrientationPassThrough(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	h, frame := randomRig(t, rng, 10)

	scaled, err := Scale(h, randomTable(rng, h), frame)
	require.NoError(t, err)

	for name, pose := range frame {
		assert.Equal(t, pose.Orientation, scaled[name].Orientation, "bone %s", name)
	}
}

func TestScale_ZeroCollapsesOntoParent(t *testing.T) {
	h, frame := chain(t)

	scaled, err := Scale(h, scaletable.New(map[string]float64{"ForeArm": 0}), frame)
	require.NoError(t, err)

	assert.Equal(t, scaled["Arm"].Position, scaled["ForeArm"].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 2}, scaled["Hand"].Position)
}

func TestScale_NegativeMirrorsSegment(t *testing.T) {
	h, frame := chain(t)

	scaled, err := Scale(h, scaletable.New(map[string]float64{"Hand": -1}), frame)
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{0, 0, 1}, scaled["Hand"].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 2}, scaled["ForeArm"].Position)
}

func TestScale_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	h, frame := randomRig(t, rng, 25)
	table := randomTable(rng, h)

	a, err := Scale(h, table, frame)
	require.NoError(t, err)
	b, err := Scale(h, table, frame)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScale_IgnoresUnknownTableEntries(t *testing.T) {
	h, frame := chain(t)

	plain, err := Scale(h, scaletable.New(nil), frame)
	require.NoError(t, err)
	extra, err := Scale(h, scaletable.New(map[string]float64{"Tail": 0.1}), frame)
	require.NoError(t, err)
	assert.Equal(t, plain, extra)
}

func TestScale_UnknownFrameBone(t *testing.T) {
	h, frame := chain(t)
	frame["Tail"] = core.Pose{Orientation: mgl64.QuatIdent()}

	_, err := Scale(h, scaletable.New(nil), frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, skeleton.ErrConfiguration))

	var cfgErr *skeleton.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Tail", cfgErr.Bone)
	assert.Equal(t, skeleton.ViolationUnknownBone, cfgErr.Violation)
}

func TestScale_MissingLeafIsOmitted(t *testing.T) {
	h, frame := chain(t)
	delete(frame, "Hand")

	scaled, err := Scale(h, scaletable.New(nil), frame)
	require.NoError(t, err)
	assert.Len(t, scaled, 3)
	_, ok := scaled["Hand"]
	assert.False(t, ok)
}

func TestScale_MissingParentPose(t *testing.T) {
	h, frame := chain(t)
	delete(frame, "Arm")

	_, err := Scale(h, scaletable.New(nil), frame)
	var cfgErr *skeleton.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ForeArm", cfgErr.Bone)
	assert.Equal(t, skeleton.ViolationMissingParentPose, cfgErr.Violation)
	assert.Contains(t, err.Error(), `"Arm"`)
}

func TestScaleSequence_MatchesSequentialAndKeepsOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	h, _ := randomRig(t, rng, 10)
	table := randomTable(rng, h)

	frames := make([]core.Frame, 64)
	for i := range frames {
		_, f := randomRig(t, rand.New(rand.NewSource(int64(100+i))), 10)
		frames[i] = f
	}

	got, err := ScaleSequence(context.Background(), h, table, frames, 4)
	require.NoError(t, err)
	require.Len(t, got, len(frames))

	for i, f := range frames {
		want, err := Scale(h, table, f)
		require.NoError(t, err)
		assert.Equal(t, want, got[i], "frame %d", i)
	}
}

func TestScaleSequence_ReportsFailingFrame(t *testing.T) {
	h, frame := chain(t)
	bad := frame.Clone()
	bad["Tail"] = core.Pose{}

	frames := []core.Frame{frame, frame, bad, frame}
	_, err := ScaleSequence(context.Background(), h, scaletable.New(nil), frames, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2")
	assert.True(t, errors.Is(err, skeleton.ErrConfiguration))
}

func TestScaleSequence_Cancelled(t *testing.T) {
	h, frame := chain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ScaleSequence(ctx, h, scaletable.New(nil), []core.Frame{frame, frame}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScaleSequence_Empty(t *testing.T) {
	h, _ := chain(t)
	got, err := ScaleSequence(context.Background(), h, scaletable.New(nil), nil, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}
