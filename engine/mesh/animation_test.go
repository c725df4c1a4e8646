package mesh

import (
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(t *testing.T, s *scene.Scene, bones *BoneTable, seconds float64) ([]math.Mat4, uint32) {
	t.Helper()
	out := make([]math.Mat4, bones.Len())
	for i := range out {
		out[i] = math.NewMat4Identity()
	}
	n, err := NewSampler(s, bones).Sample(0, seconds, out)
	require.NoError(t, err)
	return out, n
}

func TestAnimationTime(t *testing.T) {
	anim := &scene.Animation{Duration: 4, TicksPerSecond: 1}
	tests := []struct {
		seconds float64
		want    float64
	}{
		{0, 0},
		{1.25, 1.25},
		{5.25, 1.25},
		{41.25, 1.25},
		{-2.75, 1.25},
		{4, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, AnimationTime(anim, tt.seconds), 1e-9, "seconds %v", tt.seconds)
	}

	// Zero ticks per second falls back to the default rate.
	assert.InDelta(t, 2.5, AnimationTime(&scene.Animation{Duration: 100}, 0.1), 1e-9)
	assert.Equal(t, 0.0, AnimationTime(&scene.Animation{Duration: 0, TicksPerSecond: 1}, 3))
}

func TestSampleIsCyclic(t *testing.T) {
	s := animatedScene()
	ex := Extract(s)

	want := math.NewMat4Translation(math.NewVec3(1.25, 0, 0))
	for _, seconds := range []float64{1.25, 5.25, 9.25, 401.25} {
		out, n := sampleAt(t, s, ex.Bones, seconds)
		require.Equal(t, uint32(2), n)
		assert.True(t, out[0].Compare(want, 1e-4), "hip at %vs: %v", seconds, out[0])
		// The knee has no channel and follows its parent.
		assert.True(t, out[1].Compare(want, 1e-4), "knee at %vs: %v", seconds, out[1])
	}
}

func TestSampleSingleKey(t *testing.T) {
	s := animatedScene()
	s.Animations[0].Channels[0].PositionKeys = []scene.VectorKey{{Time: 2, Value: math.NewVec3(2, 3, 4)}}
	quarter := math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), math.K_HALF_PI, true)
	s.Animations[0].Channels[0].RotationKeys = []scene.QuatKey{{Time: 0, Value: quarter}}
	ex := Extract(s)

	for _, seconds := range []float64{0, 1, 3.9} {
		out, _ := sampleAt(t, s, ex.Bones, seconds)
		// The offset moves down one unit before the rotation applies.
		assert.True(t, out[0].Translation().Compare(math.NewVec3(3, 3, 4), 1e-4), "at %vs: %v", seconds, out[0].Translation())
	}
}

func TestSampleChannelWithoutKeysIsIdentity(t *testing.T) {
	s := animatedScene()
	s.Animations[0].Channels[0].PositionKeys = nil
	ex := Extract(s)

	out, _ := sampleAt(t, s, ex.Bones, 1)
	// The channel replaces the rest transform, so the hip drops to the
	// origin and only the bind offset remains.
	assert.True(t, out[0].Compare(math.NewMat4Translation(math.NewVec3(0, -1, 0)), 1e-5))
}

func TestSampleRemovesRootTransform(t *testing.T) {
	s := animatedScene()
	s.RootNode.Transform = math.NewMat4Translation(math.NewVec3(0, 0, 10))
	s.Animations[0].Channels = nil
	ex := Extract(s)

	out, _ := sampleAt(t, s, ex.Bones, 0)
	assert.True(t, out[0].Compare(math.NewMat4Identity(), 1e-5), "%v", out[0])
}

func TestSampleLeavesUnreachedBones(t *testing.T) {
	s := animatedScene()
	bones := NewBoneTable()
	bones.Intern("hip", math.NewMat4Identity())
	bones.Intern("tail", math.NewMat4Identity())

	out := make([]math.Mat4, 2)
	out[1] = math.NewMat4Scale(math.NewVec3(2, 2, 2))
	n, err := NewSampler(s, bones).Sample(0, 0, out)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, math.NewMat4Scale(math.NewVec3(2, 2, 2)), out[1])
}

func TestSampleErrors(t *testing.T) {
	s := animatedScene()
	ex := Extract(s)
	out := make([]math.Mat4, ex.Bones.Len())

	_, err := NewSampler(s, ex.Bones).Sample(1, 0, out)
	assert.ErrorIs(t, err, core.ErrAnimationIndex)
	_, err = NewSampler(s, ex.Bones).Sample(-1, 0, out)
	assert.ErrorIs(t, err, core.ErrAnimationIndex)

	_, err = NewSampler(s, ex.Bones).Sample(0, 0, out[:1])
	assert.Error(t, err)

	s.Animations = nil
	_, err = NewSampler(s, ex.Bones).Sample(0, 0, out)
	assert.ErrorIs(t, err, core.ErrNotAnimated)
}

func TestInterpolateRotation(t *testing.T) {
	a := math.NewQuatIdentity()
	b := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), math.K_HALF_PI, true)
	keys := []scene.QuatKey{{Time: 0, Value: a}, {Time: 2, Value: b}}

	half := interpolateRotation(1, keys)
	want := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), math.K_HALF_PI/2, true)
	assert.True(t, half.Compare(want, 1e-4), "%v", half)

	// Past the last key the first pair is used.
	assert.True(t, interpolateRotation(5, keys).Compare(a.Slerp(b, 2.5).Normalize(), 1e-4))
	assert.Equal(t, math.NewQuatIdentity(), interpolateRotation(1, nil))
}

func TestFindKey(t *testing.T) {
	times := []float64{0, 1, 2, 4}
	at := func(i int) float64 { return times[i] }

	assert.Equal(t, 0, findKey(0.5, len(times), at))
	assert.Equal(t, 1, findKey(1, len(times), at))
	assert.Equal(t, 2, findKey(3.9, len(times), at))
	assert.Equal(t, 0, findKey(4, len(times), at))
	assert.Equal(t, float32(0), keyFactor(1, 2, 2))
}

func TestSamplePose(t *testing.T) {
	assert.Equal(t, math.NewTransform(), samplePose(3, &scene.NodeAnim{NodeName: "hip"}))

	channel := &scene.NodeAnim{
		NodeName: "hip",
		PositionKeys: []scene.VectorKey{
			{Time: 0, Value: math.NewVec3(0, 0, 0)},
			{Time: 2, Value: math.NewVec3(4, 0, 0)},
		},
		ScalingKeys: []scene.VectorKey{{Time: 0, Value: math.NewVec3(2, 2, 2)}},
	}
	pose := samplePose(1, channel)
	assert.Equal(t, math.NewVec3(2, 0, 0), pose.Position)
	assert.Equal(t, math.NewQuatIdentity(), pose.Rotation)
	assert.Equal(t, math.NewVec3(2, 2, 2), pose.Scale)

	p := math.NewVec3(1, 0, 0).Transform(pose.Matrix())
	assert.True(t, p.Compare(math.NewVec3(4, 0, 0), 1e-5), "%v", p)
}
