package mesh

import (
	gomath "math"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

/** @brief Ticks per second used when an animation does not specify one. */
const DefaultTicksPerSecond = 25.0

// Sampler evaluates the skeletal animations of an imported scene. It only
// reads the scene and the bone table, so one sampler can serve concurrent
// callers.
type Sampler struct {
	scene         *scene.Scene
	bones         *BoneTable
	globalInverse math.Mat4
}

func NewSampler(s *scene.Scene, bones *BoneTable) *Sampler {
	sm := &Sampler{
		scene:         s,
		bones:         bones,
		globalInverse: math.NewMat4Identity(),
	}
	if s != nil && s.RootNode != nil {
		sm.globalInverse = s.RootNode.Transform.Inverse()
	}
	return sm
}

func (sm *Sampler) AnimationCount() int {
	if sm == nil || sm.scene == nil {
		return 0
	}
	return len(sm.scene.Animations)
}

// AnimationTime converts seconds into ticks wrapped into the animation's
// duration, so every time maps onto the loop.
func AnimationTime(anim *scene.Animation, seconds float64) float64 {
	ticksPerSecond := anim.TicksPerSecond
	if ticksPerSecond == 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	if anim.Duration <= 0 {
		return 0
	}
	t := gomath.Mod(seconds*ticksPerSecond, anim.Duration)
	if t < 0 {
		t += anim.Duration
	}
	return t
}

// Sample evaluates animation animationIndex at the given time and writes
// one skinning matrix per bone into out, at the bone's index. It returns
// the highest bone index written plus one. Slots of bones not reached by
// the walk are left untouched.
func (sm *Sampler) Sample(animationIndex int, seconds float64, out []math.Mat4) (uint32, error) {
	if sm.AnimationCount() == 0 {
		return 0, core.ErrNotAnimated
	}
	if animationIndex < 0 || animationIndex >= len(sm.scene.Animations) {
		return 0, errors.Wrapf(core.ErrAnimationIndex, "index %d, have %d", animationIndex, len(sm.scene.Animations))
	}
	if len(out) < sm.bones.Len() {
		return 0, errors.Errorf("output holds %d transforms, need %d", len(out), sm.bones.Len())
	}

	anim := sm.scene.Animations[animationIndex]
	t := AnimationTime(anim, seconds)
	return sm.readNodeHierarchy(anim, t, sm.scene.RootNode, math.NewMat4Identity(), out), nil
}

func (sm *Sampler) readNodeHierarchy(anim *scene.Animation, t float64, node *scene.Node, parent math.Mat4, out []math.Mat4) uint32 {
	if node == nil {
		return 0
	}

	count := uint32(0)
	local := node.Transform
	if channel := anim.FindChannel(node.Name); channel != nil {
		local = samplePose(t, channel).Matrix()
	}

	global := parent.Mul(local)

	if idx, ok := sm.bones.Lookup(node.Name); ok {
		count = idx + 1
		out[idx] = sm.globalInverse.Mul(global).Mul(sm.bones.Offset(idx))
	}

	for _, child := range node.Children {
		if c := sm.readNodeHierarchy(anim, t, child, global, out); c > count {
			count = c
		}
	}
	return count
}

// samplePose interpolates every key list of channel at tick t. Empty lists
// keep the rest pose value.
func samplePose(t float64, channel *scene.NodeAnim) math.Transform {
	pose := math.NewTransform()
	pose.Position = interpolateVector(t, channel.PositionKeys, pose.Position)
	pose.Rotation = interpolateRotation(t, channel.RotationKeys)
	pose.Scale = interpolateVector(t, channel.ScalingKeys, pose.Scale)
	return pose
}

// findKey returns the first i with t < keys[i+1], or 0 when there is none.
func findKey(t float64, count int, timeAt func(int) float64) int {
	for i := 0; i < count-1; i++ {
		if t < timeAt(i+1) {
			return i
		}
	}
	return 0
}

func keyFactor(t, start, end float64) float32 {
	delta := end - start
	if delta <= 0 {
		return 0
	}
	return float32((t - start) / delta)
}

func interpolateVector(t float64, keys []scene.VectorKey, fallback math.Vec3) math.Vec3 {
	switch len(keys) {
	case 0:
		return fallback
	case 1:
		return keys[0].Value
	}

	i := findKey(t, len(keys), func(k int) float64 { return keys[k].Time })
	factor := keyFactor(t, keys[i].Time, keys[i+1].Time)
	return keys[i].Value.Lerp(keys[i+1].Value, factor)
}

func interpolateRotation(t float64, keys []scene.QuatKey) math.Quaternion {
	switch len(keys) {
	case 0:
		return math.NewQuatIdentity()
	case 1:
		return keys[0].Value
	}

	i := findKey(t, len(keys), func(k int) float64 { return keys[k].Time })
	factor := keyFactor(t, keys[i].Time, keys[i+1].Time)
	return keys[i].Value.Slerp(keys[i+1].Value, factor).Normalize()
}
