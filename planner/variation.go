package planner

import "reelforge/types"

// jitterPerMille bounds the duration jitter applied to variations (±8%).
const jitterPerMille = 80

// Vary derives the scene list for one variation of base. Variation 0 is
// base itself. Other variations rotate the middle scenes, jitter scene
// durations and rotate motion styles, all keyed by seed so that re-running
// a batch yields the same plans. The total duration never changes.
func Vary(base types.SceneList, variation int, seed int64) types.SceneList {
	out := base.Clone()
	if variation <= 0 || len(out) == 0 {
		return out
	}

	total := base.TotalMs()

	if len(out) > 3 {
		middle := out[1 : len(out)-1]
		rotateScenes(middle, variation%len(middle))
	}

	weights := make([]int64, len(out))
	for i, s := range out {
		j := int64(pick(2*jitterPerMille+1, seed, saltJitter, variation, i)) - jitterPerMille
		weights[i] = s.DurationMs() * (1000 + j)
	}
	durations := distribute(total, weights)

	for i := range out {
		styles := MotionStyles(out[i].Type)
		cur := indexOf(styles, out[i].MotionStyle)
		shift := 1 + pick(len(styles), int64(variation), saltRotation, i)
		out[i].MotionStyle = styles[(cur+shift)%len(styles)]
		out[i].EndMs = durations[i]
		// Transitions belong to positions, not scenes.
		out[i].TransitionIntoNext = base[i].TransitionIntoNext
	}
	retime(out)
	return out
}

func rotateScenes(s []types.Scene, k int) {
	if k == 0 {
		return
	}
	tmp := append([]types.Scene(nil), s...)
	for i := range s {
		s[i] = tmp[(i+k)%len(tmp)]
	}
}

// distribute splits total proportionally to weights. Milliseconds lost to
// integer division are handed out left to right.
func distribute(total int64, weights []int64) []int64 {
	out := make([]int64, len(weights))
	var sum int64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return allocate(total, len(weights))
	}
	var assigned int64
	for i, w := range weights {
		out[i] = total * w / sum
		assigned += out[i]
	}
	for i := 0; assigned < total; i = (i + 1) % len(out) {
		out[i]++
		assigned++
	}
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return 0
}
