package planner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"reelforge/types"
)

const (
	// MinDurationMs is the shortest video a brief may request.
	MinDurationMs = 1000

	openingSharePct = 10
	closingSharePct = 15

	defaultOptimizerTimeout = 20 * time.Second
)

// NarrativeOptimizer proposes a better scene order for a brief. It returns a
// permutation of skeleton indices; a nil order keeps the local plan.
type NarrativeOptimizer interface {
	Reorder(ctx context.Context, brief types.Brief, skeleton types.SceneList) ([]int, error)
}

// Planner turns briefs into timed scene lists.
type Planner struct {
	optimizer NarrativeOptimizer
	timeout   time.Duration
}

// Option configures a Planner.
type Option func(*Planner)

// WithOptimizer enables narrative reordering through o.
func WithOptimizer(o NarrativeOptimizer) Option {
	return func(p *Planner) { p.optimizer = o }
}

// WithOptimizerTimeout bounds each optimizer call.
func WithOptimizerTimeout(d time.Duration) Option {
	return func(p *Planner) { p.timeout = d }
}

// New creates a planner. Without options it is fully local and deterministic.
func New(opts ...Option) *Planner {
	p := &Planner{timeout: defaultOptimizerTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan builds the scene list for brief. The result always covers exactly
// brief.DurationMs with contiguous scenes.
func (p *Planner) Plan(ctx context.Context, brief types.Brief) (types.SceneList, error) {
	if brief.DurationMs < MinDurationMs {
		return nil, types.ValidationError(types.CodeInvalidBrief, "planning",
			"duration must be at least %dms, got %dms", MinDurationMs, brief.DurationMs)
	}

	sceneTypes, _ := Template(brief.Category)
	scenes := Skeleton(brief, sceneTypes)

	if p.optimizer == nil {
		return scenes, nil
	}

	octx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	order, err := p.optimizer.Reorder(octx, brief, scenes.Clone())
	if err != nil {
		log.Printf("⚠️ Narrative optimizer failed for brief %s, keeping local plan: %v", brief.ID, err)
		return scenes, nil
	}
	if order == nil {
		return scenes, nil
	}
	reordered, err := Reorder(scenes, order, brief.Pacing, brief.Seed)
	if err != nil {
		log.Printf("⚠️ Narrative optimizer returned unusable order for brief %s: %v", brief.ID, err)
		return scenes, nil
	}
	return reordered, nil
}

// Skeleton lays out sceneTypes over the brief's duration without consulting
// any optimizer.
func Skeleton(brief types.Brief, sceneTypes []types.SceneType) types.SceneList {
	durations := allocate(brief.DurationMs, len(sceneTypes))
	narration := splitNarration(brief.Script, len(sceneTypes))

	scenes := make(types.SceneList, len(sceneTypes))
	for i, t := range sceneTypes {
		styles := MotionStyles(t)
		scenes[i] = types.Scene{
			Type:        t,
			MotionStyle: styles[pick(len(styles), brief.Seed, saltMotion, i)],
			Overlay:     overlayFor(t, brief),
			Narration:   narration[i],
		}
		scenes[i].EndMs = durations[i]
	}
	retime(scenes)
	assignTransitions(scenes, brief.Pacing, brief.Seed)
	return scenes
}

// Reorder applies a permutation to scenes. Each scene keeps its duration,
// timings are recomputed left to right and transitions are re-derived.
func Reorder(scenes types.SceneList, order []int, pacing types.Pacing, seed int64) (types.SceneList, error) {
	if err := validatePermutation(order, len(scenes)); err != nil {
		return nil, err
	}
	src := scenes.Clone()
	out := make(types.SceneList, len(src))
	for i, from := range order {
		s := src[from]
		s.EndMs = s.DurationMs()
		out[i] = s
	}
	retime(out)
	assignTransitions(out, pacing, seed)
	return out, nil
}

func validatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("order has %d entries, want %d", len(order), n)
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("index %d repeated", idx)
		}
		seen[idx] = true
	}
	return nil
}

// allocate splits total across n scenes: the opening takes 10%, the closing
// 15%, and the middle scenes share the remainder evenly. Leftover
// milliseconds go to the earliest middle scenes so the sum is exact.
func allocate(total int64, n int) []int64 {
	out := make([]int64, n)
	switch n {
	case 0:
		return out
	case 1:
		out[0] = total
		return out
	case 2:
		out[0] = total * openingSharePct / 100
		out[1] = total - out[0]
		return out
	}

	out[0] = total * openingSharePct / 100
	out[n-1] = total * closingSharePct / 100
	remaining := total - out[0] - out[n-1]
	middle := int64(n - 2)
	each, extra := remaining/middle, remaining%middle
	for i := 1; i < n-1; i++ {
		out[i] = each
		if extra > 0 {
			out[i]++
			extra--
		}
	}
	return out
}

// retime expects each scene's EndMs to hold its duration and rewrites
// indices and absolute timings.
func retime(scenes types.SceneList) {
	var cursor int64
	for i := range scenes {
		d := scenes[i].EndMs
		scenes[i].Index = i
		scenes[i].StartMs = cursor
		scenes[i].EndMs = cursor + d
		cursor += d
	}
}

func assignTransitions(scenes types.SceneList, pacing types.Pacing, seed int64) {
	vocab := Transitions(pacing)
	for i := range scenes {
		if i == len(scenes)-1 {
			scenes[i].TransitionIntoNext = ""
			continue
		}
		scenes[i].TransitionIntoNext = vocab[pick(len(vocab), seed, saltTransition, i)]
	}
}

func overlayFor(t types.SceneType, brief types.Brief) *types.Overlay {
	switch t {
	case types.SceneHook:
		if brief.Hook != "" {
			return &types.Overlay{Text: brief.Hook, Position: "top"}
		}
		if brief.Title != "" {
			return &types.Overlay{Text: brief.Title, Position: "top"}
		}
	case types.SceneCTA:
		if brief.CallToAction != "" {
			return &types.Overlay{Text: brief.CallToAction, Position: "bottom"}
		}
	}
	return nil
}

// splitNarration distributes the script's sentences across n scenes in order.
func splitNarration(script string, n int) []string {
	out := make([]string, n)
	sentences := sentences(script)
	if n == 0 || len(sentences) == 0 {
		return out
	}
	buckets := make([][]string, n)
	for k, s := range sentences {
		idx := k * n / len(sentences)
		buckets[idx] = append(buckets[idx], s)
	}
	for i, b := range buckets {
		out[i] = strings.Join(b, " ")
	}
	return out
}

func sentences(script string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range script {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}
