package planner

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"reelforge/types"
)

type fakeOptimizer struct {
	order []int
	err   error
	calls int
}

func (f *fakeOptimizer) Reorder(ctx context.Context, brief types.Brief, skeleton types.SceneList) ([]int, error) {
	f.calls++
	return f.order, f.err
}

type blockingOptimizer struct{}

func (blockingOptimizer) Reorder(ctx context.Context, brief types.Brief, skeleton types.SceneList) ([]int, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testBrief(durationMs int64) types.Brief {
	return types.Brief{
		ID:           "brief-1",
		Title:        "Launch week",
		Script:       "Tired of slow edits? Editing eats your week. Our tool cuts it to minutes. Ship more videos. Try it today!",
		DurationMs:   durationMs,
		Pacing:       types.PacingFast,
		Hook:         "Stop scrolling",
		CallToAction: "Start free",
		Seed:         42,
	}
}

func mustPlan(t *testing.T, p *Planner, b types.Brief) types.SceneList {
	t.Helper()
	scenes, err := p.Plan(context.Background(), b)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return scenes
}

func TestPlanThirtySecondExample(t *testing.T) {
	scenes := mustPlan(t, New(), testBrief(30000))

	want := []int64{3000, 7500, 7500, 7500, 4500}
	if len(scenes) != len(want) {
		t.Fatalf("got %d scenes, want %d", len(scenes), len(want))
	}
	for i, s := range scenes {
		if s.DurationMs() != want[i] {
			t.Errorf("scene %d duration = %d, want %d", i, s.DurationMs(), want[i])
		}
	}
	if scenes[0].Type != types.SceneHook || scenes[len(scenes)-1].Type != types.SceneCTA {
		t.Fatalf("unexpected order: %v", scenes.Types())
	}
	if scenes[0].Overlay == nil || scenes[0].Overlay.Text != "Stop scrolling" {
		t.Fatalf("hook overlay = %+v", scenes[0].Overlay)
	}
	if scenes[4].Overlay == nil || scenes[4].Overlay.Text != "Start free" {
		t.Fatalf("cta overlay = %+v", scenes[4].Overlay)
	}
	if scenes[0].Narration != "Tired of slow edits?" {
		t.Fatalf("hook narration = %q", scenes[0].Narration)
	}
}

func TestPlanSumsAndContiguity(t *testing.T) {
	p := New()
	for _, category := range []string{"", "ecommerce", "saas", "education", "testimonial", "news", "unknown"} {
		for _, total := range []int64{1000, 1001, 7777, 10001, 30000, 59999, 600000} {
			b := testBrief(total)
			b.Category = category
			scenes := mustPlan(t, p, b)
			if got := scenes.TotalMs(); got != total {
				t.Fatalf("%s/%d: total = %d", category, total, got)
			}
			if !scenes.Contiguous() {
				t.Fatalf("%s/%d: scenes not contiguous: %+v", category, total, scenes)
			}
			for i, s := range scenes {
				last := i == len(scenes)-1
				if last && s.TransitionIntoNext != "" {
					t.Fatalf("%s/%d: last scene has transition %q", category, total, s.TransitionIntoNext)
				}
				if !last && s.TransitionIntoNext == "" {
					t.Fatalf("%s/%d: scene %d missing transition", category, total, i)
				}
			}
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := New()
	a := mustPlan(t, p, testBrief(45000))
	b := mustPlan(t, p, testBrief(45000))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same brief and seed produced different plans")
	}

	other := testBrief(45000)
	other.Seed = 7
	c := mustPlan(t, p, other)
	if !reflect.DeepEqual(a.Types(), c.Types()) {
		t.Fatal("seed must not change the template")
	}
}

func TestPlanRejectsShortBrief(t *testing.T) {
	_, err := New().Plan(context.Background(), testBrief(500))
	var re *types.RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if re.Code != types.CodeInvalidBrief || re.Class != types.ClassValidation {
		t.Fatalf("unexpected error: %+v", re)
	}
}

func TestOptimizerReorderKeepsTypesAndTotal(t *testing.T) {
	opt := &fakeOptimizer{order: []int{0, 3, 1, 2, 4}}
	base := mustPlan(t, New(), testBrief(30000))
	scenes := mustPlan(t, New(WithOptimizer(opt)), testBrief(30000))

	if opt.calls != 1 {
		t.Fatalf("optimizer called %d times", opt.calls)
	}
	if scenes.TotalMs() != 30000 || !scenes.Contiguous() {
		t.Fatalf("reordered plan broken: %+v", scenes)
	}
	if scenes[1].Type != base[3].Type || scenes[1].DurationMs() != base[3].DurationMs() {
		t.Fatalf("scene 1 = %s/%d, want %s/%d", scenes[1].Type, scenes[1].DurationMs(), base[3].Type, base[3].DurationMs())
	}
	if !sameMultiset(scenes.Types(), base.Types()) {
		t.Fatalf("types changed: %v vs %v", scenes.Types(), base.Types())
	}
}

func TestOptimizerFailureKeepsLocalPlan(t *testing.T) {
	base := mustPlan(t, New(), testBrief(30000))

	cases := []struct {
		name string
		opt  NarrativeOptimizer
	}{
		{"error", &fakeOptimizer{err: errors.New("boom")}},
		{"nil order", &fakeOptimizer{}},
		{"duplicate index", &fakeOptimizer{order: []int{0, 0, 1, 2, 3}}},
		{"short order", &fakeOptimizer{order: []int{0, 1}}},
		{"out of range", &fakeOptimizer{order: []int{0, 1, 2, 3, 9}}},
		{"timeout", blockingOptimizer{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(WithOptimizer(tc.opt), WithOptimizerTimeout(10*time.Millisecond))
			got := mustPlan(t, p, testBrief(30000))
			if !reflect.DeepEqual(got, base) {
				t.Fatalf("plan changed after optimizer failure: %v", got.Types())
			}
		})
	}
}

func TestVaryZeroIsBase(t *testing.T) {
	base := mustPlan(t, New(), testBrief(30000))
	if !reflect.DeepEqual(Vary(base, 0, 42), base) {
		t.Fatal("variation 0 must equal the base plan")
	}
}

func TestVaryPreservesTotalAndTypes(t *testing.T) {
	b := testBrief(30001)
	b.Category = "ecommerce"
	base := mustPlan(t, New(), b)

	for i := 1; i <= 12; i++ {
		v := Vary(base, i, b.Seed)
		if v.TotalMs() != base.TotalMs() {
			t.Fatalf("variation %d total = %d, want %d", i, v.TotalMs(), base.TotalMs())
		}
		if !v.Contiguous() {
			t.Fatalf("variation %d not contiguous", i)
		}
		if !sameMultiset(v.Types(), base.Types()) {
			t.Fatalf("variation %d changed types: %v", i, v.Types())
		}
		if v[0].Type != types.SceneHook || v[len(v)-1].Type != types.SceneCTA {
			t.Fatalf("variation %d moved hook or cta: %v", i, v.Types())
		}
		if !reflect.DeepEqual(v, Vary(base, i, b.Seed)) {
			t.Fatalf("variation %d not deterministic", i)
		}
		for _, s := range v {
			orig := durationOf(base, s.Type)
			if diff := s.DurationMs() - orig; diff > orig*18/100+2 || -diff > orig*18/100+2 {
				t.Fatalf("variation %d scene %s jittered %d -> %d", i, s.Type, orig, s.DurationMs())
			}
		}
	}

	if reflect.DeepEqual(Vary(base, 1, b.Seed).Types(), base.Types()) {
		t.Fatal("variation 1 should rotate the middle scenes")
	}
	if base[0].Overlay == nil {
		t.Fatal("base hook lost its overlay")
	}
}

func TestParseOrder(t *testing.T) {
	got, err := parseOrder("Here you go:\n[2, 0, 1]\n")
	if err != nil || !reflect.DeepEqual(got, []int{2, 0, 1}) {
		t.Fatalf("parseOrder = %v, %v", got, err)
	}
	if _, err := parseOrder("no idea"); err == nil {
		t.Fatal("expected error without array")
	}
	if _, err := parseOrder(`["a"]`); err == nil {
		t.Fatal("expected error for non-integer array")
	}
}

func TestAllocateLeftoverGoesLeft(t *testing.T) {
	got := allocate(10001, 6)
	want := []int64{1000, 1876, 1875, 1875, 1875, 1500}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("allocate = %v, want %v", got, want)
	}
}

func sameMultiset(a, b []types.SceneType) bool {
	if len(a) != len(b) {
		return false
	}
	x := make([]string, len(a))
	y := make([]string, len(b))
	for i := range a {
		x[i], y[i] = string(a[i]), string(b[i])
	}
	sort.Strings(x)
	sort.Strings(y)
	return reflect.DeepEqual(x, y)
}

func durationOf(scenes types.SceneList, t types.SceneType) int64 {
	for _, s := range scenes {
		if s.Type == t {
			return s.DurationMs()
		}
	}
	return 0
}
