package engines

import (
	"errors"
	"testing"

	"reelforge/types"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]types.EngineSpec{
		{ID: "local-a", Tier: types.TierFree, Location: types.LocationLocalServer, Capabilities: []types.Capability{types.CapTrim, types.CapMerge}, MaxDurationSeconds: 600, Priority: 10},
		{ID: "local-b", Tier: types.TierLow, Location: types.LocationLocalServer, Capabilities: []types.Capability{types.CapTextOverlay}, MaxDurationSeconds: 120, Priority: 10},
		{ID: "cloud-a", Tier: types.TierMedium, Location: types.LocationCloudAPI, Provider: types.ProviderShotstack, Capabilities: []types.Capability{types.CapTrim, types.CapSubtitles}, CostPerSecond: 0.02, MaxDurationSeconds: 300, Priority: 30},
		{ID: "cloud-b", Tier: types.TierPremium, Location: types.LocationCloudAPI, Provider: types.ProviderRunway, Capabilities: []types.Capability{types.CapCinematic}, CostPerSecond: 0.05, MaxDurationSeconds: 10, Priority: 90},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func TestNewCatalogRejectsInvalidSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec types.EngineSpec
	}{
		{"missing id", types.EngineSpec{Tier: types.TierFree, Location: types.LocationLocalServer, MaxDurationSeconds: 1}},
		{"bad tier", types.EngineSpec{ID: "x", Tier: "gold", Location: types.LocationLocalServer, MaxDurationSeconds: 1}},
		{"bad location", types.EngineSpec{ID: "x", Tier: types.TierFree, Location: "moon", MaxDurationSeconds: 1}},
		{"negative cost", types.EngineSpec{ID: "x", Tier: types.TierFree, Location: types.LocationLocalServer, CostPerSecond: -1, MaxDurationSeconds: 1}},
		{"zero duration", types.EngineSpec{ID: "x", Tier: types.TierFree, Location: types.LocationLocalServer}},
		{"cloud without provider", types.EngineSpec{ID: "x", Tier: types.TierFree, Location: types.LocationCloudAPI, MaxDurationSeconds: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCatalog([]types.EngineSpec{tc.spec}); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}

	dup := types.EngineSpec{ID: "x", Tier: types.TierFree, Location: types.LocationLocalServer, MaxDurationSeconds: 1}
	if _, err := NewCatalog([]types.EngineSpec{dup, dup}); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := NewCatalog(nil); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestCatalogGet(t *testing.T) {
	c := testCatalog(t)

	spec, err := c.Get("cloud-a")
	if err != nil || spec.ID != "cloud-a" {
		t.Fatalf("Get(cloud-a) = %v, %v", spec.ID, err)
	}
	if _, err := c.Get("nope"); !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestCatalogListIsACopy(t *testing.T) {
	c := testCatalog(t)
	list := c.List()
	list[0].ID = "mutated"
	if got, _ := c.Get("local-a"); got.ID != "local-a" {
		t.Fatal("List exposed internal storage")
	}
}

func TestFilterSortsByPriorityStable(t *testing.T) {
	c := testCatalog(t)
	got := ids(c.Filter(FilterOptions{}))
	want := []string{"cloud-b", "cloud-a", "local-a", "local-b"}
	assertIDs(t, got, want)
}

func TestSelectorFilters(t *testing.T) {
	sel := NewSelector(testCatalog(t))

	cases := []struct {
		name   string
		req    SelectionRequest
		wantOK bool
		want   string
	}{
		{"free ceiling", SelectionRequest{TierCeiling: types.TierFree, Backend: types.LocationAuto, RequiredCapabilities: []types.Capability{types.CapTrim}, DurationSeconds: 30}, true, "local-a"},
		{"ai-chooses picks premium", SelectionRequest{TierCeiling: types.TierAIChooses, Backend: types.LocationAuto, RequiredCapabilities: []types.Capability{types.CapCinematic}, DurationSeconds: 5}, true, "cloud-b"},
		{"duration excludes short engines", SelectionRequest{TierCeiling: types.TierAIChooses, Backend: types.LocationAuto, RequiredCapabilities: []types.Capability{types.CapTrim, types.CapCinematic}, DurationSeconds: 30}, true, "cloud-a"},
		{"location restricts", SelectionRequest{TierCeiling: types.TierPremium, Backend: types.LocationLocalServer, RequiredCapabilities: []types.Capability{types.CapTrim, types.CapTextOverlay}, DurationSeconds: 30}, true, "local-a"},
		{"partial capability match is enough", SelectionRequest{TierCeiling: types.TierLow, Backend: types.LocationAuto, RequiredCapabilities: []types.Capability{types.CapTextOverlay, types.CapAvatar}, DurationSeconds: 60}, true, "local-b"},
		{"nothing eligible", SelectionRequest{TierCeiling: types.TierLow, Backend: types.LocationCloudAPI, RequiredCapabilities: []types.Capability{types.CapTrim}, DurationSeconds: 30}, false, ""},
		{"no capability intersection", SelectionRequest{TierCeiling: types.TierPremium, Backend: types.LocationAuto, RequiredCapabilities: []types.Capability{types.CapAvatar}, DurationSeconds: 5}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := sel.Select(tc.req)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.ID != tc.want {
				t.Fatalf("selected %s, want %s", got.ID, tc.want)
			}
		})
	}
}

func TestSelectorNeverViolatesConstraints(t *testing.T) {
	sel := NewSelector(Default())
	tiers := []types.Tier{types.TierFree, types.TierLow, types.TierMedium, types.TierPremium}
	caps := [][]types.Capability{
		{types.CapTrim},
		{types.CapAvatar},
		{types.CapCinematic, types.CapVoice},
		{types.CapSubtitles},
	}
	for _, tier := range tiers {
		for _, want := range caps {
			for _, dur := range []int{5, 30, 200, 1000} {
				for _, loc := range []types.Location{types.LocationAuto, types.LocationLocalServer, types.LocationCloudAPI} {
					req := SelectionRequest{TierCeiling: tier, Backend: loc, RequiredCapabilities: want, DurationSeconds: dur}
					for _, spec := range sel.Candidates(req) {
						limit, _ := tier.Rank()
						rank, _ := spec.Tier.Rank()
						if rank > limit {
							t.Fatalf("%v: %s exceeds tier", req, spec.ID)
						}
						if spec.MaxDurationSeconds < dur {
							t.Fatalf("%v: %s too short", req, spec.ID)
						}
						if !spec.IntersectsCapabilities(want) {
							t.Fatalf("%v: %s lacks capabilities", req, spec.ID)
						}
						if loc != types.LocationAuto && spec.Location != loc {
							t.Fatalf("%v: %s wrong location", req, spec.ID)
						}
					}
				}
			}
		}
	}
}

func TestParseTOMLCatalog(t *testing.T) {
	c, err := Parse(`
[[engine]]
id = "edge"
name = "Edge Renderer"
tier = "low"
location = "local-server"
capabilities = ["trim", "merge"]
cost_per_second = 0.001
max_duration_seconds = 120
priority = 5

[[engine]]
id = "cloud"
tier = "premium"
location = "cloud-api"
provider = "runway"
capabilities = ["cinematic"]
max_duration_seconds = 10
priority = 9
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	spec, err := c.Get("edge")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if spec.Tier != types.TierLow || !spec.HasCapability(types.CapMerge) || spec.MaxDurationSeconds != 120 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	cloud, _ := c.Get("cloud")
	if cloud.Provider != types.ProviderRunway {
		t.Fatalf("provider = %q", cloud.Provider)
	}
}

func ids(specs []types.EngineSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.ID
	}
	return out
}

func assertIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
