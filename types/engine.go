package types

// Tier is a cost/quality class constraining which engines are eligible.
type Tier string

const (
	TierFree    Tier = "free"
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierPremium Tier = "premium"

	// TierAIChooses lets the selector pick from every tier.
	TierAIChooses Tier = "ai-chooses"
)

// Rank returns the position of t in the order free < low < medium < premium.
// ok is false for unknown tiers and for TierAIChooses.
func (t Tier) Rank() (rank int, ok bool) {
	switch t {
	case TierFree:
		return 0, true
	case TierLow:
		return 1, true
	case TierMedium:
		return 2, true
	case TierPremium:
		return 3, true
	}
	return -1, false
}

// Valid reports whether t is one of the four concrete tiers.
func (t Tier) Valid() bool {
	_, ok := t.Rank()
	return ok
}

// Location is where an engine executes.
type Location string

const (
	LocationLocalServer Location = "local-server"
	LocationCloudAPI    Location = "cloud-api"

	// LocationAuto is only meaningful in requests: every location qualifies.
	LocationAuto Location = "auto"
)

// Valid reports whether l names a concrete execution location.
func (l Location) Valid() bool {
	return l == LocationLocalServer || l == LocationCloudAPI
}

// Capability is a feature tag advertised by an engine.
type Capability string

const (
	CapTrim         Capability = "trim"
	CapMerge        Capability = "merge"
	CapTextOverlay  Capability = "text-overlay"
	CapAvatar       Capability = "avatar"
	CapCinematic    Capability = "cinematic"
	CapVoice        Capability = "voice"
	CapSubtitles    Capability = "subtitles"
	CapImageToVideo Capability = "image-to-video"
)

// ProviderID identifies a third-party cloud rendering API.
type ProviderID string

const (
	ProviderNone      ProviderID = ""
	ProviderRunway    ProviderID = "runway"
	ProviderHeyGen    ProviderID = "heygen"
	ProviderShotstack ProviderID = "shotstack"
)

// EngineSpec describes one rendering backend in the catalog.
type EngineSpec struct {
	ID                 string       `json:"id" toml:"id"`
	Name               string       `json:"name" toml:"name"`
	Tier               Tier         `json:"tier" toml:"tier"`
	Location           Location     `json:"location" toml:"location"`
	Provider           ProviderID   `json:"provider,omitempty" toml:"provider"`
	Capabilities       []Capability `json:"capabilities" toml:"capabilities"`
	CostPerSecond      float64      `json:"cost_per_second" toml:"cost_per_second"`
	MaxDurationSeconds int          `json:"max_duration_seconds" toml:"max_duration_seconds"`
	Priority           int          `json:"priority" toml:"priority"`
}

// HasCapability reports whether the engine advertises c.
func (e EngineSpec) HasCapability(c Capability) bool {
	for _, have := range e.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// IntersectsCapabilities reports whether the engine advertises at least one
// of the wanted capabilities. Partial support is enough.
func (e EngineSpec) IntersectsCapabilities(wanted []Capability) bool {
	for _, c := range wanted {
		if e.HasCapability(c) {
			return true
		}
	}
	return false
}

// EstimateCost returns the cost of rendering seconds of output n times.
func (e EngineSpec) EstimateCost(seconds float64, n int) float64 {
	return e.CostPerSecond * seconds * float64(n)
}
