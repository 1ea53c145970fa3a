package engines

import "reelforge/types"

// defaultSpecs is the catalog shipped with the binary. Local engines run on
// the render server; cloud engines are billed per second by their provider.
var defaultSpecs = []types.EngineSpec{
	{
		ID:                 "ffmpeg-basic",
		Name:               "FFmpeg Basic",
		Tier:               types.TierFree,
		Location:           types.LocationLocalServer,
		Capabilities:       []types.Capability{types.CapTrim, types.CapMerge, types.CapTextOverlay},
		CostPerSecond:      0,
		MaxDurationSeconds: 600,
		Priority:           50,
	},
	{
		ID:                 "ffmpeg-pro",
		Name:               "FFmpeg Pro Compositor",
		Tier:               types.TierLow,
		Location:           types.LocationLocalServer,
		Capabilities:       []types.Capability{types.CapTrim, types.CapMerge, types.CapTextOverlay, types.CapSubtitles},
		CostPerSecond:      0.002,
		MaxDurationSeconds: 900,
		Priority:           60,
	},
	{
		ID:                 "shotstack-edit",
		Name:               "Shotstack Edit API",
		Tier:               types.TierMedium,
		Location:           types.LocationCloudAPI,
		Provider:           types.ProviderShotstack,
		Capabilities:       []types.Capability{types.CapTrim, types.CapMerge, types.CapTextOverlay, types.CapSubtitles},
		CostPerSecond:      0.02,
		MaxDurationSeconds: 300,
		Priority:           55,
	},
	{
		ID:                 "heygen-avatar",
		Name:               "HeyGen Avatar",
		Tier:               types.TierPremium,
		Location:           types.LocationCloudAPI,
		Provider:           types.ProviderHeyGen,
		Capabilities:       []types.Capability{types.CapAvatar, types.CapVoice, types.CapSubtitles},
		CostPerSecond:      0.1,
		MaxDurationSeconds: 180,
		Priority:           70,
	},
	{
		ID:                 "runway-gen3",
		Name:               "Runway Gen-3",
		Tier:               types.TierPremium,
		Location:           types.LocationCloudAPI,
		Provider:           types.ProviderRunway,
		Capabilities:       []types.Capability{types.CapCinematic, types.CapImageToVideo},
		CostPerSecond:      0.05,
		MaxDurationSeconds: 10,
		Priority:           80,
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(defaultSpecs)
	if err != nil {
		panic("engines: invalid default catalog: " + err.Error())
	}
	return c
}
