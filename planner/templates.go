package planner

import "reelforge/types"

// DefaultCategory names the template used when a brief's category is unknown.
const DefaultCategory = "default"

// templates maps a content category to its scene sequence. Every template
// opens with a hook and closes with a call to action.
var templates = map[string][]types.SceneType{
	DefaultCategory: {types.SceneHook, types.SceneProblem, types.SceneSolution, types.SceneBenefit, types.SceneCTA},
	"ecommerce":     {types.SceneHook, types.SceneDemo, types.SceneBenefit, types.SceneProof, types.SceneOffer, types.SceneCTA},
	"saas":          {types.SceneHook, types.SceneProblem, types.SceneDemo, types.SceneBenefit, types.SceneCTA},
	"education":     {types.SceneHook, types.SceneExplanation, types.SceneExample, types.SceneCTA},
	"testimonial":   {types.SceneHook, types.SceneStory, types.SceneTestimonial, types.SceneBenefit, types.SceneCTA},
	"news":          {types.SceneHook, types.SceneStory, types.SceneExplanation, types.SceneCTA},
}

// Template returns the scene sequence for category and whether the category
// was known.
func Template(category string) ([]types.SceneType, bool) {
	if t, ok := templates[category]; ok {
		return append([]types.SceneType(nil), t...), true
	}
	return append([]types.SceneType(nil), templates[DefaultCategory]...), false
}

// motionStyles lists the camera moves suitable for each scene type.
var motionStyles = map[types.SceneType][]string{
	types.SceneHook:        {"zoom-in", "whip-pan", "punch-in"},
	types.SceneProblem:     {"slow-push", "handheld", "dolly-out"},
	types.SceneSolution:    {"reveal", "pan-right", "zoom-out"},
	types.SceneBenefit:     {"ken-burns", "slide-up", "parallax"},
	types.SceneDemo:        {"screen-follow", "pan-left", "zoom-in"},
	types.SceneProof:       {"static", "ken-burns", "slow-push"},
	types.SceneTestimonial: {"static", "slow-push"},
	types.SceneOffer:       {"pulse", "zoom-in", "bounce"},
	types.SceneStory:       {"dolly-in", "ken-burns", "pan-right"},
	types.SceneExplanation: {"static", "slide-left", "ken-burns"},
	types.SceneExample:     {"pan-left", "zoom-in", "parallax"},
	types.SceneCTA:         {"pulse", "zoom-in", "static"},
}

// MotionStyles returns the candidate motion styles for a scene type.
func MotionStyles(t types.SceneType) []string {
	if m, ok := motionStyles[t]; ok {
		return m
	}
	return []string{"static"}
}

// transitions holds the vocabulary for each pacing.
var transitions = map[types.Pacing][]string{
	types.PacingFast:   {"cut", "whip", "glitch", "zoom-punch"},
	types.PacingMedium: {"crossfade", "slide", "zoom", "cut"},
	types.PacingSlow:   {"fade", "dissolve", "crossfade", "fade-black"},
}

// Transitions returns the transition vocabulary for a pacing. Unknown
// pacings use medium.
func Transitions(p types.Pacing) []string {
	if t, ok := transitions[p]; ok {
		return t
	}
	return transitions[types.PacingMedium]
}
