package types

// SceneType is the narrative role of a scene. The set is closed.
type SceneType string

const (
	SceneHook        SceneType = "hook"
	SceneProblem     SceneType = "problem"
	SceneSolution    SceneType = "solution"
	SceneBenefit     SceneType = "benefit"
	SceneDemo        SceneType = "demo"
	SceneProof       SceneType = "proof"
	SceneTestimonial SceneType = "testimonial"
	SceneOffer       SceneType = "offer"
	SceneStory       SceneType = "story"
	SceneExplanation SceneType = "explanation"
	SceneExample     SceneType = "example"
	SceneCTA         SceneType = "cta"
)

// Pacing controls the transition vocabulary used between scenes.
type Pacing string

const (
	PacingFast   Pacing = "fast"
	PacingMedium Pacing = "medium"
	PacingSlow   Pacing = "slow"
)

// Overlay is on-screen text drawn over a scene.
type Overlay struct {
	Text     string `json:"text"`
	Position string `json:"position"` // top, center, bottom
}

// Scene is one timed segment of a planned video.
type Scene struct {
	Index              int       `json:"index"`
	Type               SceneType `json:"type"`
	StartMs            int64     `json:"start_ms"`
	EndMs              int64     `json:"end_ms"`
	MotionStyle        string    `json:"motion_style"`
	TransitionIntoNext string    `json:"transition_into_next,omitempty"`
	Overlay            *Overlay  `json:"overlay,omitempty"`
	Narration          string    `json:"narration,omitempty"`
}

// DurationMs returns the length of the scene.
func (s Scene) DurationMs() int64 {
	return s.EndMs - s.StartMs
}

// SceneList is an ordered, contiguous list of scenes.
type SceneList []Scene

// TotalMs returns the summed scene durations.
func (l SceneList) TotalMs() int64 {
	var total int64
	for _, s := range l {
		total += s.DurationMs()
	}
	return total
}

// Clone returns a deep copy so callers can permute or retime freely.
func (l SceneList) Clone() SceneList {
	out := make(SceneList, len(l))
	for i, s := range l {
		if s.Overlay != nil {
			o := *s.Overlay
			s.Overlay = &o
		}
		out[i] = s
	}
	return out
}

// Contiguous reports whether indices run 0..n-1 and every scene starts
// exactly where the previous one ended, beginning at zero.
func (l SceneList) Contiguous() bool {
	var cursor int64
	for i, s := range l {
		if s.Index != i || s.StartMs != cursor || s.EndMs <= s.StartMs {
			return false
		}
		cursor = s.EndMs
	}
	return true
}

// Types returns the scene types in order.
func (l SceneList) Types() []SceneType {
	out := make([]SceneType, len(l))
	for i, s := range l {
		out[i] = s.Type
	}
	return out
}

// Asset is a source media file referenced by a brief.
type Asset struct {
	Path string `json:"path"`
	Kind string `json:"kind,omitempty"` // video, image, audio
}

// Brief is the content brief a video is planned from.
type Brief struct {
	ID           string  `json:"id"`
	Title        string  `json:"title,omitempty"`
	Script       string  `json:"script"`
	Assets       []Asset `json:"assets,omitempty"`
	DurationMs   int64   `json:"duration_ms"`
	Category     string  `json:"category,omitempty"`
	Market       string  `json:"market,omitempty"`
	Persona      string  `json:"persona,omitempty"`
	Pacing       Pacing  `json:"pacing,omitempty"`
	Hook         string  `json:"hook,omitempty"`
	CallToAction string  `json:"call_to_action,omitempty"`
	Seed         int64   `json:"seed"`
	SourceURL    string  `json:"source_url,omitempty"`
}

// DurationSeconds returns the requested duration rounded up to whole seconds.
func (b Brief) DurationSeconds() int {
	return int((b.DurationMs + 999) / 1000)
}
