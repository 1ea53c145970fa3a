package engines

import "reelforge/types"

// SelectionRequest describes what a batch needs from an engine.
type SelectionRequest struct {
	TierCeiling          types.Tier         `json:"tier"`
	Backend              types.Location     `json:"backend"`
	RequiredCapabilities []types.Capability `json:"capabilities"`
	DurationSeconds      int                `json:"duration_seconds"`
}

// Selector picks the best engine in a catalog for a request.
type Selector struct {
	catalog *Catalog
}

// NewSelector returns a selector over catalog.
func NewSelector(catalog *Catalog) *Selector {
	return &Selector{catalog: catalog}
}

// Catalog returns the catalog the selector ranks.
func (s *Selector) Catalog() *Catalog {
	return s.catalog
}

// Candidates returns every eligible engine, best first.
//
// Filters apply in order: tier ceiling (ai-chooses is unconstrained), backend
// location (auto accepts both), capability intersection, and max duration.
func (s *Selector) Candidates(req SelectionRequest) []types.EngineSpec {
	return s.catalog.Filter(FilterOptions{
		Tier:               req.TierCeiling,
		Location:           req.Backend,
		Capabilities:       req.RequiredCapabilities,
		MinDurationSeconds: req.DurationSeconds,
	})
}

// Select returns the highest-priority eligible engine. ok is false when no
// engine qualifies, which is an expected outcome callers report to the user.
func (s *Selector) Select(req SelectionRequest) (spec types.EngineSpec, ok bool) {
	candidates := s.Candidates(req)
	if len(candidates) == 0 {
		return types.EngineSpec{}, false
	}
	return candidates[0], true
}
