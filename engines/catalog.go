// Package engines holds the catalog of rendering backends and the selector
// that picks one for a request.
package engines

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"reelforge/types"

	"github.com/BurntSushi/toml"
)

var (
	ErrEngineNotFound = errors.New("engine not found")
	ErrEmptyCatalog   = errors.New("catalog has no engines")
)

// Catalog is a read-only registry of engine specs. It is safe to share
// between goroutines once built.
type Catalog struct {
	specs []types.EngineSpec
	index map[string]int
}

// FilterOptions narrows a catalog listing. Zero values leave a dimension
// unconstrained.
type FilterOptions struct {
	// Tier is a ceiling: engines above it are excluded.
	Tier               types.Tier
	Location           types.Location
	Capabilities       []types.Capability
	MinDurationSeconds int
}

// NewCatalog validates specs and builds a catalog preserving their order.
func NewCatalog(specs []types.EngineSpec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		specs: make([]types.EngineSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if err := validateSpec(s); err != nil {
			return nil, err
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate engine id %q", s.ID)
		}
		s.Capabilities = append([]types.Capability(nil), s.Capabilities...)
		c.index[s.ID] = len(c.specs)
		c.specs = append(c.specs, s)
	}
	return c, nil
}

func validateSpec(s types.EngineSpec) error {
	switch {
	case s.ID == "":
		return errors.New("engine id is required")
	case !s.Tier.Valid():
		return fmt.Errorf("engine %s: invalid tier %q", s.ID, s.Tier)
	case !s.Location.Valid():
		return fmt.Errorf("engine %s: invalid location %q", s.ID, s.Location)
	case s.CostPerSecond < 0:
		return fmt.Errorf("engine %s: negative cost per second", s.ID)
	case s.MaxDurationSeconds <= 0:
		return fmt.Errorf("engine %s: max duration must be positive", s.ID)
	case s.Location == types.LocationCloudAPI && s.Provider == types.ProviderNone:
		return fmt.Errorf("engine %s: cloud engines need a provider", s.ID)
	}
	return nil
}

// List returns every engine in catalog order.
func (c *Catalog) List() []types.EngineSpec {
	out := make([]types.EngineSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Get returns the engine with the given id.
func (c *Catalog) Get(id string) (types.EngineSpec, error) {
	i, ok := c.index[id]
	if !ok {
		return types.EngineSpec{}, fmt.Errorf("%w: %s", ErrEngineNotFound, id)
	}
	return c.specs[i], nil
}

// Filter returns matching engines sorted by descending priority. Engines of
// equal priority keep catalog order.
func (c *Catalog) Filter(opts FilterOptions) []types.EngineSpec {
	out := make([]types.EngineSpec, 0, len(c.specs))
	for _, s := range c.specs {
		if !withinTier(s, opts.Tier) {
			continue
		}
		if opts.Location != "" && opts.Location != types.LocationAuto && s.Location != opts.Location {
			continue
		}
		if len(opts.Capabilities) > 0 && !s.IntersectsCapabilities(opts.Capabilities) {
			continue
		}
		if s.MaxDurationSeconds < opts.MinDurationSeconds {
			continue
		}
		out = append(out, s)
	}
	sortByPriority(out)
	return out
}

func withinTier(s types.EngineSpec, ceiling types.Tier) bool {
	limit, ok := ceiling.Rank()
	if !ok {
		// empty and ai-chooses are unconstrained
		return true
	}
	rank, _ := s.Tier.Rank()
	return rank <= limit
}

func sortByPriority(specs []types.EngineSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Priority > specs[j].Priority
	})
}

type catalogFile struct {
	Engines []types.EngineSpec `toml:"engine"`
}

// LoadFile reads a TOML catalog of [[engine]] tables.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(string(data))
}

// Parse builds a catalog from TOML text.
func Parse(data string) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return NewCatalog(f.Engines)
}

// LoadOrDefault loads path when set and falls back to the built-in catalog
// otherwise.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
