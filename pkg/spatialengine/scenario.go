package spatialengine

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"spatialengine/internal/constraint"
	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Scenario describes one generated population, one interaction over it and
// the queries to run for every agent.
type Scenario struct {
	Name         string            `yaml:"name"`
	Seed         int64             `yaml:"seed"`
	Workers      int               `yaml:"workers"`
	Population   PopulationConfig  `yaml:"population"`
	Interaction  InteractionConfig `yaml:"interaction"`
	Receiver     ConstraintConfig  `yaml:"receiver"`
	Exerter      ConstraintConfig  `yaml:"exerter"`
	Queries      []string          `yaml:"queries"`
	NearestCount int               `yaml:"nearest_count"`
	DrawCount    int               `yaml:"draw_count"`
}

type PopulationConfig struct {
	Layout       string  `yaml:"layout"` // uniform | simplex
	Count        int     `yaml:"count"`
	Dimensions   int     `yaml:"dimensions"`
	Extent       float64 `yaml:"extent"`
	Periodic     bool    `yaml:"periodic"`
	MaleFraction float64 `yaml:"male_fraction"`
	NoiseScale   float64 `yaml:"noise_scale"`
	TagRange     int     `yaml:"tag_range"`
	MaxAge       int     `yaml:"max_age"` // > 0 enables age and age constraints
}

type InteractionConfig struct {
	Spatiality  string    `yaml:"spatiality"`
	MaxDistance float64   `yaml:"max_distance"` // 0 with empty spatiality means unbounded
	Kernel      string    `yaml:"kernel"`
	Params      []float64 `yaml:"params"`
}

type ConstraintConfig struct {
	Sex     string `yaml:"sex"`
	Tag     *int64 `yaml:"tag"`
	MinAge  *int   `yaml:"min_age"`
	MaxAge  *int   `yaml:"max_age"`
	Migrant *bool  `yaml:"migrant"`
}

const (
	QueryNeighborCount            = "neighbor_count"
	QueryInteractingNeighborCount = "interacting_neighbor_count"
	QueryTotalStrength            = "total_strength"
	QueryLocalDensity             = "local_density"
	QueryClippedIntegral          = "clipped_integral"
	QueryNearestDistance          = "nearest_distance"
	QueryDraw                     = "draw"
)

var knownQueries = map[string]bool{
	QueryNeighborCount:            true,
	QueryInteractingNeighborCount: true,
	QueryTotalStrength:            true,
	QueryLocalDensity:             true,
	QueryClippedIntegral:          true,
	QueryNearestDistance:          true,
	QueryDraw:                     true,
}

// DefaultScenario returns the embedded defaults.
func DefaultScenario() (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(defaultsYAML, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return sc, nil
}

// ParseScenario overlays data on the embedded defaults; only fields present
// in data are replaced.
func ParseScenario(data []byte) (Scenario, error) {
	sc, err := DefaultScenario()
	if err != nil {
		return Scenario{}, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// LoadScenario reads a YAML scenario file. An empty path yields the defaults.
func LoadScenario(path string) (Scenario, error) {
	if path == "" {
		return DefaultScenario()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data)
}

func (s Scenario) Validate() error {
	const op = "Scenario.Validate"
	if s.Name == "" {
		return model.Errorf(model.ErrConfiguration, op, "scenario name is required")
	}
	if s.Workers < 0 {
		return model.Errorf(model.ErrConfiguration, op, "workers must be >= 0, got %d", s.Workers)
	}
	p := s.Population
	if p.Count <= 0 {
		return model.Errorf(model.ErrConfiguration, op, "population count must be > 0, got %d", p.Count)
	}
	if p.Dimensions < 1 || p.Dimensions > model.MaxDimensionality {
		return model.Errorf(model.ErrConfiguration, op, "population dimensions must be in [1, %d], got %d", model.MaxDimensionality, p.Dimensions)
	}
	if !(p.Extent > 0) || math.IsInf(p.Extent, 0) {
		return model.Errorf(model.ErrConfiguration, op, "population extent must be finite and > 0, got %v", p.Extent)
	}
	if p.MaxAge < 0 || p.TagRange < 0 {
		return model.Errorf(model.ErrConfiguration, op, "max_age and tag_range must be >= 0")
	}
	if _, err := kernel.ParseType(s.Interaction.Kernel); err != nil {
		return err
	}
	if len(s.Queries) == 0 {
		return model.Errorf(model.ErrConfiguration, op, "at least one query is required")
	}
	for _, q := range s.Queries {
		if !knownQueries[q] {
			return model.Errorf(model.ErrConfiguration, op, "unknown query %q", q)
		}
		if q == QueryNearestDistance && s.NearestCount < 1 {
			return model.Errorf(model.ErrConfiguration, op, "nearest_count must be >= 1 for %s, got %d", q, s.NearestCount)
		}
	}
	if s.DrawCount < 0 {
		return model.Errorf(model.ErrConfiguration, op, "draw_count must be >= 0, got %d", s.DrawCount)
	}
	if _, err := s.Receiver.roleConstraint(); err != nil {
		return err
	}
	if _, err := s.Exerter.roleConstraint(); err != nil {
		return err
	}
	return nil
}

func (c ConstraintConfig) roleConstraint() (constraint.RoleConstraint, error) {
	sex, ok := model.ParseSex(c.Sex)
	if !ok {
		return constraint.RoleConstraint{}, model.Errorf(model.ErrConfiguration, "Scenario.Validate", "sex constraint must be M, F or *, got %q", c.Sex)
	}
	return constraint.RoleConstraint{
		Sex:     sex,
		Tag:     c.Tag,
		MinAge:  c.MinAge,
		MaxAge:  c.MaxAge,
		Migrant: c.Migrant,
	}, nil
}
