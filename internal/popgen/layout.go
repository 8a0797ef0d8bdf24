package popgen

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"spatialengine/internal/model"
)

// LayoutConfig controls how generated agents are placed and labelled.
type LayoutConfig struct {
	Kind         string  // "uniform" or "simplex"
	Count        int
	Seed         int64
	MaleFraction float64 // 0 gives a hermaphroditic population
	NoiseScale   float64 // feature size of simplex clustering, in space units
	TagRange     int     // tags drawn from [0, TagRange); 0 leaves tags unset
	MaxAge       int
}

// Generate places agents according to cfg within meta's bounds.
func Generate(cfg LayoutConfig, meta model.SpatialMetadata) ([]Agent, error) {
	if cfg.Count < 0 {
		return nil, fmt.Errorf("agent count must be >= 0")
	}
	if cfg.MaleFraction < 0 || cfg.MaleFraction > 1 {
		return nil, fmt.Errorf("male fraction must be in [0, 1]")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var agents []Agent
	switch cfg.Kind {
	case "", "uniform":
		agents = Uniform(rng, cfg.Count, meta)
	case "simplex":
		agents = Clustered(rng, cfg.Seed, cfg.Count, meta, cfg.NoiseScale)
	default:
		return nil, fmt.Errorf("unsupported layout: %s", cfg.Kind)
	}

	for i := range agents {
		attrs := &agents[i].Attributes
		attrs.Sex = model.SexHermaphrodite
		if cfg.MaleFraction > 0 {
			attrs.Sex = model.SexFemale
			if rng.Float64() < cfg.MaleFraction {
				attrs.Sex = model.SexMale
			}
		}
		if cfg.TagRange > 0 {
			tag := int64(rng.Intn(cfg.TagRange))
			attrs.Tag = &tag
		}
		if cfg.MaxAge > 0 {
			attrs.Age = rng.Intn(cfg.MaxAge + 1)
		}
	}
	return agents, nil
}

// Uniform places n agents uniformly at random within the bounds. Agents on
// periodic axes stay strictly inside [0, bound).
func Uniform(rng *rand.Rand, n int, meta model.SpatialMetadata) []Agent {
	agents := make([]Agent, n)
	for i := range agents {
		for axis := 0; axis < meta.Dimensionality; axis++ {
			lo, hi := meta.Lower[axis], meta.Upper[axis]
			agents[i].Position[axis] = lo + rng.Float64()*(hi-lo)
		}
	}
	return agents
}

// Clustered places n agents by rejection sampling against an OpenSimplex
// density field, giving patchy habitats with empty gaps between clusters.
func Clustered(rng *rand.Rand, seed int64, n int, meta model.SpatialMetadata, scale float64) []Agent {
	if scale <= 0 {
		scale = 1
	}
	noise := opensimplex.NewNormalized(seed)
	density := func(p [model.MaxDimensionality]float64) float64 {
		x, y, z := p[0]/scale, p[1]/scale, p[2]/scale
		var v float64
		switch meta.Dimensionality {
		case 1:
			v = noise.Eval2(x, 0)
		case 2:
			v = noise.Eval2(x, y)
		default:
			v = noise.Eval3(x, y, z)
		}
		return math.Pow(v, 3)
	}

	agents := make([]Agent, 0, n)
	for len(agents) < n {
		var a Agent
		for axis := 0; axis < meta.Dimensionality; axis++ {
			lo, hi := meta.Lower[axis], meta.Upper[axis]
			a.Position[axis] = lo + rng.Float64()*(hi-lo)
		}
		if rng.Float64() < density(a.Position) {
			agents = append(agents, a)
		}
	}
	return agents
}
