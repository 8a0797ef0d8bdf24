package interaction

import (
	"math"
	"testing"

	"spatialengine/internal/model"
	"spatialengine/internal/popgen"
)

func newInteraction(t *testing.T, cfg Config) *Interaction {
	t.Helper()
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	in, err := New(cfg)
	if err != nil {
		t.Fatalf("new interaction: %v", err)
	}
	return in
}

func uniformPopulation(t *testing.T, id string, dims, n int, extent float64, periodic bool, seed int64, opts ...popgen.Option) *popgen.Population {
	t.Helper()
	meta := popgen.Box(dims, extent, periodic)
	agents, err := popgen.Generate(popgen.LayoutConfig{Count: n, Seed: seed}, meta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return popgen.New(id, meta, agents, opts...)
}

func mustEvaluate(t *testing.T, in *Interaction, pops ...model.Population) {
	t.Helper()
	if err := in.Evaluate(pops...); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
}

// bruteDistance measures along the first dims axes, wrapping periodic ones.
func bruteDistance(meta model.SpatialMetadata, dims int, a, b [3]float64) float64 {
	var sum float64
	for i := 0; i < dims; i++ {
		d := math.Abs(a[i] - b[i])
		if meta.Periodic[i] && d > meta.Upper[i]/2 {
			d = meta.Upper[i] - d
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// bruteWithin lists agents of exerters within maxD of receiver r of
// receivers, excluding r itself when both are the same population.
func bruteWithin(receivers, exerters *popgen.Population, dims, r int, maxD float64) map[int]float64 {
	out := map[int]float64{}
	q := receivers.Agent(r).Position
	for e := 0; e < exerters.Len(); e++ {
		if receivers == exerters && e == r {
			continue
		}
		d := bruteDistance(exerters.Spatial(), dims, q, exerters.Agent(e).Position)
		if d <= maxD {
			out[e] = d
		}
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

type staticCallbacks map[string][]model.Modifier

func (s staticCallbacks) CurrentCallbacksFor(population string) []model.Modifier {
	return s[population]
}

type flagScheduler struct{ active bool }

func (f *flagScheduler) OffspringGenerationActive() bool { return f.active }

func ptr[T any](v T) *T { return &v }
