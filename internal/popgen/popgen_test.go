package popgen

import (
	"testing"

	"spatialengine/internal/model"
)

func TestGenerateOrdersSexes(t *testing.T) {
	meta := Box(2, 10, false)
	agents, err := Generate(LayoutConfig{Count: 200, Seed: 3, MaleFraction: 0.5}, meta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pop := New("p1", meta, agents)
	if pop.Len() != 200 {
		t.Fatalf("unexpected population size: %d", pop.Len())
	}
	first := pop.FirstMaleIndex()
	if first <= 0 || first >= pop.Len() {
		t.Fatalf("expected a mixed population, first male index=%d", first)
	}
	for i := 0; i < pop.Len(); i++ {
		male := pop.Attributes(i).Sex == model.SexMale
		if male != (i >= first) {
			t.Fatalf("agent %d out of sex order (first male %d)", i, first)
		}
	}
}

func TestGenerateWithinBounds(t *testing.T) {
	for _, kind := range []string{"uniform", "simplex"} {
		meta := Box(3, 4, true)
		agents, err := Generate(LayoutConfig{Kind: kind, Count: 300, Seed: 9, NoiseScale: 1.5}, meta)
		if err != nil {
			t.Fatalf("%s: generate: %v", kind, err)
		}
		if len(agents) != 300 {
			t.Fatalf("%s: expected 300 agents, got %d", kind, len(agents))
		}
		for i, a := range agents {
			for axis := 0; axis < 3; axis++ {
				if a.Position[axis] < 0 || a.Position[axis] >= 4 {
					t.Fatalf("%s: agent %d axis %d out of bounds: %f", kind, i, axis, a.Position[axis])
				}
			}
			if a.Attributes.Sex != model.SexHermaphrodite {
				t.Fatalf("%s: expected hermaphrodites, got %v", kind, a.Attributes.Sex)
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	meta := Box(2, 10, false)
	cfg := LayoutConfig{Kind: "simplex", Count: 50, Seed: 42, TagRange: 3}
	a, err := Generate(cfg, meta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(cfg, meta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := range a {
		if a[i].Position != b[i].Position || *a[i].Attributes.Tag != *b[i].Attributes.Tag {
			t.Fatalf("agent %d differs between identical seeds", i)
		}
	}
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	if _, err := Generate(LayoutConfig{Kind: "hex", Count: 1}, Box(2, 1, false)); err == nil {
		t.Fatal("expected unsupported layout error")
	}
	if _, err := Generate(LayoutConfig{Count: 1, MaleFraction: 2}, Box(2, 1, false)); err == nil {
		t.Fatal("expected male fraction error")
	}
}
