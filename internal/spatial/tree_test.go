package spatial

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"spatialengine/internal/model"
	"spatialengine/internal/popgen"
	"spatialengine/internal/sparse"
)

func buildTree(t *testing.T, pop model.Population, spec string) (*Tree, Positions) {
	t.Helper()
	axes, err := ParseAxes(spec)
	if err != nil {
		t.Fatalf("parse axes: %v", err)
	}
	pos, err := Capture(pop, axes, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	tree := NewTree(pos.Count)
	if err := tree.Snapshot(&pos, 0, pos.Count, nil); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := tree.Link(pos.Space); err != nil {
		t.Fatalf("link: %v", err)
	}
	return tree, pos
}

func randomPopulation(t *testing.T, dims, n int, extent float64, periodic bool, seed int64) *popgen.Population {
	t.Helper()
	meta := popgen.Box(dims, extent, periodic)
	agents, err := popgen.Generate(popgen.LayoutConfig{Count: n, Seed: seed}, meta)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return popgen.New("p1", meta, agents)
}

func TestTreeCheckPasses(t *testing.T) {
	for _, spec := range []string{"x", "xy", "xyz"} {
		pop := randomPopulation(t, 3, 500, 10, false, 1)
		tree, _ := buildTree(t, pop, spec)
		if err := tree.Check(); err != nil {
			t.Fatalf("%s: check: %v", spec, err)
		}
		if tree.Count() != 500 || tree.Agents() != 500 {
			t.Fatalf("%s: unexpected node count %d agents %d", spec, tree.Count(), tree.Agents())
		}
	}
}

func TestTreeHandlesDuplicateCoordinates(t *testing.T) {
	meta := popgen.Box(2, 10, false)
	agents := make([]popgen.Agent, 200)
	for i := range agents {
		agents[i].Position = [3]float64{float64(i % 3), 5}
	}
	tree, _ := buildTree(t, popgen.New("p1", meta, agents), "xy")
	if err := tree.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	q := Point{1, 5}
	if got := tree.CountWithin(&q, 0, None); got != 67 {
		t.Fatalf("expected 67 coincident agents, got %d", got)
	}
}

func TestTreeEmpty(t *testing.T) {
	meta := popgen.Box(2, 10, false)
	tree, _ := buildTree(t, popgen.New("p1", meta, nil), "xy")
	if tree.Root() != None {
		t.Fatalf("expected empty root, got %d", tree.Root())
	}
	q := Point{1, 1}
	if tree.CountWithin(&q, 100, None) != 0 {
		t.Fatal("expected no neighbours in empty tree")
	}
	if _, _, found := tree.Nearest(&q, None); found {
		t.Fatal("expected nearest to find nothing")
	}
	if err := tree.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestTreePeriodicReplication(t *testing.T) {
	pop := randomPopulation(t, 2, 40, 10, true, 2)
	tree, _ := buildTree(t, pop, "xy")
	if tree.Count() != 9*40 {
		t.Fatalf("expected 9x replication, got %d nodes", tree.Count())
	}
	if tree.Agents() != 40 {
		t.Fatalf("expected 40 distinct agents, got %d", tree.Agents())
	}
	if err := tree.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}

	one, _ := buildTree(t, randomPopulation(t, 1, 40, 10, true, 2), "x")
	if one.Count() != 3*40 {
		t.Fatalf("expected 3x replication in 1D, got %d nodes", one.Count())
	}
}

func TestTreeSnapshotFilter(t *testing.T) {
	pop := randomPopulation(t, 2, 100, 10, false, 3)
	axes, _ := ParseAxes("xy")
	pos, err := Capture(pop, axes, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	tree := NewTree(0)
	err = tree.Snapshot(&pos, 10, 60, func(agent int) (bool, error) { return agent%2 == 0, nil })
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !tree.Snapshotted() || tree.Linked() {
		t.Fatal("expected snapshotted but unlinked tree")
	}
	if err := tree.Link(pos.Space); err != nil {
		t.Fatalf("link: %v", err)
	}
	if tree.Count() != 25 {
		t.Fatalf("expected 25 filtered nodes, got %d", tree.Count())
	}
	for _, n := range tree.Nodes() {
		if n.Agent < 10 || n.Agent >= 60 || n.Agent%2 != 0 {
			t.Fatalf("unexpected agent %d in filtered tree", n.Agent)
		}
	}
}

// Every search must agree with a brute-force scan using wrapped distances.
func TestTreeSearchesMatchBruteForce(t *testing.T) {
	cases := []struct {
		spec     string
		dims     int
		periodic bool
		maxD     float64
	}{
		{"x", 1, false, 0.7},
		{"xy", 2, false, 1.3},
		{"xy", 2, true, 2.1},
		{"xyz", 3, false, 2.5},
		{"xyz", 3, true, 1.9},
	}
	for _, tc := range cases {
		pop := randomPopulation(t, tc.dims, 300, 10, tc.periodic, int64(tc.dims))
		tree, pos := buildTree(t, pop, tc.spec)
		rng := rand.New(rand.NewSource(7))
		maxDSq := tc.maxD * tc.maxD

		for trial := 0; trial < 40; trial++ {
			receiver := rng.Intn(pos.Count)
			q := pos.Point(receiver)
			exclude := int32(receiver)

			var want []int
			nearest, nearestD := -1, math.Inf(1)
			for j := 0; j < pos.Count; j++ {
				if j == receiver {
					continue
				}
				p := pos.Point(j)
				d := pos.Space.Distance(&q, &p)
				if d <= tc.maxD {
					want = append(want, j)
				}
				if d < nearestD {
					nearest, nearestD = j, d
				}
			}

			if got := tree.CountWithin(&q, maxDSq, exclude); got != len(want) {
				t.Fatalf("%s periodic=%v: count=%d want %d", tc.spec, tc.periodic, got, len(want))
			}
			got := tree.AllWithin(&q, maxDSq, exclude, nil)
			sort.Ints(got)
			if len(got) != len(want) {
				t.Fatalf("%s: all-within returned %d agents, want %d", tc.spec, len(got), len(want))
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("%s: all-within mismatch at %d: %d vs %d", tc.spec, i, got[i], want[i])
				}
			}

			agent, dSq, found := tree.Nearest(&q, exclude)
			if !found || math.Abs(math.Sqrt(dSq)-nearestD) > 1e-9 {
				t.Fatalf("%s: nearest=%d (%g) want %d (%g)", tc.spec, agent, math.Sqrt(dSq), nearest, nearestD)
			}

			v := sparse.New(pos.Count, sparse.Distance)
			tree.FillDistance(&q, maxDSq, exclude, v)
			v.Finish()
			cols, dists := v.Distances()
			if len(cols) != len(want) {
				t.Fatalf("%s: distance fill returned %d entries, want %d", tc.spec, len(cols), len(want))
			}
			for i, c := range cols {
				p := pos.Point(int(c))
				if d := pos.Space.Distance(&q, &p); math.Abs(float64(dists[i])-d) > 1e-4 {
					t.Fatalf("%s: distance to %d = %g want %g", tc.spec, c, dists[i], d)
				}
			}
		}
	}
}

func TestFillStrength2DMatchesDistanceFill(t *testing.T) {
	pop := randomPopulation(t, 2, 200, 10, false, 11)
	tree, pos := buildTree(t, pop, "xy")
	strength := func(d float64) float64 { return 2 * math.Exp(-d) }

	q := pos.Point(17)
	s := sparse.New(pos.Count, sparse.Strength)
	tree.FillStrength2D(&q, 4, 17, strength, s)
	s.Finish()
	d := sparse.New(pos.Count, sparse.Distance)
	tree.FillDistance(&q, 4, 17, d)
	d.Finish()

	sCols, sVals := s.Strengths()
	dCols, dVals := d.Distances()
	if len(sCols) != len(dCols) {
		t.Fatalf("strength fill found %d neighbours, distance fill %d", len(sCols), len(dCols))
	}
	byCol := map[uint32]float32{}
	for i, c := range dCols {
		byCol[c] = dVals[i]
	}
	for i, c := range sCols {
		want := strength(float64(byCol[c]))
		if math.Abs(float64(sVals[i])-want) > 1e-4 {
			t.Fatalf("strength for %d = %g want %g", c, sVals[i], want)
		}
	}

	one, onePos := buildTree(t, randomPopulation(t, 1, 10, 10, false, 1), "x")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-2D tree")
		}
	}()
	q1 := onePos.Point(0)
	one.FillStrength2D(&q1, 1, None, strength, sparse.New(onePos.Count, sparse.Strength))
}
