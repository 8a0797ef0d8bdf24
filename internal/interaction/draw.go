package interaction

import (
	"math"
	"math/rand"

	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
	"spatialengine/internal/parallel"
	"spatialengine/internal/sampling"
	"spatialengine/internal/sparse"
	"spatialengine/internal/spatial"
)

// DrawByStrength draws count exerters with replacement, each with
// probability proportional to the strength it exerts on the receiver. An
// ineligible receiver, or one with no interacting exerters, draws nothing.
func (in *Interaction) DrawByStrength(receiverPop model.Population, receiver, count int, exerterPop model.Population, rng sampling.Source) ([]int, error) {
	const op = "interaction.DrawByStrength"
	rc, ec, tree, err := in.prepareDraw(op, receiverPop, exerterPop, count, receiver)
	if err != nil {
		return nil, err
	}
	return in.draw(op, in.pools[0], rc, ec, tree, receiver, count, rng)
}

// DrawByStrengthAll draws for every receiver. Worker w draws with a source
// seeded by seed+w over a fixed contiguous block of receivers, so results
// are reproducible for a given seed and worker count. Draws run serially
// when modifier callbacks are registered.
func (in *Interaction) DrawByStrengthAll(receiverPop model.Population, receivers []int, count int, exerterPop model.Population, seed int64) ([][]int, error) {
	const op = "interaction.DrawByStrengthAll"
	rc, ec, tree, err := in.prepareDraw(op, receiverPop, exerterPop, count, receivers...)
	if err != nil {
		return nil, err
	}
	workers := in.workersFor(ec)
	rngs := make([]*rand.Rand, workers)
	for w := range rngs {
		rngs[w] = rand.New(rand.NewSource(seed + int64(w)))
	}
	out := make([][]int, len(receivers))
	err = parallel.For(workers, len(receivers), func(worker, i int) error {
		drawn, err := in.draw(op, in.pools[worker], rc, ec, tree, receivers[i], count, rngs[worker])
		out[i] = drawn
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// prepareDraw validates a draw and builds the exerter index before any
// parallel region. The tree is nil for non-spatial interactions.
func (in *Interaction) prepareDraw(op string, receiverPop, exerterPop model.Population, count int, receivers ...int) (*populationCache, *populationCache, *spatial.Tree, error) {
	rc, ec, err := in.pair(op, receiverPop, exerterPop, false)
	if err != nil {
		return nil, nil, nil, err
	}
	if count < 0 {
		return nil, nil, nil, model.Errorf(model.ErrConfiguration, op, "draw count must be >= 0, got %d", count)
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, nil, nil, err
	}
	if in.axes.Count == 0 {
		if ec.exerterFault != "" {
			return nil, nil, nil, model.Errorf(model.ErrConstraint, op, "population %s cannot act as exerter: %s", ec.pop.ID(), ec.exerterFault)
		}
		return rc, ec, nil, nil
	}
	tree, err := in.exerterTree(op, ec)
	if err != nil {
		return nil, nil, nil, err
	}
	return rc, ec, tree, nil
}

// uniformDraw reports whether every interacting exerter has the same
// strength, so draws need no weights.
func (in *Interaction) uniformDraw(ec *populationCache) bool {
	return in.kernel.Type == kernel.Fixed && len(ec.modifiers) == 0
}

func (in *Interaction) draw(op string, pool *sparse.Pool, rc, ec *populationCache, tree *spatial.Tree, receiver, count int, rng sampling.Source) ([]int, error) {
	if count == 0 {
		return []int{}, nil
	}
	ok, err := in.receiverEligible(rc, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []int{}, nil
	}
	if tree == nil {
		return in.drawNonSpatial(op, rc, ec, receiver, count, rng)
	}
	if in.uniformDraw(ec) && in.kernel.Params[0] <= 0 {
		return []int{}, nil
	}

	q := rc.positions.Point(receiver)
	skip := exclude(rc, ec, receiver)
	out := make([]int, 0, count)

	if in.uniformDraw(ec) {
		v := pool.Get(ec.agents, sparse.Presence)
		tree.FillPresence(&q, in.maxDistSq, skip, v)
		v.Finish()
		cols := v.Presences()
		if len(cols) > 0 {
			for i := 0; i < count; i++ {
				out = append(out, int(cols[rng.Intn(len(cols))]))
			}
		}
		pool.Put(v)
		return out, nil
	}

	v, err := in.fillStrengths(pool, rc, ec, tree, receiver)
	if err != nil {
		return nil, err
	}
	cols, weights := v.Strengths()
	picks := sampling.Draw(rng, weights, count, make([]int, 0, count))
	for _, p := range picks {
		out = append(out, int(cols[p]))
	}
	pool.Put(v)
	return out, nil
}

// drawNonSpatial weighs every eligible exerter. Modifiers see a NaN
// distance.
func (in *Interaction) drawNonSpatial(op string, rc, ec *populationCache, receiver, count int, rng sampling.Source) ([]int, error) {
	candidates := make([]int, 0, ec.agents)
	for e := 0; e < ec.agents; e++ {
		if rc == ec && e == receiver {
			continue
		}
		ok, err := in.exerterEligible(op, ec, e)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return []int{}, nil
	}

	if in.uniformDraw(ec) {
		if in.kernel.Params[0] <= 0 {
			return []int{}, nil
		}
		picks := sampling.DrawUniform(rng, len(candidates), count, make([]int, 0, count))
		for i, p := range picks {
			picks[i] = candidates[p]
		}
		return picks, nil
	}

	weights := make([]float32, len(candidates))
	for i, e := range candidates {
		s, err := in.modify(rc, ec, receiver, e, in.strength(math.NaN()), math.NaN())
		if err != nil {
			return nil, err
		}
		weights[i] = float32(s)
	}
	picks := sampling.Draw(rng, weights, count, make([]int, 0, count))
	for i, p := range picks {
		picks[i] = candidates[p]
	}
	return picks, nil
}
