package interaction

import (
	"math"
	"sort"

	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
	"spatialengine/internal/parallel"
	"spatialengine/internal/sparse"
	"spatialengine/internal/spatial"
)

// pair resolves the evaluated caches of a receiver and an exerter
// population and checks that their spaces can be compared.
func (in *Interaction) pair(op string, receiverPop, exerterPop model.Population, needSpatial bool) (*populationCache, *populationCache, error) {
	if needSpatial && in.axes.Count == 0 {
		return nil, nil, model.Errorf(model.ErrConfiguration, op, "query requires a spatial interaction")
	}
	rc, err := in.cacheFor(op, receiverPop)
	if err != nil {
		return nil, nil, err
	}
	ec, err := in.cacheFor(op, exerterPop)
	if err != nil {
		return nil, nil, err
	}
	if in.axes.Count > 0 {
		if err := spatial.CheckCompatible(op, receiverPop.Spatial(), exerterPop.Spatial(), in.axes); err != nil {
			return nil, nil, err
		}
	}
	return rc, ec, nil
}

func checkAgents(op string, c *populationCache, agents ...int) error {
	for _, agent := range agents {
		if agent < 0 || agent >= c.agents {
			return model.Errorf(model.ErrConfiguration, op, "agent index %d out of range for population %s of %d agents", agent, c.pop.ID(), c.agents)
		}
	}
	return nil
}

// exclude is the node agent to skip: the receiver itself when it is also a
// candidate exerter.
func exclude(rc, ec *populationCache, receiver int) int32 {
	if rc == ec {
		return int32(receiver)
	}
	return spatial.None
}

// workersFor serialises loops that may call modifier callbacks.
func (in *Interaction) workersFor(ec *populationCache) int {
	if len(ec.modifiers) > 0 {
		return 1
	}
	return in.workers
}

// NeighborCount counts, for each receiver, the exerter agents within the
// maximum distance, ignoring constraints.
func (in *Interaction) NeighborCount(receiverPop model.Population, receivers []int, exerterPop model.Population) ([]int, error) {
	const op = "interaction.NeighborCount"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, err
	}
	tree, err := in.allTree(ec)
	if err != nil {
		return nil, err
	}
	counts := make([]int, len(receivers))
	err = parallel.For(in.workers, len(receivers), func(_, i int) error {
		r := receivers[i]
		q := rc.positions.Point(r)
		counts[i] = tree.CountWithin(&q, in.maxDistSq, exclude(rc, ec, r))
		return nil
	})
	return counts, err
}

// InteractingNeighborCount counts eligible exerters within the maximum
// distance. Ineligible receivers count zero.
func (in *Interaction) InteractingNeighborCount(receiverPop model.Population, receivers []int, exerterPop model.Population) ([]int, error) {
	const op = "interaction.InteractingNeighborCount"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, err
	}
	tree, err := in.exerterTree(op, ec)
	if err != nil {
		return nil, err
	}
	counts := make([]int, len(receivers))
	err = parallel.For(in.workers, len(receivers), func(_, i int) error {
		r := receivers[i]
		ok, err := in.receiverEligible(rc, r)
		if err != nil || !ok {
			return err
		}
		q := rc.positions.Point(r)
		counts[i] = tree.CountWithin(&q, in.maxDistSq, exclude(rc, ec, r))
		return nil
	})
	return counts, err
}

// NearestNeighbors returns up to count agents of exerterPop nearest to the
// receiver and within the maximum distance, ignoring constraints. Results
// are ordered by distance except when every candidate is requested.
func (in *Interaction) NearestNeighbors(receiverPop model.Population, receiver, count int, exerterPop model.Population) ([]int, error) {
	const op = "interaction.NearestNeighbors"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkNearest(op, rc, receiver, count); err != nil {
		return nil, err
	}
	tree, err := in.allTree(ec)
	if err != nil {
		return nil, err
	}
	q := rc.positions.Point(receiver)
	return in.nearest(in.pools[0], tree, ec.agents, &q, exclude(rc, ec, receiver), count), nil
}

// NearestInteractingNeighbors is NearestNeighbors over eligible exerters.
// An ineligible receiver has no neighbours.
func (in *Interaction) NearestInteractingNeighbors(receiverPop model.Population, receiver, count int, exerterPop model.Population) ([]int, error) {
	const op = "interaction.NearestInteractingNeighbors"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkNearest(op, rc, receiver, count); err != nil {
		return nil, err
	}
	tree, err := in.exerterTree(op, ec)
	if err != nil {
		return nil, err
	}
	ok, err := in.receiverEligible(rc, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []int{}, nil
	}
	q := rc.positions.Point(receiver)
	return in.nearest(in.pools[0], tree, ec.agents, &q, exclude(rc, ec, receiver), count), nil
}

// NearestNeighborsOfPoint finds agents of exerterPop nearest to an arbitrary
// point given in interaction axes.
func (in *Interaction) NearestNeighborsOfPoint(exerterPop model.Population, point []float64, count int) ([]int, error) {
	const op = "interaction.NearestNeighborsOfPoint"
	if in.axes.Count == 0 {
		return nil, model.Errorf(model.ErrConfiguration, op, "query requires a spatial interaction")
	}
	ec, err := in.cacheFor(op, exerterPop)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, model.Errorf(model.ErrConfiguration, op, "requested neighbour count must be >= 0, got %d", count)
	}
	q, err := in.pointFor(op, ec, point)
	if err != nil {
		return nil, err
	}
	tree, err := in.allTree(ec)
	if err != nil {
		return nil, err
	}
	return in.nearest(in.pools[0], tree, ec.agents, &q, spatial.None, count), nil
}

// NeighborsWithin returns every exerter agent within the maximum distance
// of the receiver, in no particular order.
func (in *Interaction) NeighborsWithin(receiverPop model.Population, receiver int, exerterPop model.Population) ([]int, error) {
	const op = "interaction.NeighborsWithin"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receiver); err != nil {
		return nil, err
	}
	tree, err := in.allTree(ec)
	if err != nil {
		return nil, err
	}
	q := rc.positions.Point(receiver)
	return tree.AllWithin(&q, in.maxDistSq, exclude(rc, ec, receiver), []int{}), nil
}

func checkNearest(op string, rc *populationCache, receiver, count int) error {
	if count < 0 {
		return model.Errorf(model.ErrConfiguration, op, "requested neighbour count must be >= 0, got %d", count)
	}
	return checkAgents(op, rc, receiver)
}

// pointFor validates a caller-supplied point against a population's space.
func (in *Interaction) pointFor(op string, c *populationCache, point []float64) (spatial.Point, error) {
	var q spatial.Point
	if len(point) != in.axes.Count {
		return q, model.Errorf(model.ErrConfiguration, op, "point has %d coordinates but the interaction has spatiality %d", len(point), in.axes.Count)
	}
	space := c.positions.Space
	for i, v := range point {
		if space.Periodic[i] && (v < 0 || v > space.Upper[i]) {
			return q, model.Errorf(model.ErrConfiguration, op, "point coordinate %g lies outside the periodic bounds [0, %g] of axis %d", v, space.Upper[i], in.axes.Physical[i])
		}
		q[i] = v
	}
	return q, nil
}

type neighbor struct {
	agent int
	dist  float32
}

// nearest answers a k-nearest query. A single neighbour uses branch and
// bound without distance pruning and checks the limit afterwards; asking
// for at least every candidate degenerates to a radius search; anything in
// between sorts a full distance fill.
func (in *Interaction) nearest(pool *sparse.Pool, tree *spatial.Tree, ncols int, q *spatial.Point, skip int32, count int) []int {
	switch {
	case count == 0 || tree.Root() == spatial.None:
		return []int{}
	case count == 1:
		agent, dSq, found := tree.Nearest(q, skip)
		if !found || dSq > in.maxDistSq {
			return []int{}
		}
		return []int{int(agent)}
	case count >= tree.Agents():
		return tree.AllWithin(q, in.maxDistSq, skip, []int{})
	}

	v := pool.Get(ncols, sparse.Distance)
	defer pool.Put(v)
	tree.FillDistance(q, in.maxDistSq, skip, v)
	v.Finish()
	cols, dists := v.Distances()
	found := make([]neighbor, len(cols))
	for i, c := range cols {
		found[i] = neighbor{agent: int(c), dist: dists[i]}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].agent < found[j].agent
	})
	if len(found) > count {
		found = found[:count]
	}
	out := make([]int, len(found))
	for i, n := range found {
		out[i] = n.agent
	}
	return out
}

func allAgents(n int) []int {
	agents := make([]int, n)
	for i := range agents {
		agents[i] = i
	}
	return agents
}

// Distance returns the distance from the receiver to each exerter, or to
// every agent of exerterPop when exerters is nil. Constraints and the
// maximum distance are not applied.
func (in *Interaction) Distance(receiverPop model.Population, receiver int, exerterPop model.Population, exerters []int) ([]float64, error) {
	const op = "interaction.Distance"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receiver); err != nil {
		return nil, err
	}
	q := rc.positions.Point(receiver)
	return in.distancesFrom(op, ec, &q, exerters)
}

// DistanceFromPoint returns the distance from an arbitrary point to each
// exerter, or to every agent when exerters is nil.
func (in *Interaction) DistanceFromPoint(point []float64, exerterPop model.Population, exerters []int) ([]float64, error) {
	const op = "interaction.DistanceFromPoint"
	if in.axes.Count == 0 {
		return nil, model.Errorf(model.ErrConfiguration, op, "query requires a spatial interaction")
	}
	ec, err := in.cacheFor(op, exerterPop)
	if err != nil {
		return nil, err
	}
	q, err := in.pointFor(op, ec, point)
	if err != nil {
		return nil, err
	}
	return in.distancesFrom(op, ec, &q, exerters)
}

func (in *Interaction) distancesFrom(op string, ec *populationCache, q *spatial.Point, exerters []int) ([]float64, error) {
	if exerters == nil {
		exerters = allAgents(ec.agents)
	}
	if err := checkAgents(op, ec, exerters...); err != nil {
		return nil, err
	}
	space := ec.positions.Space
	out := make([]float64, len(exerters))
	for i, e := range exerters {
		p := ec.positions.Point(e)
		out[i] = space.Distance(q, &p)
	}
	return out, nil
}

// InteractionDistance is Distance with +Inf for every pair that does not
// interact: the receiver itself, ineligible receivers or exerters, and
// exerters beyond the maximum distance.
func (in *Interaction) InteractionDistance(receiverPop model.Population, receiver int, exerterPop model.Population, exerters []int) ([]float64, error) {
	const op = "interaction.InteractionDistance"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receiver); err != nil {
		return nil, err
	}
	if exerters == nil {
		exerters = allAgents(ec.agents)
	}
	if err := checkAgents(op, ec, exerters...); err != nil {
		return nil, err
	}

	out := make([]float64, len(exerters))
	for i := range out {
		out[i] = math.Inf(1)
	}
	ok, err := in.receiverEligible(rc, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}
	q := rc.positions.Point(receiver)
	space := ec.positions.Space
	for i, e := range exerters {
		if rc == ec && e == receiver {
			continue
		}
		eligible, err := in.exerterEligible(op, ec, e)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}
		p := ec.positions.Point(e)
		if d := space.Distance(&q, &p); d <= in.maxDistance {
			out[i] = d
		}
	}
	return out, nil
}

// Strength returns the interaction strength exerted on the receiver by each
// exerter, or by every agent of exerterPop when exerters is nil. Pairs that
// do not interact have strength zero. Non-spatial interactions are allowed.
// Values carry float32 precision on both paths.
func (in *Interaction) Strength(receiverPop model.Population, receiver int, exerterPop model.Population, exerters []int) ([]float64, error) {
	const op = "interaction.Strength"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, false)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receiver); err != nil {
		return nil, err
	}
	all := exerters == nil
	if all {
		exerters = allAgents(ec.agents)
	} else if err := checkAgents(op, ec, exerters...); err != nil {
		return nil, err
	}

	out := make([]float64, len(exerters))
	ok, err := in.receiverEligible(rc, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}

	if all && in.axes.Count > 0 {
		tree, err := in.exerterTree(op, ec)
		if err != nil {
			return nil, err
		}
		pool := in.pools[0]
		v, err := in.fillStrengths(pool, rc, ec, tree, receiver)
		if err != nil {
			return nil, err
		}
		cols, vals := v.Strengths()
		for i, c := range cols {
			out[c] = float64(vals[i])
		}
		pool.Put(v)
		return out, nil
	}

	var q spatial.Point
	if in.axes.Count > 0 {
		q = rc.positions.Point(receiver)
	}
	for i, e := range exerters {
		if rc == ec && e == receiver {
			continue
		}
		eligible, err := in.exerterEligible(op, ec, e)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}
		d := math.NaN()
		if in.axes.Count > 0 {
			p := ec.positions.Point(e)
			d = ec.positions.Space.Distance(&q, &p)
			if d > in.maxDistance {
				continue
			}
		}
		s, err := in.modify(rc, ec, receiver, e, in.strength(d), d)
		if err != nil {
			return nil, err
		}
		// Match the float32 precision of the sparse fill.
		out[i] = float64(float32(s))
	}
	return out, nil
}

// modify passes a raw strength through the exerter population's modifier
// callbacks in order.
func (in *Interaction) modify(rc, ec *populationCache, receiver, exerter int, s, d float64) (float64, error) {
	if len(ec.modifiers) == 0 {
		return s, nil
	}
	r := model.AgentRef{Population: rc.pop.ID(), Index: receiver}
	e := model.AgentRef{Population: ec.pop.ID(), Index: exerter}
	for _, m := range ec.modifiers {
		v, err := m.InvokeModifier(r, e, s, d)
		if err != nil {
			return 0, err
		}
		if err := kernel.CheckModifierResult(v); err != nil {
			return 0, err
		}
		s = v
	}
	return s, nil
}

// fillStrengths returns a finished strength vector for one receiver taken
// from pool; the caller puts it back. Two-dimensional interactions without
// modifiers evaluate the kernel during the traversal; everything else fills
// distances and converts them in place.
func (in *Interaction) fillStrengths(pool *sparse.Pool, rc, ec *populationCache, tree *spatial.Tree, receiver int) (*sparse.Vector, error) {
	v := pool.Get(ec.agents, sparse.Strength)
	q := rc.positions.Point(receiver)
	skip := exclude(rc, ec, receiver)
	if in.axes.Count == 2 && len(ec.modifiers) == 0 {
		tree.FillStrength2D(&q, in.maxDistSq, skip, in.strength, v)
		v.Finish()
		return v, nil
	}
	tree.FillDistance(&q, in.maxDistSq, skip, v)
	v.Finish()
	err := v.TransformDistancesToStrengths(func(col uint32, d float64) (float64, error) {
		return in.modify(rc, ec, receiver, int(col), in.strength(d), d)
	})
	if err != nil {
		pool.Put(v)
		return nil, err
	}
	return v, nil
}

// TotalOfNeighborStrengths sums, for each receiver, the strengths exerted by
// every interacting neighbour.
func (in *Interaction) TotalOfNeighborStrengths(receiverPop model.Population, receivers []int, exerterPop model.Population) ([]float64, error) {
	const op = "interaction.TotalOfNeighborStrengths"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, err
	}
	tree, err := in.exerterTree(op, ec)
	if err != nil {
		return nil, err
	}
	totals := make([]float64, len(receivers))
	err = parallel.For(in.workersFor(ec), len(receivers), func(worker, i int) error {
		total, err := in.totalStrength(in.pools[worker], rc, ec, tree, receivers[i])
		totals[i] = total
		return err
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (in *Interaction) totalStrength(pool *sparse.Pool, rc, ec *populationCache, tree *spatial.Tree, receiver int) (float64, error) {
	ok, err := in.receiverEligible(rc, receiver)
	if err != nil || !ok {
		return 0, err
	}
	v, err := in.fillStrengths(pool, rc, ec, tree, receiver)
	if err != nil {
		return 0, err
	}
	_, vals := v.Strengths()
	var total float64
	for _, s := range vals {
		total += float64(s)
	}
	pool.Put(v)
	return total, nil
}
