package interaction

import (
	"spatialengine/internal/model"
	"spatialengine/internal/parallel"
)

// ClippedIntegral returns, for each receiver, the kernel integral over its
// neighbourhood truncated by the non-periodic edges of its population's
// space. Periodic axes are never truncated.
func (in *Interaction) ClippedIntegral(receiverPop model.Population, receivers []int) ([]float64, error) {
	const op = "interaction.ClippedIntegral"
	if in.axes.Count == 0 {
		return nil, model.Errorf(model.ErrConfiguration, op, "query requires a spatial interaction")
	}
	rc, err := in.cacheFor(op, receiverPop)
	if err != nil {
		return nil, err
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, err
	}
	if err := in.integral.Ensure(in.kernel, in.axes.Count); err != nil {
		return nil, err
	}
	out := make([]float64, len(receivers))
	for i, r := range receivers {
		out[i] = in.clippedIntegral(rc, r)
	}
	return out, nil
}

func (in *Interaction) clippedIntegral(rc *populationCache, receiver int) float64 {
	space := rc.positions.Space
	p := rc.positions.Point(receiver)
	var edges [4]float64
	for axis := 0; axis < in.axes.Count; axis++ {
		if space.Periodic[axis] {
			edges[2*axis] = in.maxDistance
			edges[2*axis+1] = in.maxDistance
			continue
		}
		edges[2*axis] = p[axis] - space.Lower[axis]
		edges[2*axis+1] = space.Upper[axis] - p[axis]
	}
	if in.axes.Count == 1 {
		return in.integral.Value1D(edges[0], edges[1])
	}
	return in.integral.Value2D(edges[0], edges[1], edges[2], edges[3])
}

// LocalPopulationDensity divides each receiver's total interaction strength
// by its clipped integral. When the receiver is itself an eligible exerter
// of the same population, its own strength at distance zero is counted
// once, so a lone agent has a non-zero density. Ineligible receivers have
// density zero. Modifier callbacks are not supported, and the exerter
// population must share the receiver's bounds.
func (in *Interaction) LocalPopulationDensity(receiverPop model.Population, receivers []int, exerterPop model.Population) ([]float64, error) {
	const op = "interaction.LocalPopulationDensity"
	rc, ec, err := in.pair(op, receiverPop, exerterPop, true)
	if err != nil {
		return nil, err
	}
	if len(ec.modifiers) > 0 {
		return nil, model.Errorf(model.ErrConfiguration, op, "local population density cannot be computed with interaction modifier callbacks registered for population %s", ec.pop.ID())
	}
	rs, es := rc.positions.Space, ec.positions.Space
	if rs.Lower != es.Lower || rs.Upper != es.Upper {
		return nil, model.Errorf(model.ErrCompatibility, op, "local population density requires receiver population %s and exerter population %s to have identical bounds", rc.pop.ID(), ec.pop.ID())
	}
	if err := checkAgents(op, rc, receivers...); err != nil {
		return nil, err
	}
	if err := in.integral.Ensure(in.kernel, in.axes.Count); err != nil {
		return nil, err
	}
	tree, err := in.exerterTree(op, ec)
	if err != nil {
		return nil, err
	}

	self := in.kernel.Strength(0)
	density := make([]float64, len(receivers))
	err = parallel.For(in.workers, len(receivers), func(worker, i int) error {
		r := receivers[i]
		ok, err := in.receiverEligible(rc, r)
		if err != nil || !ok {
			return err
		}
		total, err := in.totalStrength(in.pools[worker], rc, ec, tree, r)
		if err != nil {
			return err
		}
		if rc == ec {
			ok, err := in.exerterEligible(op, ec, r)
			if err != nil {
				return err
			}
			if ok {
				total += self
			}
		}
		density[i] = total / in.clippedIntegral(rc, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return density, nil
}
