package spatial

import (
	"spatialengine/internal/model"
)

// Positions is the coordinate snapshot of one population. Coords has a
// fixed stride of model.MaxDimensionality whatever the spatiality, and only
// the first Space.Dims slots of each stride are meaningful.
type Positions struct {
	Space
	Count  int
	Coords []float64
}

// Point returns the coordinates of one agent.
func (p *Positions) Point(agent int) [model.MaxDimensionality]float64 {
	var pt [model.MaxDimensionality]float64
	copy(pt[:], p.Coords[agent*model.MaxDimensionality:agent*model.MaxDimensionality+model.MaxDimensionality])
	return pt
}

// Capture copies the requested axes of every agent into buf (grown as
// needed). Coordinates on periodic axes must lie within [0, bound].
func Capture(pop model.Population, axes Axes, buf []float64) (Positions, error) {
	const op = "spatial.Capture"
	meta := pop.Spatial()
	if meta.Dimensionality < axes.RequiredDimensionality() {
		return Positions{}, model.Errorf(model.ErrCompatibility, op,
			"population %s has dimensionality %d but spatiality %q requires %d",
			pop.ID(), meta.Dimensionality, axes.Spec, axes.RequiredDimensionality())
	}

	space := SpaceFor(meta, axes)
	n := pop.Len()
	size := n * model.MaxDimensionality
	if cap(buf) < size {
		buf = make([]float64, size)
	}
	buf = buf[:size]

	for agent := 0; agent < n; agent++ {
		base := agent * model.MaxDimensionality
		for i := 0; i < model.MaxDimensionality; i++ {
			if i >= axes.Count {
				buf[base+i] = 0
				continue
			}
			v := pop.Coordinate(agent, axes.Physical[i])
			if space.Periodic[i] && (v < 0 || v > space.Upper[i]) {
				return Positions{}, model.Errorf(model.ErrConfiguration, op,
					"agent %d of population %s has coordinate %g outside the periodic bounds [0, %g] of axis %d",
					agent, pop.ID(), v, space.Upper[i], axes.Physical[i])
			}
			buf[base+i] = v
		}
	}

	return Positions{Space: space, Count: n, Coords: buf}, nil
}
