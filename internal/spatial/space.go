package spatial

import (
	"math"

	"spatialengine/internal/model"
)

// Space is the geometry of a population expressed in interaction axes.
type Space struct {
	Dims     int
	Periodic [model.MaxDimensionality]bool
	Lower    [model.MaxDimensionality]float64
	Upper    [model.MaxDimensionality]float64
}

// SpaceFor projects species metadata onto the interaction axes.
func SpaceFor(meta model.SpatialMetadata, axes Axes) Space {
	s := Space{Dims: axes.Count}
	for i := 0; i < axes.Count; i++ {
		p := axes.Physical[i]
		s.Periodic[i] = meta.Periodic[p]
		s.Lower[i] = meta.Lower[p]
		s.Upper[i] = meta.Upper[p]
	}
	return s
}

func (s Space) AnyPeriodic() bool {
	for i := 0; i < s.Dims; i++ {
		if s.Periodic[i] {
			return true
		}
	}
	return false
}

// Distance is the Euclidean distance between two points, taking the short
// way around every periodic axis.
func (s Space) Distance(a, b *[model.MaxDimensionality]float64) float64 {
	var sum float64
	for i := 0; i < s.Dims; i++ {
		d := math.Abs(a[i] - b[i])
		if s.Periodic[i] {
			extent := s.Upper[i]
			if d > extent/2 {
				d = extent - d
			}
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CheckMaxDistance rejects a maximum distance that could see the same
// neighbour twice through a periodic boundary.
func (s Space) CheckMaxDistance(op string, maxDistance float64) error {
	for i := 0; i < s.Dims; i++ {
		if !s.Periodic[i] {
			continue
		}
		if maxDistance*2 >= s.Upper[i] {
			return model.Errorf(model.ErrConfiguration, op,
				"maximum interaction distance %g is >= half the periodic extent %g of axis %d; this would allow double-counting through wraparound",
				maxDistance, s.Upper[i], i)
		}
	}
	return nil
}

// CheckCompatible verifies that receivers in one species can be compared
// with exerters in another: same dimensionality, same periodicity, and the
// same bounds on periodic axes. Non-periodic bounds may differ.
func CheckCompatible(op string, receiver, exerter model.SpatialMetadata, axes Axes) error {
	required := axes.RequiredDimensionality()
	if receiver.Dimensionality < required || exerter.Dimensionality < required {
		return model.Errorf(model.ErrCompatibility, op, "spatiality %q requires dimensionality >= %d", axes.Spec, required)
	}
	if receiver.Dimensionality != exerter.Dimensionality {
		return model.Errorf(model.ErrCompatibility, op, "receiver dimensionality %d does not match exerter dimensionality %d", receiver.Dimensionality, exerter.Dimensionality)
	}
	for axis := 0; axis < receiver.Dimensionality; axis++ {
		if receiver.Periodic[axis] != exerter.Periodic[axis] {
			return model.Errorf(model.ErrCompatibility, op, "periodicity of axis %d differs between receiver and exerter", axis)
		}
		if receiver.Periodic[axis] && receiver.Upper[axis] != exerter.Upper[axis] {
			return model.Errorf(model.ErrCompatibility, op, "periodic bounds of axis %d differ between receiver (%g) and exerter (%g)", axis, receiver.Upper[axis], exerter.Upper[axis])
		}
	}
	return nil
}
