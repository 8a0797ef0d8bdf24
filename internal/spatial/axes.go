package spatial

import (
	"spatialengine/internal/model"
)

// Axes is the subset of physical axes an interaction measures distance in.
// Physical[i] is the species axis (0=x, 1=y, 2=z) backing interaction axis i.
type Axes struct {
	Spec     string
	Count    int
	Physical [model.MaxDimensionality]int
}

var axisSpecs = map[string][]int{
	"":    nil,
	"x":   {0},
	"y":   {1},
	"z":   {2},
	"xy":  {0, 1},
	"xz":  {0, 2},
	"yz":  {1, 2},
	"xyz": {0, 1, 2},
}

func ParseAxes(spec string) (Axes, error) {
	physical, ok := axisSpecs[spec]
	if !ok {
		return Axes{}, model.Errorf(model.ErrConfiguration, "spatial.ParseAxes", "spatiality %q must be \"\", \"x\", \"y\", \"z\", \"xy\", \"xz\", \"yz\", or \"xyz\"", spec)
	}
	a := Axes{Spec: spec, Count: len(physical)}
	copy(a.Physical[:], physical)
	return a, nil
}

// RequiredDimensionality is the smallest species dimensionality that has
// every axis in the set.
func (a Axes) RequiredDimensionality() int {
	required := 0
	for i := 0; i < a.Count; i++ {
		if a.Physical[i]+1 > required {
			required = a.Physical[i] + 1
		}
	}
	return required
}
