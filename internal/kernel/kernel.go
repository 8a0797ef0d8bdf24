// Package kernel maps interaction distances to interaction strengths.
package kernel

import (
	"fmt"
	"math"

	"spatialengine/internal/model"
)

type Type uint8

const (
	Fixed Type = iota
	Linear
	Exponential
	Normal
	Cauchy
	StudentT
)

var typeCodes = map[string]Type{
	"f": Fixed,
	"l": Linear,
	"e": Exponential,
	"n": Normal,
	"c": Cauchy,
	"t": StudentT,
}

// ParseType accepts the one-letter codes and the long names.
func ParseType(s string) (Type, error) {
	if t, ok := typeCodes[s]; ok {
		return t, nil
	}
	switch s {
	case "fixed":
		return Fixed, nil
	case "linear":
		return Linear, nil
	case "exponential":
		return Exponential, nil
	case "normal", "gaussian":
		return Normal, nil
	case "cauchy":
		return Cauchy, nil
	case "student-t", "t-dist":
		return StudentT, nil
	}
	return Fixed, model.Errorf(model.ErrConfiguration, "kernel.ParseType", "kernel type %q must be one of f, l, e, n, c, t", s)
}

func (t Type) String() string {
	switch t {
	case Fixed:
		return "f"
	case Linear:
		return "l"
	case Exponential:
		return "e"
	case Normal:
		return "n"
	case Cauchy:
		return "c"
	case StudentT:
		return "t"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParamCount is the exact number of parameters the kernel type takes.
func (t Type) ParamCount() int {
	switch t {
	case Fixed, Linear:
		return 1
	case Exponential, Normal, Cauchy:
		return 2
	case StudentT:
		return 3
	default:
		return 0
	}
}

// Kernel is an immutable kernel descriptor bound to a maximum distance.
type Kernel struct {
	Type        Type
	Params      [3]float64
	MaxDistance float64
}

// Default is the fixed kernel with unit strength.
func Default(maxDistance float64) Kernel {
	return Kernel{Type: Fixed, Params: [3]float64{1}, MaxDistance: maxDistance}
}

func New(t Type, maxDistance float64, params ...float64) (Kernel, error) {
	const op = "kernel.New"
	want := t.ParamCount()
	if want == 0 {
		return Kernel{}, model.Errorf(model.ErrConfiguration, op, "unknown kernel type %v", t)
	}
	if len(params) != want {
		return Kernel{}, model.Errorf(model.ErrConfiguration, op, "kernel type %q requires exactly %d parameter(s), got %d", t, want, len(params))
	}
	k := Kernel{Type: t, MaxDistance: maxDistance}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Kernel{}, model.Errorf(model.ErrConfiguration, op, "kernel parameter %d must be finite, got %v", i+1, p)
		}
		k.Params[i] = p
	}
	switch t {
	case Linear:
		if math.IsInf(maxDistance, 0) || math.IsNaN(maxDistance) || maxDistance <= 0 {
			return Kernel{}, model.Errorf(model.ErrConfiguration, op, "linear kernel requires a finite maximum distance > 0, got %v", maxDistance)
		}
	case Normal, Cauchy:
		if k.Params[1] <= 0 {
			return Kernel{}, model.Errorf(model.ErrConfiguration, op, "kernel type %q requires a scale parameter > 0, got %v", t, k.Params[1])
		}
	case StudentT:
		if k.Params[1] <= 0 {
			return Kernel{}, model.Errorf(model.ErrConfiguration, op, "student-t kernel requires a scale parameter > 0, got %v", k.Params[1])
		}
		if k.Params[2] <= 0 {
			return Kernel{}, model.Errorf(model.ErrConfiguration, op, "student-t kernel requires degrees of freedom > 0, got %v", k.Params[2])
		}
	}
	return k, nil
}

// Strength evaluates the kernel at distance d. The caller has already
// excluded self-interaction, ineligible pairs and distances beyond
// MaxDistance; d is NaN for non-spatial interactions.
func (k Kernel) Strength(d float64) float64 {
	p1, p2, p3 := k.Params[0], k.Params[1], k.Params[2]
	switch k.Type {
	case Fixed:
		return p1
	case Linear:
		return p1 * (1.0 - d/k.MaxDistance)
	case Exponential:
		return p1 * math.Exp(-p2*d)
	case Normal:
		return p1 * math.Exp(-(d*d)/(2.0*p2*p2))
	case Cauchy:
		r := d / p2
		return p1 / (1.0 + r*r)
	case StudentT:
		r := d / p2
		return p1 * math.Pow(1.0+r*r/p3, -(p3+1.0)/2.0)
	default:
		return 0
	}
}

// Func returns a closure specialised for the kernel type, so batch loops
// pay for the type dispatch once instead of once per neighbour.
func (k Kernel) Func() func(d float64) float64 {
	p1, p2, p3 := k.Params[0], k.Params[1], k.Params[2]
	switch k.Type {
	case Fixed:
		return func(float64) float64 { return p1 }
	case Linear:
		maxD := k.MaxDistance
		return func(d float64) float64 { return p1 * (1.0 - d/maxD) }
	case Exponential:
		return func(d float64) float64 { return p1 * math.Exp(-p2*d) }
	case Normal:
		denom := 2.0 * p2 * p2
		return func(d float64) float64 { return p1 * math.Exp(-(d*d)/denom) }
	case Cauchy:
		return func(d float64) float64 {
			r := d / p2
			return p1 / (1.0 + r*r)
		}
	case StudentT:
		exponent := -(p3 + 1.0) / 2.0
		return func(d float64) float64 {
			r := d / p2
			return p1 * math.Pow(1.0+r*r/p3, exponent)
		}
	default:
		return func(float64) float64 { return 0 }
	}
}

func (k Kernel) String() string {
	switch k.Type.ParamCount() {
	case 1:
		return fmt.Sprintf("%s(%g)", k.Type, k.Params[0])
	case 2:
		return fmt.Sprintf("%s(%g, %g)", k.Type, k.Params[0], k.Params[1])
	default:
		return fmt.Sprintf("%s(%g, %g, %g)", k.Type, k.Params[0], k.Params[1], k.Params[2])
	}
}

// CheckModifierResult validates a strength returned by a modifier callback.
func CheckModifierResult(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return model.Errorf(model.ErrCallbackContract, "interaction modifier", "modifier must return a finite strength >= 0, got %v", v)
	}
	return nil
}
