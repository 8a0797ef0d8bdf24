// Package integral precomputes the kernel's integral over a neighbourhood
// truncated by non-periodic boundaries, used to turn summed interaction
// strengths into local densities.
package integral

import (
	"math"

	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
)

// DefaultResolution is the number of grid cells per axis across
// [0, MaxDistance].
const DefaultResolution = 1024

// Cache holds the lookup table for one kernel. The zero value is usable and
// builds at DefaultResolution on first Ensure.
//
// In 1D the table is H(a), the integral of the kernel over [0, a]; a
// receiver with distances a1 and a2 to the two edges sees H(a1)+H(a2).
// In 2D the table is Q(a, b), the integral over the quadrant rectangle
// [0, a]x[0, b] restricted to the disc of radius MaxDistance, and the four
// quadrants around a receiver are summed.
type Cache struct {
	Resolution int

	valid  bool
	dims   int
	kernel kernel.Kernel
	step   float64
	table  []float64
}

// Invalidate marks the table stale. Storage is kept for the next build.
func (c *Cache) Invalidate() {
	c.valid = false
}

func (c *Cache) Valid() bool {
	return c.valid
}

// Ensure builds the table for k and dims unless an identical valid table is
// already present.
func (c *Cache) Ensure(k kernel.Kernel, dims int) error {
	const op = "integral.Ensure"
	if c.valid && c.dims == dims && c.kernel == k {
		return nil
	}
	if math.IsInf(k.MaxDistance, 0) || math.IsNaN(k.MaxDistance) {
		return model.Errorf(model.ErrConfiguration, op, "clipped integral requires a finite maximum interaction distance")
	}
	if k.MaxDistance <= 0 {
		return model.Errorf(model.ErrConfiguration, op, "clipped integral requires a maximum interaction distance > 0, got %g", k.MaxDistance)
	}
	res := c.Resolution
	if res <= 0 {
		res = DefaultResolution
		c.Resolution = res
	}

	switch dims {
	case 1:
		c.build1D(k, res)
	case 2:
		c.build2D(k, res)
	case 3:
		return model.Errorf(model.ErrConfiguration, op, "clipped integral is not implemented for 3D interactions")
	default:
		return model.Errorf(model.ErrConfiguration, op, "clipped integral requires spatiality 1 or 2, got %d", dims)
	}
	c.dims = dims
	c.kernel = k
	c.valid = true
	return nil
}

func (c *Cache) grow(n int) []float64 {
	if cap(c.table) < n {
		c.table = make([]float64, n)
	}
	c.table = c.table[:n]
	return c.table
}

// build1D samples the kernel at cell midpoints and accumulates a prefix sum
// scaled by the cell width.
func (c *Cache) build1D(k kernel.Kernel, res int) {
	strength := k.Func()
	c.step = k.MaxDistance / float64(res)
	h := c.grow(res + 1)
	h[0] = 0
	for i := 1; i <= res; i++ {
		d := (float64(i) - 0.5) * c.step
		h[i] = h[i-1] + strength(d)*c.step
	}
}

// build2D samples the kernel at cell centres inside the disc, then runs
// cumulative sums along rows and then columns so that table[i][j] is the
// integral over the first i x j cells.
func (c *Cache) build2D(k kernel.Kernel, res int) {
	strength := k.Func()
	c.step = k.MaxDistance / float64(res)
	width := res + 1
	q := c.grow(width * width)
	maxDSq := k.MaxDistance * k.MaxDistance
	area := c.step * c.step

	for j := 0; j < width; j++ {
		q[j] = 0
	}
	for i := 1; i <= res; i++ {
		row := q[i*width : (i+1)*width]
		row[0] = 0
		x := (float64(i) - 0.5) * c.step
		for j := 1; j <= res; j++ {
			y := (float64(j) - 0.5) * c.step
			var v float64
			if dSq := x*x + y*y; dSq <= maxDSq {
				v = strength(math.Sqrt(dSq)) * area
			}
			row[j] = row[j-1] + v
		}
	}
	for i := 2; i <= res; i++ {
		row := q[i*width : (i+1)*width]
		prev := q[(i-1)*width : i*width]
		for j := 1; j <= res; j++ {
			row[j] += prev[j]
		}
	}
}

func (c *Cache) index(a float64) int {
	if !(a > 0) {
		return 0
	}
	if a >= c.kernel.MaxDistance {
		return c.Resolution
	}
	return int(math.Round(a / c.step))
}

// Value1D is the clipped integral for a receiver a1 and a2 away from the two
// edges of its axis. Distances beyond MaxDistance are unclipped.
func (c *Cache) Value1D(a1, a2 float64) float64 {
	if !c.valid || c.dims != 1 {
		panic("integral: Value1D without a 1D table")
	}
	return c.table[c.index(a1)] + c.table[c.index(a2)]
}

// Value2D is the clipped integral for a receiver a1/a2 away from the two
// edges of the first axis and b1/b2 away from those of the second.
func (c *Cache) Value2D(a1, a2, b1, b2 float64) float64 {
	if !c.valid || c.dims != 2 {
		panic("integral: Value2D without a 2D table")
	}
	width := c.Resolution + 1
	i1, i2 := c.index(a1)*width, c.index(a2)*width
	j1, j2 := c.index(b1), c.index(b2)
	return c.table[i1+j1] + c.table[i1+j2] + c.table[i2+j1] + c.table[i2+j2]
}

// Full1D is the unclipped integral over the whole segment.
func (c *Cache) Full1D() float64 {
	return c.Value1D(math.Inf(1), math.Inf(1))
}

// Full2D is the unclipped integral over the whole disc.
func (c *Cache) Full2D() float64 {
	return c.Value2D(math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1))
}

func (c *Cache) MemoryUsage() int64 {
	return int64(cap(c.table)) * 8
}
