package spatial

import (
	"math"

	"spatialengine/internal/model"
	"spatialengine/internal/sparse"
)

// Point is a query location in interaction axes.
type Point = [model.MaxDimensionality]float64

func distSq(a, b *Point, dims int) float64 {
	d := a[0] - b[0]
	sum := d * d
	if dims > 1 {
		d = a[1] - b[1]
		sum += d * d
		if dims > 2 {
			d = a[2] - b[2]
			sum += d * d
		}
	}
	return sum
}

// All searches skip nodes whose Agent equals exclude; pass None to keep
// every node.

// CountWithin counts nodes within sqrt(maxDistSq) of q.
func (t *Tree) CountWithin(q *Point, maxDistSq float64, exclude int32) int {
	if t.root == None {
		return 0
	}
	return t.countWithin(t.root, q, maxDistSq, exclude, 0)
}

func (t *Tree) countWithin(idx int32, q *Point, maxDistSq float64, exclude int32, axis int) int {
	n := &t.nodes[idx]
	count := 0
	if distSq(&n.X, q, t.dims) <= maxDistSq && n.Agent != exclude {
		count++
	}
	dx := n.X[axis] - q[axis]
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		count += t.countWithin(near, q, maxDistSq, exclude, next)
	}
	if dx*dx > maxDistSq {
		return count
	}
	if far != None {
		count += t.countWithin(far, q, maxDistSq, exclude, next)
	}
	return count
}

// Nearest finds the closest node to q by branch and bound. It does not
// prune by any maximum distance; callers compare the returned squared
// distance against their own limit.
func (t *Tree) Nearest(q *Point, exclude int32) (agent int32, dSq float64, found bool) {
	if t.root == None {
		return None, math.Inf(1), false
	}
	best := None
	bestDistSq := math.Inf(1)
	t.nearest(t.root, q, exclude, 0, &best, &bestDistSq)
	if best == None {
		return None, math.Inf(1), false
	}
	return t.nodes[best].Agent, bestDistSq, true
}

func (t *Tree) nearest(idx int32, q *Point, exclude int32, axis int, best *int32, bestDistSq *float64) {
	n := &t.nodes[idx]
	d := distSq(&n.X, q, t.dims)
	if (*best == None || d < *bestDistSq) && n.Agent != exclude {
		*best = idx
		*bestDistSq = d
	}
	dx := n.X[axis] - q[axis]
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		t.nearest(near, q, exclude, next, best, bestDistSq)
	}
	if dx*dx >= *bestDistSq {
		return
	}
	if far != None {
		t.nearest(far, q, exclude, next, best, bestDistSq)
	}
}

// AllWithin appends the agent of every node within sqrt(maxDistSq) of q.
func (t *Tree) AllWithin(q *Point, maxDistSq float64, exclude int32, out []int) []int {
	if t.root == None {
		return out
	}
	return t.allWithin(t.root, q, maxDistSq, exclude, 0, out)
}

func (t *Tree) allWithin(idx int32, q *Point, maxDistSq float64, exclude int32, axis int, out []int) []int {
	n := &t.nodes[idx]
	if distSq(&n.X, q, t.dims) <= maxDistSq && n.Agent != exclude {
		out = append(out, int(n.Agent))
	}
	dx := n.X[axis] - q[axis]
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		out = t.allWithin(near, q, maxDistSq, exclude, next, out)
	}
	if dx*dx > maxDistSq {
		return out
	}
	if far != None {
		out = t.allWithin(far, q, maxDistSq, exclude, next, out)
	}
	return out
}

// FillPresence adds a presence entry per node within range.
func (t *Tree) FillPresence(q *Point, maxDistSq float64, exclude int32, v *sparse.Vector) {
	if t.root == None {
		return
	}
	t.fillPresence(t.root, q, maxDistSq, exclude, 0, v)
}

func (t *Tree) fillPresence(idx int32, q *Point, maxDistSq float64, exclude int32, axis int, v *sparse.Vector) {
	n := &t.nodes[idx]
	if distSq(&n.X, q, t.dims) <= maxDistSq && n.Agent != exclude {
		v.AddPresence(uint32(n.Agent))
	}
	dx := n.X[axis] - q[axis]
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		t.fillPresence(near, q, maxDistSq, exclude, next, v)
	}
	if dx*dx > maxDistSq {
		return
	}
	if far != None {
		t.fillPresence(far, q, maxDistSq, exclude, next, v)
	}
}

// FillDistance adds a distance entry per node within range. The vector may
// be in Distance mode or in Strength mode for a two-phase strength fill.
func (t *Tree) FillDistance(q *Point, maxDistSq float64, exclude int32, v *sparse.Vector) {
	if t.root == None {
		return
	}
	t.fillDistance(t.root, q, maxDistSq, exclude, 0, v)
}

func (t *Tree) fillDistance(idx int32, q *Point, maxDistSq float64, exclude int32, axis int, v *sparse.Vector) {
	n := &t.nodes[idx]
	if d := distSq(&n.X, q, t.dims); d <= maxDistSq && n.Agent != exclude {
		v.AddDistance(uint32(n.Agent), math.Sqrt(d))
	}
	dx := n.X[axis] - q[axis]
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		t.fillDistance(near, q, maxDistSq, exclude, next, v)
	}
	if dx*dx > maxDistSq {
		return
	}
	if far != None {
		t.fillDistance(far, q, maxDistSq, exclude, next, v)
	}
}

// FillStrength2D evaluates strength inline during the traversal. It is the
// fast path for two-dimensional interactions without modifier callbacks.
func (t *Tree) FillStrength2D(q *Point, maxDistSq float64, exclude int32, strength func(d float64) float64, v *sparse.Vector) {
	if t.dims != 2 {
		panic("spatial: FillStrength2D on a tree of dimensionality other than 2")
	}
	if t.root == None {
		return
	}
	t.fillStrength2D(t.root, q, maxDistSq, exclude, 0, strength, v)
}

func (t *Tree) fillStrength2D(idx int32, q *Point, maxDistSq float64, exclude int32, axis int, strength func(d float64) float64, v *sparse.Vector) {
	n := &t.nodes[idx]
	dx0 := n.X[0] - q[0]
	dx1 := n.X[1] - q[1]
	if d := dx0*dx0 + dx1*dx1; d <= maxDistSq && n.Agent != exclude {
		v.AddStrength(uint32(n.Agent), strength(math.Sqrt(d)))
	}
	dx := dx0
	if axis == 1 {
		dx = dx1
	}
	near, far := n.Right, n.Left
	if dx > 0 {
		near, far = n.Left, n.Right
	}
	if near != None {
		t.fillStrength2D(near, q, maxDistSq, exclude, 1-axis, strength, v)
	}
	if dx*dx > maxDistSq {
		return
	}
	if far != None {
		t.fillStrength2D(far, q, maxDistSq, exclude, 1-axis, strength, v)
	}
}
