package spatial

import (
	"fmt"
	"math"

	"spatialengine/internal/model"
)

// None marks an absent child or an empty tree.
const None int32 = -1

// Node is one k-d tree entry. Children are indices into the owning tree's
// node arena.
type Node struct {
	X     [model.MaxDimensionality]float64
	Agent int32
	Left  int32
	Right int32
}

// Tree is a k-d tree stored as a flat arena. It is built in two stages:
// Snapshot copies the qualifying agents, Link replicates across periodic
// boundaries and arranges the arena into a balanced tree. Once linked the
// tree is read-only and safe for concurrent searches.
type Tree struct {
	nodes  []Node
	dims   int
	root   int32
	agents int

	snapshotted bool
	linked      bool
}

// NewTree returns an empty tree whose arena is preallocated to capacityHint.
func NewTree(capacityHint int) *Tree {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Tree{nodes: make([]Node, 0, capacityHint), root: None}
}

// Snapshot copies agents in [from, to) for which include returns true (all
// of them when include is nil). It discards any previous contents.
func (t *Tree) Snapshot(p *Positions, from, to int, include func(agent int) (bool, error)) error {
	t.nodes = t.nodes[:0]
	t.dims = p.Dims
	t.root = None
	t.linked = false
	t.snapshotted = false

	if from < 0 {
		from = 0
	}
	if to > p.Count {
		to = p.Count
	}
	for agent := from; agent < to; agent++ {
		if include != nil {
			ok, err := include(agent)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		var n Node
		copy(n.X[:], p.Coords[agent*model.MaxDimensionality:agent*model.MaxDimensionality+model.MaxDimensionality])
		n.Agent = int32(agent)
		n.Left, n.Right = None, None
		t.nodes = append(t.nodes, n)
	}
	t.agents = len(t.nodes)
	t.snapshotted = true
	return nil
}

// Snapshotted reports whether stage A has run since the last reset.
func (t *Tree) Snapshotted() bool {
	return t.snapshotted
}

func (t *Tree) Linked() bool {
	return t.linked
}

// Count is the number of nodes: after Snapshot, the number of qualifying
// agents; after Link, that number times the periodic replication factor.
func (t *Tree) Count() int {
	return len(t.nodes)
}

// Agents is the number of distinct agents in the tree.
func (t *Tree) Agents() int {
	return t.agents
}

// Root is the root node index, or None for a linked empty tree.
func (t *Tree) Root() int32 {
	return t.root
}

func (t *Tree) Dims() int {
	return t.dims
}

// Nodes exposes the arena for read-only inspection.
func (t *Tree) Nodes() []Node {
	return t.nodes
}

func (t *Tree) MemoryUsage() int64 {
	return int64(cap(t.nodes)) * int64(nodeSize)
}

const nodeSize = model.MaxDimensionality*8 + 3*4

// Link replicates the snapshot across periodic axes and builds the tree.
func (t *Tree) Link(space Space) error {
	if !t.snapshotted {
		panic("spatial: Link before Snapshot")
	}
	if t.linked {
		return nil
	}

	factor := 1
	for axis := 0; axis < t.dims; axis++ {
		if space.Periodic[axis] {
			factor *= 3
		}
	}
	base := len(t.nodes)
	if factor > 1 && base > 0 {
		total := int64(base) * int64(factor)
		if total > math.MaxInt32 {
			return model.Errorf(model.ErrResource, "spatial.Link", "periodic replication of %d nodes by %d exceeds the node index range", base, factor)
		}
		t.replicate(space, base, factor)
	}

	t.root = t.build(0, len(t.nodes), 0)
	t.linked = true

	if debugChecks {
		if err := t.Check(); err != nil {
			panic(err)
		}
	}
	return nil
}

// replicate appends factor-1 shifted copies of the first base nodes, one per
// non-zero combination of {0, +extent, -extent} over the periodic axes.
func (t *Tree) replicate(space Space, base, factor int) {
	if cap(t.nodes) < base*factor {
		grown := make([]Node, base, base*factor)
		copy(grown, t.nodes)
		t.nodes = grown
	}
	for combo := 1; combo < factor; combo++ {
		var offset [model.MaxDimensionality]float64
		c := combo
		for axis := 0; axis < t.dims; axis++ {
			if !space.Periodic[axis] {
				continue
			}
			switch c % 3 {
			case 1:
				offset[axis] = space.Upper[axis]
			case 2:
				offset[axis] = -space.Upper[axis]
			}
			c /= 3
		}
		for i := 0; i < base; i++ {
			n := t.nodes[i]
			n.X[0] += offset[0]
			n.X[1] += offset[1]
			n.X[2] += offset[2]
			t.nodes = append(t.nodes, n)
		}
	}
}

// build links nodes[lo:hi] into a subtree split on axis and returns its
// root index.
func (t *Tree) build(lo, hi, axis int) int32 {
	if lo >= hi {
		return None
	}
	mid := lo + (hi-lo)/2
	t.selectNth(lo, hi, mid, axis)

	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	left := t.build(lo, mid, next)
	right := t.build(mid+1, hi, next)
	t.nodes[mid].Left = left
	t.nodes[mid].Right = right
	return int32(mid)
}

// selectNth partially orders nodes[lo:hi] on axis so that nodes[k] holds the
// value it would have after a full sort, with nothing greater before it and
// nothing smaller after it. Three-way partitioning keeps runs of equal
// coordinates from degrading the selection.
func (t *Tree) selectNth(lo, hi, k, axis int) {
	nodes := t.nodes
	for hi-lo > 1 {
		m := lo + (hi-lo)/2
		a, b, c := nodes[lo].X[axis], nodes[m].X[axis], nodes[hi-1].X[axis]
		var pivot float64
		switch {
		case (a <= b) == (b <= c):
			pivot = b
		case (b <= a) == (a <= c):
			pivot = a
		default:
			pivot = c
		}

		lt, i, gt := lo, lo, hi
		for i < gt {
			v := nodes[i].X[axis]
			switch {
			case v < pivot:
				nodes[lt], nodes[i] = nodes[i], nodes[lt]
				lt++
				i++
			case v > pivot:
				gt--
				nodes[i], nodes[gt] = nodes[gt], nodes[i]
			default:
				i++
			}
		}

		switch {
		case k < lt:
			hi = lt
		case k >= gt:
			lo = gt
		default:
			return
		}
	}
}

// Check verifies that every node lies on the correct side of every split
// plane above it and that every node is reachable exactly once.
func (t *Tree) Check() error {
	if !t.linked {
		return fmt.Errorf("spatial: tree is not linked")
	}
	if t.root == None {
		if len(t.nodes) != 0 {
			return fmt.Errorf("spatial: rootless tree holds %d nodes", len(t.nodes))
		}
		return nil
	}
	var lo, hi [model.MaxDimensionality]float64
	for i := range lo {
		lo[i] = math.Inf(-1)
		hi[i] = math.Inf(1)
	}
	visited := 0
	if err := t.check(t.root, 0, lo, hi, &visited); err != nil {
		return err
	}
	if visited != len(t.nodes) {
		return fmt.Errorf("spatial: reached %d of %d nodes", visited, len(t.nodes))
	}
	return nil
}

func (t *Tree) check(idx int32, axis int, lo, hi [model.MaxDimensionality]float64, visited *int) error {
	*visited++
	if *visited > len(t.nodes) {
		return fmt.Errorf("spatial: cycle detected at node %d", idx)
	}
	n := &t.nodes[idx]
	for a := 0; a < t.dims; a++ {
		if n.X[a] < lo[a] || n.X[a] > hi[a] {
			return fmt.Errorf("spatial: node %d (agent %d) coordinate %g on axis %d outside ancestor split range [%g, %g]",
				idx, n.Agent, n.X[a], a, lo[a], hi[a])
		}
	}
	next := axis + 1
	if next >= t.dims {
		next = 0
	}
	split := n.X[axis]
	if n.Left != None {
		leftHi := hi
		if split < leftHi[axis] {
			leftHi[axis] = split
		}
		if err := t.check(n.Left, next, lo, leftHi, visited); err != nil {
			return err
		}
	}
	if n.Right != None {
		rightLo := lo
		if split > rightLo[axis] {
			rightLo[axis] = split
		}
		if err := t.check(n.Right, next, rightLo, hi, visited); err != nil {
			return err
		}
	}
	return nil
}
