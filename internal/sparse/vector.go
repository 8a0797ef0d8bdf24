// Package sparse holds the column-indexed accumulator that carries neighbour
// results from an index traversal back to the caller.
package sparse

import (
	"fmt"
	"unsafe"
)

type Mode uint8

const (
	Presence Mode = iota
	Distance
	Strength
)

func (m Mode) String() string {
	switch m {
	case Presence:
		return "presence"
	case Distance:
		return "distance"
	case Strength:
		return "strength"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Vector accumulates (column, value) entries for one receiver. Columns are
// exerter indices; entries stay in insertion order and are not deduplicated.
//
// Usage is Reset, any number of Add calls, Finish, then reads. Breaking that
// order is a programming error and panics.
type Vector struct {
	columns []uint32
	values  []float32

	ncols    uint32
	mode     Mode
	finished bool

	// holdsDistances is set while a Strength vector carries raw distances
	// awaiting TransformDistancesToStrengths.
	holdsDistances bool
}

func New(ncols int, mode Mode) *Vector {
	v := &Vector{}
	v.Reset(ncols, mode)
	return v
}

// Reset empties the vector for a new use, keeping its buffers.
func (v *Vector) Reset(ncols int, mode Mode) {
	if ncols < 0 || uint64(ncols) > uint64(^uint32(0)) {
		panic(fmt.Sprintf("sparse: invalid column count %d", ncols))
	}
	v.ncols = uint32(ncols)
	v.mode = mode
	v.columns = v.columns[:0]
	v.values = v.values[:0]
	v.finished = false
	v.holdsDistances = false
}

func (v *Vector) checkAdd(column uint32) {
	if v.finished {
		panic("sparse: add to a finished vector")
	}
	if column >= v.ncols {
		panic(fmt.Sprintf("sparse: column %d beyond vector size %d", column, v.ncols))
	}
}

func (v *Vector) AddPresence(column uint32) {
	v.checkAdd(column)
	if v.mode != Presence {
		panic("sparse: AddPresence on a " + v.mode.String() + " vector")
	}
	v.columns = append(v.columns, column)
}

// AddDistance records a distance. Strength vectors accept distances too, for
// the two-phase fill that converts them in place afterwards.
func (v *Vector) AddDistance(column uint32, distance float64) {
	v.checkAdd(column)
	switch v.mode {
	case Distance:
	case Strength:
		if len(v.columns) > 0 && !v.holdsDistances {
			panic("sparse: mixing distances and strengths in one vector")
		}
		v.holdsDistances = true
	default:
		panic("sparse: AddDistance on a " + v.mode.String() + " vector")
	}
	v.columns = append(v.columns, column)
	v.values = append(v.values, float32(distance))
}

func (v *Vector) AddStrength(column uint32, strength float64) {
	v.checkAdd(column)
	if v.mode != Strength || v.holdsDistances {
		panic("sparse: AddStrength on a " + v.mode.String() + " vector")
	}
	v.columns = append(v.columns, column)
	v.values = append(v.values, float32(strength))
}

func (v *Vector) Finish() {
	if v.finished {
		panic("sparse: vector finished twice")
	}
	v.finished = true
}

func (v *Vector) checkRead(mode Mode) {
	if !v.finished {
		panic("sparse: read before Finish")
	}
	if v.mode != mode {
		panic("sparse: reading " + mode.String() + " from a " + v.mode.String() + " vector")
	}
}

// Presences returns the columns of a presence vector.
func (v *Vector) Presences() []uint32 {
	v.checkRead(Presence)
	return v.columns
}

func (v *Vector) Distances() ([]uint32, []float32) {
	v.checkRead(Distance)
	return v.columns, v.values
}

func (v *Vector) Strengths() ([]uint32, []float32) {
	v.checkRead(Strength)
	if v.holdsDistances {
		panic("sparse: strengths read before distances were transformed")
	}
	return v.columns, v.values
}

// TransformDistancesToStrengths rewrites, in place and in order, the
// distances held by a finished Strength vector into strengths. It stops at
// the first error, leaving the vector unusable for reads.
func (v *Vector) TransformDistancesToStrengths(fn func(column uint32, distance float64) (float64, error)) error {
	if !v.finished || v.mode != Strength || (!v.holdsDistances && len(v.columns) > 0) {
		panic("sparse: transform requires a finished strength vector holding distances")
	}
	for i, col := range v.columns {
		s, err := fn(col, float64(v.values[i]))
		if err != nil {
			return err
		}
		v.values[i] = float32(s)
	}
	v.holdsDistances = false
	return nil
}

// Len is the number of entries added so far.
func (v *Vector) Len() int {
	return len(v.columns)
}

func (v *Vector) ColumnCount() int {
	return int(v.ncols)
}

func (v *Vector) Mode() Mode {
	return v.mode
}

func (v *Vector) Finished() bool {
	return v.finished
}

// MemoryUsage is the retained buffer size in bytes.
func (v *Vector) MemoryUsage() int64 {
	return int64(unsafe.Sizeof(*v)) + int64(cap(v.columns))*4 + int64(cap(v.values))*4
}
