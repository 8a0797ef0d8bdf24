package sparse

// Pool is a free list of vectors owned by exactly one worker. It is not safe
// for concurrent use; parallel loops hand each worker its own Pool.
type Pool struct {
	free []*Vector
	made int
}

func NewPool() *Pool {
	return &Pool{}
}

// Get returns a vector reset to ncols columns in the given mode.
func (p *Pool) Get(ncols int, mode Mode) *Vector {
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		v.Reset(ncols, mode)
		return v
	}
	p.made++
	return New(ncols, mode)
}

// Put returns a vector to the free list. It is reset on the next Get.
func (p *Pool) Put(v *Vector) {
	if v == nil {
		return
	}
	p.free = append(p.free, v)
}

// Idle is the number of vectors waiting in the free list.
func (p *Pool) Idle() int {
	return len(p.free)
}

// Allocated is the number of vectors this pool has ever created.
func (p *Pool) Allocated() int {
	return p.made
}

func (p *Pool) MemoryUsage() int64 {
	var total int64
	for _, v := range p.free {
		total += v.MemoryUsage()
	}
	return total
}
