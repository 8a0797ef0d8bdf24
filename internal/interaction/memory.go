package interaction

// MemoryReport breaks down the bytes an Interaction retains.
type MemoryReport struct {
	Positions int64
	Nodes     int64
	Pools     int64
	Integral  int64
}

func (m MemoryReport) Total() int64 {
	return m.Positions + m.Nodes + m.Pools + m.Integral
}

// MemoryUsage reports retained buffer sizes. An aliased exerter index is
// counted once.
func (in *Interaction) MemoryUsage() MemoryReport {
	var m MemoryReport
	for _, c := range in.caches {
		m.Positions += int64(cap(c.positions.Coords)) * 8
		if c.all != nil {
			m.Nodes += c.all.MemoryUsage()
		}
		if c.exerters != nil && c.exerters != c.all {
			m.Nodes += c.exerters.MemoryUsage()
		}
	}
	for _, p := range in.pools {
		m.Pools += p.MemoryUsage()
	}
	m.Integral = in.integral.MemoryUsage()
	return m
}
