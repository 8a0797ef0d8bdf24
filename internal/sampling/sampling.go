// Package sampling draws indices with replacement in proportion to a weight
// vector.
package sampling

// Source is the randomness consumed by the samplers. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Crossover is the draws-times-weights product above which building an
// alias table beats repeated linear scans.
const Crossover = 4096

// Draw appends count indices into weights to out, each drawn with
// probability proportional to its weight. Nothing is drawn when the total
// weight is zero.
func Draw(rng Source, weights []float32, count int, out []int) []int {
	if count <= 0 || len(weights) == 0 {
		return out
	}
	if count*len(weights) <= Crossover {
		return DrawLinear(rng, weights, count, out)
	}
	table := NewAliasTable(weights)
	if table == nil {
		return out
	}
	for i := 0; i < count; i++ {
		out = append(out, table.Draw(rng))
	}
	return out
}

// DrawLinear samples by scanning the cumulative weights once per draw.
func DrawLinear(rng Source, weights []float32, count int, out []int) []int {
	var total float64
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += float64(w)
			last = i
		}
	}
	if last < 0 {
		return out
	}
	for n := 0; n < count; n++ {
		r := rng.Float64() * total
		pick := last
		var cum float64
		for i, w := range weights {
			if w <= 0 {
				continue
			}
			cum += float64(w)
			if r < cum {
				pick = i
				break
			}
		}
		out = append(out, pick)
	}
	return out
}

// DrawUniform appends count indices drawn uniformly from [0, n).
func DrawUniform(rng Source, n, count int, out []int) []int {
	if n <= 0 {
		return out
	}
	for i := 0; i < count; i++ {
		out = append(out, rng.Intn(n))
	}
	return out
}
