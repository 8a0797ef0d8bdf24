package sampling

// AliasTable is Vose's alias method: O(n) to build, O(1) per draw.
type AliasTable struct {
	prob  []float64
	alias []int
}

// NewAliasTable returns nil when no weight is positive.
func NewAliasTable(weights []float32) *AliasTable {
	n := len(weights)
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += float64(w)
		}
	}
	if n == 0 || total <= 0 {
		return nil
	}

	t := &AliasTable{prob: make([]float64, n), alias: make([]int, n)}
	scaled := make([]float64, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		if w > 0 {
			scaled[i] = float64(w) * float64(n) / total
		}
		if scaled[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		t.prob[s] = scaled[s]
		t.alias[s] = l
		scaled[l] = scaled[l] + scaled[s] - 1
		if scaled[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// Leftovers are 1 up to rounding.
	for _, i := range large {
		t.prob[i] = 1
		t.alias[i] = i
	}
	// A zero-weight leftover gets a dead slot; Draw rejects it and redraws
	// so no positive index gains its mass.
	for _, i := range small {
		if scaled[i] > 0 {
			t.prob[i] = 1
			t.alias[i] = i
		} else {
			t.prob[i] = 0
			t.alias[i] = deadSlot
		}
	}
	return t
}

const deadSlot = -1

func (t *AliasTable) Len() int {
	return len(t.prob)
}

func (t *AliasTable) Draw(rng Source) int {
	for {
		i := rng.Intn(len(t.prob))
		if rng.Float64() < t.prob[i] {
			return i
		}
		if t.alias[i] != deadSlot {
			return t.alias[i]
		}
	}
}
