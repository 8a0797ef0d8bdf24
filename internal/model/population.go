package model

// MaxDimensionality is the number of physical axes a species may have.
// Coordinate buffers always use this stride.
const MaxDimensionality = 3

type Sex int8

const (
	SexUnspecified Sex = iota
	SexHermaphrodite
	SexFemale
	SexMale
)

func (s Sex) String() string {
	switch s {
	case SexHermaphrodite:
		return "H"
	case SexFemale:
		return "F"
	case SexMale:
		return "M"
	default:
		return "*"
	}
}

// ParseSex accepts "M", "F", "H" and "*" (or "") for unspecified.
func ParseSex(s string) (Sex, bool) {
	switch s {
	case "", "*":
		return SexUnspecified, true
	case "H":
		return SexHermaphrodite, true
	case "F":
		return SexFemale, true
	case "M":
		return SexMale, true
	default:
		return SexUnspecified, false
	}
}

// Attributes is the per-agent state that role constraints can inspect.
// Nil pointers mean the value has never been set on the agent.
type Attributes struct {
	Sex     Sex
	Tag     *int64
	Age     int
	Migrant bool
	Flags   [5]*bool
}

// SpatialMetadata describes the continuous space a species lives in.
// Bounds are indexed by physical axis (x, y, z); lower bounds of periodic
// axes are always zero.
type SpatialMetadata struct {
	Dimensionality int
	Periodic       [MaxDimensionality]bool
	Lower          [MaxDimensionality]float64
	Upper          [MaxDimensionality]float64
}

// Population is a read-only snapshot of one population at the time an
// interaction is evaluated. Agents are addressed by index in [0, Len()).
// Agents of the first sex precede agents of the second sex; FirstMaleIndex
// is the boundary between them (Len() for hermaphroditic populations).
type Population interface {
	ID() string
	SpeciesID() string
	Spatial() SpatialMetadata
	Len() int
	FirstMaleIndex() int
	Coordinate(agent, axis int) float64
	Attributes(agent int) Attributes
	ModelsAge() bool
	HasBeenRemoved() bool
}

// AgentRef identifies one agent of one population.
type AgentRef struct {
	Population string
	Index      int
}

// Modifier post-processes a kernel strength for one receiver/exerter pair.
// It must return a finite, non-negative strength.
type Modifier interface {
	InvokeModifier(receiver, exerter AgentRef, strength, distance float64) (float64, error)
}

type ModifierFunc func(receiver, exerter AgentRef, strength, distance float64) (float64, error)

func (f ModifierFunc) InvokeModifier(receiver, exerter AgentRef, strength, distance float64) (float64, error) {
	return f(receiver, exerter, strength, distance)
}

// CallbackSource reports the modifiers that apply when a population acts as
// exerter. It is consulted once per evaluation.
type CallbackSource interface {
	CurrentCallbacksFor(exerterPopulation string) []Modifier
}

// Scheduler reports whether the surrounding simulation is in a phase during
// which evaluation is forbidden.
type Scheduler interface {
	OffspringGenerationActive() bool
}
