// Package interaction answers proximity and interaction-strength queries
// between agents of one or more populations.
//
// An Interaction is configured once, then evaluated against population
// snapshots. Evaluation captures positions and freezes exerter eligibility;
// spatial indices are built lazily on first use and are read-only after
// that. Queries that cannot invoke modifier callbacks run in parallel across
// receivers. An Interaction is not safe for concurrent use: evaluation and
// invalidation must not overlap with queries.
package interaction

import (
	"log/slog"
	"math"

	"spatialengine/internal/constraint"
	"spatialengine/internal/integral"
	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
	"spatialengine/internal/parallel"
	"spatialengine/internal/sparse"
	"spatialengine/internal/spatial"
)

// Role selects which side of an interaction a constraint applies to.
type Role uint8

const (
	Receiver Role = iota
	Exerter
)

func (r Role) String() string {
	if r == Exerter {
		return "exerter"
	}
	return "receiver"
}

type Config struct {
	ID string
	// Spatiality is "" for a non-spatial interaction, or one of "x", "y",
	// "z", "xy", "xz", "yz", "xyz".
	Spatiality string
	// MaxDistance must be finite for spatial interactions. Non-spatial
	// interactions are unbounded; zero is accepted there as unset.
	MaxDistance float64
	// Workers bounds parallel queries; 0 uses GOMAXPROCS.
	Workers   int
	Logger    *slog.Logger
	Callbacks model.CallbackSource
	Scheduler model.Scheduler
}

type Interaction struct {
	id          string
	axes        spatial.Axes
	maxDistance float64
	maxDistSq   float64
	kernel      kernel.Kernel
	strength    func(float64) float64

	receiver constraint.RoleConstraint
	exerter  constraint.RoleConstraint

	workers   int
	pools     []*sparse.Pool
	logger    *slog.Logger
	callbacks model.CallbackSource
	scheduler model.Scheduler

	caches   map[string]*populationCache
	integral integral.Cache
}

func New(cfg Config) (*Interaction, error) {
	const op = "interaction.New"
	axes, err := spatial.ParseAxes(cfg.Spatiality)
	if err != nil {
		return nil, err
	}
	maxD := cfg.MaxDistance
	if axes.Count == 0 && maxD == 0 {
		maxD = math.Inf(1)
	}
	if err := checkMaxDistance(op, axes, maxD); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = parallel.DefaultWorkers()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	in := &Interaction{
		id:          cfg.ID,
		axes:        axes,
		maxDistance: maxD,
		maxDistSq:   maxD * maxD,
		kernel:      kernel.Default(maxD),
		workers:     workers,
		pools:       make([]*sparse.Pool, workers),
		logger:      logger.With("interaction", cfg.ID),
		callbacks:   cfg.Callbacks,
		scheduler:   cfg.Scheduler,
		caches:      make(map[string]*populationCache),
	}
	for i := range in.pools {
		in.pools[i] = sparse.NewPool()
	}
	in.strength = in.kernel.Func()
	return in, nil
}

func checkMaxDistance(op string, axes spatial.Axes, maxD float64) error {
	if math.IsNaN(maxD) || maxD < 0 {
		return model.Errorf(model.ErrConfiguration, op, "maximum interaction distance must be >= 0, got %v", maxD)
	}
	if axes.Count > 0 && math.IsInf(maxD, 1) {
		return model.Errorf(model.ErrConfiguration, op, "maximum interaction distance may be infinite only for non-spatial interactions")
	}
	if axes.Count == 0 && !math.IsInf(maxD, 1) {
		return model.Errorf(model.ErrConfiguration, op, "non-spatial interactions have no maximum distance, got %v", maxD)
	}
	return nil
}

func (in *Interaction) ID() string { return in.id }
func (in *Interaction) Spatiality() int { return in.axes.Count }
func (in *Interaction) Axes() string { return in.axes.Spec }
func (in *Interaction) MaxDistance() float64 { return in.maxDistance }
func (in *Interaction) Kernel() kernel.Kernel { return in.kernel }
func (in *Interaction) Workers() int { return in.workers }

// SetKernel replaces the kernel. Non-spatial interactions only accept the
// fixed kernel.
func (in *Interaction) SetKernel(t kernel.Type, params ...float64) error {
	const op = "interaction.SetKernel"
	if in.AnyEvaluated() {
		return model.Errorf(model.ErrConfiguration, op, "kernel cannot change while the interaction is evaluated; must call Unevaluate first")
	}
	if in.axes.Count == 0 && t != kernel.Fixed {
		return model.Errorf(model.ErrConfiguration, op, "non-spatial interactions require a fixed kernel, got %q", t)
	}
	k, err := kernel.New(t, in.maxDistance, params...)
	if err != nil {
		return err
	}
	in.kernel = k
	in.strength = k.Func()
	in.integral.Invalidate()
	return nil
}

func (in *Interaction) SetMaxDistance(maxD float64) error {
	const op = "interaction.SetMaxDistance"
	if in.AnyEvaluated() {
		return model.Errorf(model.ErrConfiguration, op, "maximum distance cannot change while the interaction is evaluated; must call Unevaluate first")
	}
	if err := checkMaxDistance(op, in.axes, maxD); err != nil {
		return err
	}
	k, err := kernel.New(in.kernel.Type, maxD, in.kernel.Params[:in.kernel.Type.ParamCount()]...)
	if err != nil {
		return err
	}
	in.maxDistance = maxD
	in.maxDistSq = maxD * maxD
	in.kernel = k
	in.strength = k.Func()
	in.integral.Invalidate()
	return nil
}

// SetConstraints replaces the constraint for one role. Age constraints are
// checked against each population when it is evaluated.
func (in *Interaction) SetConstraints(role Role, c constraint.RoleConstraint) error {
	const op = "interaction.SetConstraints"
	if in.AnyEvaluated() {
		return model.Errorf(model.ErrConfiguration, op, "constraints cannot change while the interaction is evaluated; must call Unevaluate first")
	}
	if err := c.Validate(op, true); err != nil {
		return err
	}
	switch role {
	case Receiver:
		in.receiver = c
	case Exerter:
		in.exerter = c
	default:
		return model.Errorf(model.ErrConfiguration, op, "unknown role %d", role)
	}
	return nil
}

func (in *Interaction) Constraints(role Role) constraint.RoleConstraint {
	if role == Exerter {
		return in.exerter
	}
	return in.receiver
}

// TestConstraints returns the agents of pop that satisfy the constraint of
// the given role. The interaction need not be evaluated.
func (in *Interaction) TestConstraints(pop model.Population, agents []int, role Role) ([]int, error) {
	const op = "interaction.TestConstraints"
	c := in.Constraints(role)
	if err := c.Validate(op, pop.ModelsAge()); err != nil {
		return nil, err
	}
	eligible := make([]int, 0, len(agents))
	for _, agent := range agents {
		if agent < 0 || agent >= pop.Len() {
			return nil, model.Errorf(model.ErrConfiguration, op, "agent index %d out of range for population %s", agent, pop.ID())
		}
		ok, err := c.Eligible(pop.Attributes(agent))
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, agent)
		}
	}
	return eligible, nil
}
