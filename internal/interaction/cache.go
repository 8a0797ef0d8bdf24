package interaction

import (
	"fmt"
	"sort"
	"time"

	"spatialengine/internal/model"
	"spatialengine/internal/spatial"
)

// populationCache is the evaluated state of one population. A nil tree is
// "not built"; a built tree with Root() == spatial.None holds zero nodes.
type populationCache struct {
	pop       model.Population
	evaluated bool
	agents    int
	firstMale int

	// positions.Coords is nil unless the interaction is spatial and the
	// cache is evaluated.
	positions spatial.Positions
	all       *spatial.Tree
	exerters  *spatial.Tree // same pointer as all when the exerter constraint is empty

	modifiers []model.Modifier

	// exerterFault is set at evaluation when some agent lacks an attribute
	// the exerter constraint reads; it is raised on first exerter use.
	exerterFault string

	// Capacity hints carried across invalidations.
	coordHint int
	nodeHint  int

	buildTime time.Duration
}

func (c *populationCache) invalidate() {
	if cap(c.positions.Coords) > c.coordHint {
		c.coordHint = cap(c.positions.Coords)
	}
	if c.all != nil && c.all.Count() > c.nodeHint {
		c.nodeHint = c.all.Count()
	}
	if c.exerters != nil && c.exerters.Count() > c.nodeHint {
		c.nodeHint = c.exerters.Count()
	}
	c.evaluated = false
	c.positions = spatial.Positions{}
	c.all = nil
	c.exerters = nil
	c.modifiers = nil
	c.exerterFault = ""
	c.buildTime = 0
}

// Evaluate captures the current state of each population. Populations that
// are already evaluated are left untouched.
func (in *Interaction) Evaluate(pops ...model.Population) error {
	const op = "interaction.Evaluate"
	if in.scheduler != nil && in.scheduler.OffspringGenerationActive() {
		return model.Errorf(model.ErrEvaluationState, op, "interactions cannot be evaluated while offspring are being generated")
	}
	for _, pop := range pops {
		if err := in.evaluate(op, pop); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interaction) evaluate(op string, pop model.Population) error {
	if pop.HasBeenRemoved() {
		return model.Errorf(model.ErrEvaluationState, op, "population %s has been removed", pop.ID())
	}
	if err := in.receiver.Validate(op, pop.ModelsAge()); err != nil {
		return err
	}
	if err := in.exerter.Validate(op, pop.ModelsAge()); err != nil {
		return err
	}

	c, ok := in.caches[pop.ID()]
	if ok && c.evaluated {
		return nil
	}
	if !ok {
		c = &populationCache{}
		in.caches[pop.ID()] = c
	}
	c.pop = pop
	c.agents = pop.Len()
	c.firstMale = pop.FirstMaleIndex()

	if in.axes.Count > 0 {
		var buf []float64
		if c.coordHint > 0 {
			buf = make([]float64, 0, c.coordHint)
		}
		positions, err := spatial.Capture(pop, in.axes, buf)
		if err != nil {
			return err
		}
		if err := positions.Space.CheckMaxDistance(op, in.maxDistance); err != nil {
			return err
		}
		if positions.Coords == nil {
			positions.Coords = []float64{}
		}
		c.positions = positions
	}

	if in.exerter.NeedsAttributes() {
		for agent := 0; agent < c.agents; agent++ {
			if !in.exerter.CanEvaluate(pop.Attributes(agent)) {
				c.exerterFault = fmt.Sprintf("agent %d lacks an attribute required by the exerter constraint", agent)
				break
			}
		}
	}
	if in.callbacks != nil {
		c.modifiers = in.callbacks.CurrentCallbacksFor(pop.ID())
	}
	c.evaluated = true

	in.logger.Debug("population evaluated",
		"population", pop.ID(),
		"agents", c.agents,
		"modifiers", len(c.modifiers),
		"exerter_fault", c.exerterFault != "")
	return nil
}

// Unevaluate invalidates every population, keeping capacity hints.
func (in *Interaction) Unevaluate() {
	for _, c := range in.caches {
		c.invalidate()
	}
	in.logger.Debug("interaction unevaluated")
}

func (in *Interaction) UnevaluateFor(populationID string) {
	if c, ok := in.caches[populationID]; ok {
		c.invalidate()
		in.logger.Debug("population unevaluated", "population", populationID)
	}
}

// UnevaluateSpecies invalidates every population of one species.
func (in *Interaction) UnevaluateSpecies(speciesID string) {
	for id, c := range in.caches {
		if c.pop != nil && c.pop.SpeciesID() == speciesID {
			c.invalidate()
			in.logger.Debug("population unevaluated", "population", id, "species", speciesID)
		}
	}
}

// Forget drops all state for a population, including capacity hints.
func (in *Interaction) Forget(populationID string) {
	delete(in.caches, populationID)
}

func (in *Interaction) AnyEvaluated() bool {
	for _, c := range in.caches {
		if c.evaluated {
			return true
		}
	}
	return false
}

// Evaluated reports whether a population is currently evaluated.
func (in *Interaction) Evaluated(populationID string) bool {
	c, ok := in.caches[populationID]
	return ok && c.evaluated
}

func (in *Interaction) cacheFor(op string, pop model.Population) (*populationCache, error) {
	if pop.HasBeenRemoved() {
		return nil, model.Errorf(model.ErrEvaluationState, op, "population %s has been removed", pop.ID())
	}
	c, ok := in.caches[pop.ID()]
	if !ok || !c.evaluated {
		return nil, model.Errorf(model.ErrEvaluationState, op, "population %s has not been evaluated", pop.ID())
	}
	return c, nil
}

// allTree returns the index over every agent, building it if needed.
func (in *Interaction) allTree(c *populationCache) (*spatial.Tree, error) {
	if c.all != nil {
		return c.all, nil
	}
	tree, err := in.buildTree(c, "all", 0, c.agents, nil)
	if err != nil {
		return nil, err
	}
	c.all = tree
	return tree, nil
}

// exerterTree returns the index over eligible exerters. With no exerter
// constraint it is the all-agents index itself.
func (in *Interaction) exerterTree(op string, c *populationCache) (*spatial.Tree, error) {
	if c.exerterFault != "" {
		return nil, model.Errorf(model.ErrConstraint, op, "population %s cannot act as exerter: %s", c.pop.ID(), c.exerterFault)
	}
	if c.exerters != nil {
		return c.exerters, nil
	}
	if in.exerter.IsEmpty() {
		tree, err := in.allTree(c)
		if err != nil {
			return nil, err
		}
		c.exerters = tree
		return tree, nil
	}

	// Agents are ordered by sex, so a sex constraint narrows the range.
	from, to := 0, c.agents
	switch in.exerter.Sex {
	case model.SexFemale:
		to = c.firstMale
	case model.SexMale:
		from = c.firstMale
	}
	pop := c.pop
	include := func(agent int) (bool, error) {
		return in.exerter.Eligible(pop.Attributes(agent))
	}
	tree, err := in.buildTree(c, "exerters", from, to, include)
	if err != nil {
		return nil, err
	}
	c.exerters = tree
	return tree, nil
}

func (in *Interaction) buildTree(c *populationCache, kind string, from, to int, include func(int) (bool, error)) (*spatial.Tree, error) {
	start := time.Now()
	tree := spatial.NewTree(c.nodeHint)
	if err := tree.Snapshot(&c.positions, from, to, include); err != nil {
		return nil, err
	}
	if err := tree.Link(c.positions.Space); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	c.buildTime += elapsed
	in.logger.Debug("spatial index built",
		"population", c.pop.ID(),
		"index", kind,
		"agents", tree.Agents(),
		"nodes", tree.Count(),
		"duration", elapsed)
	return tree, nil
}

// exerterEligible tests one exerter outside an index, honouring the deferred
// evaluation fault.
func (in *Interaction) exerterEligible(op string, c *populationCache, agent int) (bool, error) {
	if c.exerterFault != "" {
		return false, model.Errorf(model.ErrConstraint, op, "population %s cannot act as exerter: %s", c.pop.ID(), c.exerterFault)
	}
	if in.exerter.IsEmpty() {
		return true, nil
	}
	return in.exerter.Eligible(c.pop.Attributes(agent))
}

func (in *Interaction) receiverEligible(c *populationCache, agent int) (bool, error) {
	if in.receiver.IsEmpty() {
		return true, nil
	}
	return in.receiver.Eligible(c.pop.Attributes(agent))
}

// EvaluationStats describes every evaluated population, ordered by id.
func (in *Interaction) EvaluationStats() []model.EvaluationStats {
	ids := make([]string, 0, len(in.caches))
	for id, c := range in.caches {
		if c.evaluated {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]model.EvaluationStats, 0, len(ids))
	for _, id := range ids {
		c := in.caches[id]
		s := model.EvaluationStats{
			PopulationID:      id,
			Agents:            c.agents,
			ExertersAliased:   c.exerters != nil && c.exerters == c.all,
			BuildMilliseconds: float64(c.buildTime.Microseconds()) / 1000,
		}
		if c.all != nil {
			s.AllNodes = c.all.Count()
		}
		if c.exerters != nil {
			s.ExerterNodes = c.exerters.Count()
		}
		out = append(out, s)
	}
	return out
}
