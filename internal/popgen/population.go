// Package popgen provides an in-memory population snapshot and generators
// for placing agents in continuous space.
package popgen

import (
	"sort"

	"spatialengine/internal/model"
)

// Agent is one member of a generated population.
type Agent struct {
	Position   [model.MaxDimensionality]float64
	Attributes model.Attributes
}

// Population is a static model.Population backed by a slice of agents.
// Agents are stored females and hermaphrodites first, then males.
type Population struct {
	id        string
	species   string
	meta      model.SpatialMetadata
	agents    []Agent
	firstMale int
	modelsAge bool
	removed   bool
}

type Option func(*Population)

// WithSpecies sets the species id; it defaults to the population id.
func WithSpecies(species string) Option {
	return func(p *Population) { p.species = species }
}

// WithAge marks the population as using overlapping generations, which
// makes age constraints valid.
func WithAge() Option {
	return func(p *Population) { p.modelsAge = true }
}

func New(id string, meta model.SpatialMetadata, agents []Agent, opts ...Option) *Population {
	sorted := make([]Agent, len(agents))
	copy(sorted, agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Attributes.Sex != model.SexMale && sorted[j].Attributes.Sex == model.SexMale
	})
	firstMale := len(sorted)
	for i, a := range sorted {
		if a.Attributes.Sex == model.SexMale {
			firstMale = i
			break
		}
	}

	p := &Population{
		id:        id,
		species:   id,
		meta:      meta,
		agents:    sorted,
		firstMale: firstMale,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Population) ID() string { return p.id }
func (p *Population) SpeciesID() string { return p.species }
func (p *Population) Spatial() model.SpatialMetadata { return p.meta }
func (p *Population) Len() int { return len(p.agents) }
func (p *Population) FirstMaleIndex() int { return p.firstMale }
func (p *Population) ModelsAge() bool { return p.modelsAge }
func (p *Population) HasBeenRemoved() bool { return p.removed }
func (p *Population) Attributes(agent int) model.Attributes { return p.agents[agent].Attributes }

func (p *Population) Coordinate(agent, axis int) float64 {
	return p.agents[agent].Position[axis]
}

// Agent returns a copy of one agent.
func (p *Population) Agent(i int) Agent {
	return p.agents[i]
}

// SetPosition moves an agent. Evaluated interactions do not observe the
// change until they are re-evaluated.
func (p *Population) SetPosition(agent int, pos [model.MaxDimensionality]float64) {
	p.agents[agent].Position = pos
}

func (p *Population) SetAttributes(agent int, attrs model.Attributes) {
	p.agents[agent].Attributes = attrs
}

// Remove marks the population as removed from the simulation.
func (p *Population) Remove() {
	p.removed = true
}

// Box describes a space with every axis spanning [0, extent].
func Box(dims int, extent float64, periodic bool) model.SpatialMetadata {
	meta := model.SpatialMetadata{Dimensionality: dims}
	for axis := 0; axis < dims; axis++ {
		meta.Periodic[axis] = periodic
		meta.Upper[axis] = extent
	}
	return meta
}
