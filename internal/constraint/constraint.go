// Package constraint decides whether an agent may act as receiver or
// exerter of an interaction.
package constraint

import (
	"spatialengine/internal/model"
)

// RoleConstraint is the set of optional predicates for one role. Nil
// pointers are unconstrained.
type RoleConstraint struct {
	Sex     model.Sex
	Tag     *int64
	MinAge  *int
	MaxAge  *int
	Migrant *bool
	Flags   [5]*bool
}

// HasNonSexConstraints reports whether anything other than sex is
// constrained; when false, eligibility reduces to the cheap sex test.
func (c RoleConstraint) HasNonSexConstraints() bool {
	if c.Tag != nil || c.MinAge != nil || c.MaxAge != nil || c.Migrant != nil {
		return true
	}
	for _, f := range c.Flags {
		if f != nil {
			return true
		}
	}
	return false
}

func (c RoleConstraint) IsEmpty() bool {
	return c.Sex == model.SexUnspecified && !c.HasNonSexConstraints()
}

// NeedsAttributes reports whether the constraint reads attributes that may
// be unset on an agent (tag and flags).
func (c RoleConstraint) NeedsAttributes() bool {
	if c.Tag != nil {
		return true
	}
	for _, f := range c.Flags {
		if f != nil {
			return true
		}
	}
	return false
}

// Validate checks the constraint against the population model it will be
// applied to.
func (c RoleConstraint) Validate(op string, modelsAge bool) error {
	switch c.Sex {
	case model.SexUnspecified, model.SexFemale, model.SexMale:
	default:
		return model.Errorf(model.ErrConfiguration, op, "sex constraint must be male, female or unspecified, got %v", c.Sex)
	}
	if (c.MinAge != nil || c.MaxAge != nil) && !modelsAge {
		return model.Errorf(model.ErrConfiguration, op, "age constraints require a population model with overlapping generations")
	}
	if c.MinAge != nil && c.MaxAge != nil && *c.MinAge > *c.MaxAge {
		return model.Errorf(model.ErrConfiguration, op, "minimum age %d exceeds maximum age %d", *c.MinAge, *c.MaxAge)
	}
	return nil
}

// CanEvaluate reports whether Eligible cannot fail for the agent. Agents
// rejected by the sex predicate never reach the attribute checks.
func (c RoleConstraint) CanEvaluate(a model.Attributes) bool {
	if c.Sex != model.SexUnspecified && a.Sex != c.Sex {
		return true
	}
	if c.Tag != nil && a.Tag == nil {
		return false
	}
	for i, f := range c.Flags {
		if f != nil && a.Flags[i] == nil {
			return false
		}
	}
	return true
}

// Eligible tests the agent against the constraint. Sex is checked first;
// the remaining predicates only when configured. An unset attribute that
// the constraint needs is an ErrConstraint.
func (c RoleConstraint) Eligible(a model.Attributes) (bool, error) {
	if c.Sex != model.SexUnspecified && a.Sex != c.Sex {
		return false, nil
	}
	if !c.HasNonSexConstraints() {
		return true, nil
	}
	if c.Tag != nil {
		if a.Tag == nil {
			return false, model.Errorf(model.ErrConstraint, "constraint.Eligible", "tag constraint applied to an agent whose tag is not set")
		}
		if *a.Tag != *c.Tag {
			return false, nil
		}
	}
	if c.MinAge != nil && a.Age < *c.MinAge {
		return false, nil
	}
	if c.MaxAge != nil && a.Age > *c.MaxAge {
		return false, nil
	}
	if c.Migrant != nil && a.Migrant != *c.Migrant {
		return false, nil
	}
	for i, f := range c.Flags {
		if f == nil {
			continue
		}
		if a.Flags[i] == nil {
			return false, model.Errorf(model.ErrConstraint, "constraint.Eligible", "flag %d constraint applied to an agent whose flag %d is not set", i, i)
		}
		if *a.Flags[i] != *f {
			return false, nil
		}
	}
	return true, nil
}
