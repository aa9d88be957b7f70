package gantt

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type VarKind string

const (
	VarInteger VarKind = "Integer"
	VarBoolean VarKind = "Boolean"
)

// Variable is a model variable with domain [Lo, Hi]. Lo > Hi is an empty
// domain, which makes the model unsatisfiable.
type Variable struct {
	Name string
	Kind VarKind
	Lo   int64
	Hi   int64
}

func (v Variable) IsFixed() bool {
	return v.Lo == v.Hi
}

// VarRef indexes CanonicalModel.Variables.
type VarRef int

// Literal is a boolean variable or its negation.
type Literal struct {
	Var     VarRef
	Negated bool
}

func (l Literal) Not() Literal {
	return Literal{Var: l.Var, Negated: !l.Negated}
}

// IsTrue evaluates l against a full assignment.
func (l Literal) IsTrue(values []int64) bool {
	return (values[l.Var] == 1) != l.Negated
}

func (l Literal) String() string {
	if l.Negated {
		return fmt.Sprintf("!x%d", l.Var)
	}
	return fmt.Sprintf("x%d", l.Var)
}

type LinearTerm struct {
	Var  VarRef
	Coef int64
}

type Relation string

const (
	RelLe Relation = "<="
	RelGe Relation = ">="
	RelEq Relation = "=="
)

// LinearConstraint is sum(Terms) Rel Bound, only enforced when every literal
// of EnforcedBy is true.
type LinearConstraint struct {
	Name       string
	Terms      []LinearTerm
	Rel        Relation
	Bound      int64
	EnforcedBy []Literal
}

func (c LinearConstraint) IsSatisfied(values []int64) bool {
	for _, l := range c.EnforcedBy {
		if !l.IsTrue(values) {
			return true
		}
	}
	sum := int64(0)
	for _, t := range c.Terms {
		sum += t.Coef * values[t.Var]
	}
	switch c.Rel {
	case RelLe:
		return sum <= c.Bound
	case RelGe:
		return sum >= c.Bound
	}
	return sum == c.Bound
}

func (c LinearConstraint) String() string {
	ss := make([]string, 0, len(c.Terms))
	for _, t := range c.Terms {
		ss = append(ss, fmt.Sprintf("%d*x%d", t.Coef, t.Var))
	}
	s := strings.Join(ss, " + ") + " " + string(c.Rel) + " " + fmt.Sprint(c.Bound)
	if len(c.EnforcedBy) > 0 {
		ls := make([]string, 0, len(c.EnforcedBy))
		for _, l := range c.EnforcedBy {
			ls = append(ls, l.String())
		}
		s = "[" + strings.Join(ls, ", ") + "] -> " + s
	}
	return s
}

type ModelObjective struct {
	Direction Direction
	Terms     []LinearTerm
	Offset    int64
}

func (o ModelObjective) Evaluate(values []int64) int64 {
	v := o.Offset
	for _, t := range o.Terms {
		v += t.Coef * values[t.Var]
	}
	return v
}

type ValueHint string

const (
	ValueMin ValueHint = "min"
	ValueMax ValueHint = "max"
)

// Decision asks backends to branch on Vars in order, trying Value first.
type Decision struct {
	Vars  []VarRef
	Value ValueHint
}

// CanonicalModel is the solver-facing form of a problem.
type CanonicalModel struct {
	Variables   []Variable
	Constraints []LinearConstraint
	Objective   *ModelObjective
	Decisions   []Decision
}

func NewCanonicalModel() *CanonicalModel {
	return &CanonicalModel{}
}

func (m *CanonicalModel) NewIntVar(lo, hi int64, name string) VarRef {
	m.Variables = append(m.Variables, Variable{Name: name, Kind: VarInteger, Lo: lo, Hi: hi})
	return VarRef(len(m.Variables) - 1)
}

func (m *CanonicalModel) NewBoolVar(name string) VarRef {
	m.Variables = append(m.Variables, Variable{Name: name, Kind: VarBoolean, Lo: 0, Hi: 1})
	return VarRef(len(m.Variables) - 1)
}

func (m *CanonicalModel) AddLinear(name string, terms []LinearTerm, rel Relation, bound int64, enforcedBy ...Literal) {
	lits := make([]Literal, len(enforcedBy))
	copy(lits, enforcedBy)
	m.Constraints = append(m.Constraints, LinearConstraint{
		Name:       name,
		Terms:      terms,
		Rel:        rel,
		Bound:      bound,
		EnforcedBy: lits,
	})
}

func (m *CanonicalModel) AddDecision(value ValueHint, vars ...VarRef) {
	if len(vars) == 0 {
		return
	}
	m.Decisions = append(m.Decisions, Decision{Vars: vars, Value: value})
}

// WithConstraint returns a shallow copy of m with c appended. m is unchanged.
func (m *CanonicalModel) WithConstraint(c LinearConstraint) *CanonicalModel {
	v := *m
	v.Constraints = make([]LinearConstraint, len(m.Constraints), len(m.Constraints)+1)
	copy(v.Constraints, m.Constraints)
	v.Constraints = append(v.Constraints, c)
	return &v
}

// IsSatisfied reports whether a full assignment is within every domain and
// satisfies every constraint.
func (m *CanonicalModel) IsSatisfied(values []int64) bool {
	if len(values) != len(m.Variables) {
		return false
	}
	for i, v := range m.Variables {
		if values[i] < v.Lo || values[i] > v.Hi {
			return false
		}
	}
	for _, c := range m.Constraints {
		if !c.IsSatisfied(values) {
			return false
		}
	}
	return true
}

func (m *CanonicalModel) Validate() error {
	n := VarRef(len(m.Variables))
	checkRef := func(ref VarRef) error {
		if ref < 0 || ref >= n {
			return errors.Wrapf(ErrModel, "Variable x%d out of range", ref)
		}
		return nil
	}

	for i, v := range m.Variables {
		switch v.Kind {
		case VarInteger:
		case VarBoolean:
			if v.Lo < 0 || v.Hi > 1 {
				return errors.Wrapf(ErrModel, "Boolean x%d has bounds [%d, %d]", i, v.Lo, v.Hi)
			}
		default:
			return errors.Wrapf(ErrModel, "Variable x%d kind %q", i, v.Kind)
		}
	}
	for _, c := range m.Constraints {
		switch c.Rel {
		case RelLe, RelGe, RelEq:
		default:
			return errors.Wrapf(ErrModel, "Constraint %s relation %q", c.Name, c.Rel)
		}
		for _, t := range c.Terms {
			if err := checkRef(t.Var); err != nil {
				return err
			}
		}
		for _, l := range c.EnforcedBy {
			if err := checkRef(l.Var); err != nil {
				return err
			}
			if m.Variables[l.Var].Kind != VarBoolean {
				return errors.Wrapf(ErrModel, "Constraint %s enforced by integer x%d", c.Name, l.Var)
			}
		}
	}
	if m.Objective != nil {
		for _, t := range m.Objective.Terms {
			if err := checkRef(t.Var); err != nil {
				return err
			}
		}
	}
	for _, d := range m.Decisions {
		for _, ref := range d.Vars {
			if err := checkRef(ref); err != nil {
				return err
			}
		}
	}
	return nil
}
