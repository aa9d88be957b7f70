package gantt

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a scheduling problem. Numbers may be
// written as strings.
type Definition struct {
	Name        string                 `yaml:"name"`
	Horizon     interface{}            `yaml:"horizon"`
	Resources   []ResourceDefinition   `yaml:"resources"`
	Tasks       []TaskDefinition       `yaml:"tasks"`
	Precedences []PrecedenceDefinition `yaml:"precedences"`
	Indicators  []IndicatorDefinition  `yaml:"indicators"`
	Constraints []yaml.Node            `yaml:"constraints"`
	Objective   *ObjectiveDefinition   `yaml:"objective"`
}

type ResourceDefinition struct {
	Name         string        `yaml:"name"`
	Productivity interface{}   `yaml:"productivity"`
	Cost         interface{}   `yaml:"cost"`
	Unavailable  []interface{} `yaml:"unavailable"`
}

type SelectDefinition struct {
	Candidates []string    `yaml:"candidates"`
	Count      interface{} `yaml:"count"`
	Kind       string      `yaml:"kind"`
}

type TaskDefinition struct {
	Name       string             `yaml:"name"`
	Duration   interface{}        `yaml:"duration"`
	Work       interface{}        `yaml:"work"`
	Optional   bool               `yaml:"optional"`
	Priority   interface{}        `yaml:"priority"`
	Resources  []string           `yaml:"resources"`
	Select     []SelectDefinition `yaml:"select"`
	StartAt    interface{}        `yaml:"start_at"`
	StartAfter interface{}        `yaml:"start_after"`
	EndAt      interface{}        `yaml:"end_at"`
	EndBefore  interface{}        `yaml:"end_before"`
}

type PrecedenceDefinition struct {
	Before string      `yaml:"before"`
	After  string      `yaml:"after"`
	Kind   string      `yaml:"kind"`
	Offset interface{} `yaml:"offset"`
}

// IndicatorDefinition is either a builtin (flowtime, makespan, utilization,
// cost, scheduled) or a named expression.
type IndicatorDefinition struct {
	Builtin   string      `yaml:"builtin"`
	Resources []string    `yaml:"resources"`
	Name      string      `yaml:"name"`
	Expr      yaml.Node   `yaml:"expr"`
	Divisor   interface{} `yaml:"divisor"`
	Kind      string      `yaml:"kind"`
	Min       interface{} `yaml:"min"`
	Max       interface{} `yaml:"max"`
}

type ObjectiveDefinition struct {
	Direction string    `yaml:"direction"`
	Target    yaml.Node `yaml:"target"`
}

func LoadDefinitionFile(path string) (*SchedulingProblem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Open definition")
	}
	defer f.Close()
	return LoadDefinition(f)
}

func LoadDefinition(r io.Reader) (*SchedulingProblem, error) {
	d := Definition{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrapf(ErrDefinition, "Decode: %v", err)
	}
	return d.Problem()
}

// Problem builds a new SchedulingProblem from d.
func (d Definition) Problem() (*SchedulingProblem, error) {
	options := []ProblemOption{}
	if d.Horizon != nil {
		h, err := toInt64("horizon", d.Horizon)
		if err != nil {
			return nil, err
		}
		options = append(options, WithHorizon(h))
	}
	p, err := NewSchedulingProblem(d.Name, options...)
	if err != nil {
		return nil, err
	}

	for _, v := range d.Resources {
		if err := v.add(p); err != nil {
			return nil, errors.Wrapf(err, "Resource %s", v.Name)
		}
	}
	for _, v := range d.Tasks {
		if err := v.add(p); err != nil {
			return nil, errors.Wrapf(err, "Task %s", v.Name)
		}
	}
	for _, v := range d.Precedences {
		if err := v.add(p); err != nil {
			return nil, errors.Wrapf(err, "Precedence %s -> %s", v.Before, v.After)
		}
	}
	for _, v := range d.Indicators {
		if err := v.add(p); err != nil {
			return nil, errors.Wrapf(err, "Indicator %s%s", v.Builtin, v.Name)
		}
	}
	for i := range d.Constraints {
		e, err := parseExprNode(&d.Constraints[i])
		if err != nil {
			return nil, err
		}
		if err := p.AddConstraint(e); err != nil {
			return nil, err
		}
	}
	if d.Objective != nil {
		direction, err := ParseDirection(d.Objective.Direction)
		if err != nil {
			return nil, err
		}
		target, err := parseExprNode(&d.Objective.Target)
		if err != nil {
			return nil, err
		}
		if err := p.AddObjective(Objective{Direction: direction, Target: target}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (v ResourceDefinition) add(p *SchedulingProblem) error {
	options := []ResourceOption{}
	if v.Productivity != nil {
		n, err := toInt64("productivity", v.Productivity)
		if err != nil {
			return err
		}
		options = append(options, WithProductivity(n))
	}
	if v.Cost != nil {
		n, err := toInt64("cost", v.Cost)
		if err != nil {
			return err
		}
		options = append(options, WithCostPerPeriod(n))
	}
	r, err := NewResource(p, v.Name, options...)
	if err != nil {
		return err
	}
	for _, u := range v.Unavailable {
		period, err := toInterval(u)
		if err != nil {
			return err
		}
		if err := r.AddUnavailability(period.Start, period.End); err != nil {
			return err
		}
	}
	return nil
}

func (v TaskDefinition) add(p *SchedulingProblem) error {
	options := []TaskOption{}
	if v.Optional {
		options = append(options, Optional())
	}
	if v.Priority != nil {
		n, err := toInt64("priority", v.Priority)
		if err != nil {
			return err
		}
		options = append(options, WithPriority(n))
	}

	var t Task
	switch {
	case v.Duration != nil && v.Work == nil:
		d, err := toInt64("duration", v.Duration)
		if err != nil {
			return err
		}
		if t, err = NewFixedDurationTask(p, v.Name, d, options...); err != nil {
			return err
		}
	case v.Work != nil && v.Duration == nil:
		w, err := toInt64("work", v.Work)
		if err != nil {
			return err
		}
		if t, err = NewVariableDurationTask(p, v.Name, w, options...); err != nil {
			return err
		}
	default:
		return errors.Wrap(ErrDefinition, "Exactly one of duration and work is required")
	}

	for _, name := range v.Resources {
		r, err := p.Resource(name)
		if err != nil {
			return errors.Wrapf(ErrInvalidResource, "Unknown resource %s", name)
		}
		if err := t.AddRequiredResource(r); err != nil {
			return err
		}
	}
	for _, s := range v.Select {
		candidates := []*Resource{}
		for _, name := range s.Candidates {
			r, err := p.Resource(name)
			if err != nil {
				return errors.Wrapf(ErrInvalidResource, "Unknown resource %s", name)
			}
			candidates = append(candidates, r)
		}
		n := int64(1)
		if s.Count != nil {
			var err error
			if n, err = toInt64("count", s.Count); err != nil {
				return err
			}
		}
		kind, err := ParseSelectKind(s.Kind)
		if err != nil {
			return err
		}
		sel, err := NewSelectWorkers(candidates, int(n), kind)
		if err != nil {
			return err
		}
		if err := t.AddRequiredResource(sel); err != nil {
			return err
		}
	}

	windows := []struct {
		key   string
		value interface{}
		add   func(Task, int64) error
	}{
		{"start_at", v.StartAt, p.AddTaskStartAt},
		{"start_after", v.StartAfter, p.AddTaskStartAfter},
		{"end_at", v.EndAt, p.AddTaskEndAt},
		{"end_before", v.EndBefore, p.AddTaskEndBefore},
	}
	for _, w := range windows {
		if w.value == nil {
			continue
		}
		n, err := toInt64(w.key, w.value)
		if err != nil {
			return err
		}
		if err := w.add(t, n); err != nil {
			return err
		}
	}
	return nil
}

func (v PrecedenceDefinition) add(p *SchedulingProblem) error {
	before, err := p.Task(v.Before)
	if err != nil {
		return errors.Wrapf(ErrUnboundVariable, "Unknown task %s", v.Before)
	}
	after, err := p.Task(v.After)
	if err != nil {
		return errors.Wrapf(ErrUnboundVariable, "Unknown task %s", v.After)
	}
	kind, err := ParsePrecedenceKind(v.Kind)
	if err != nil {
		return err
	}
	offset := int64(0)
	if v.Offset != nil {
		if offset, err = toInt64("offset", v.Offset); err != nil {
			return err
		}
	}
	return p.AddPrecedence(before, after, kind, offset)
}

func (v IndicatorDefinition) add(p *SchedulingProblem) error {
	resources := []*Resource{}
	for _, name := range v.Resources {
		r, err := p.Resource(name)
		if err != nil {
			return errors.Wrapf(ErrInvalidResource, "Unknown resource %s", name)
		}
		resources = append(resources, r)
	}

	var err error
	switch strings.ToLower(v.Builtin) {
	case "flowtime":
		_, err = p.AddIndicatorFlowTime()
	case "makespan":
		_, err = p.AddIndicatorMakespan()
	case "scheduled":
		_, err = p.AddIndicatorNumberOfScheduledTasks()
	case "cost":
		_, err = p.AddIndicatorResourceCost(resources...)
	case "utilization":
		for _, r := range resources {
			if _, err = p.AddIndicatorResourceUtilization(r); err != nil {
				break
			}
		}
	case "":
		err = v.addExpr(p)
	default:
		err = errors.Wrapf(ErrDefinition, "Unknown builtin indicator %q", v.Builtin)
	}
	return err
}

func (v IndicatorDefinition) addExpr(p *SchedulingProblem) error {
	e, err := parseExprNode(&v.Expr)
	if err != nil {
		return err
	}
	options := []IndicatorOption{}
	if v.Divisor != nil {
		n, err := toInt64("divisor", v.Divisor)
		if err != nil {
			return err
		}
		options = append(options, WithDivisor(n))
	}
	if v.Kind != "" {
		k, err := ParseNumericKind(v.Kind)
		if err != nil {
			return err
		}
		options = append(options, WithKind(k))
	}
	if v.Min != nil || v.Max != nil {
		min, max := int64(0), int64(maxInt64)
		if v.Min != nil {
			if min, err = toInt64("min", v.Min); err != nil {
				return err
			}
		}
		if v.Max != nil {
			if max, err = toInt64("max", v.Max); err != nil {
				return err
			}
		}
		options = append(options, WithBounds(min, max))
	}
	_, err = p.AddIndicator(v.Name, e, options...)
	return err
}

// exprDefinition is the mapping form of an expression node. Scalars are
// read as constants or references.
type exprDefinition struct {
	Ref   string      `yaml:"ref"`
	Const interface{} `yaml:"const"`
	Sum   []yaml.Node `yaml:"sum"`
	Scale interface{} `yaml:"scale"`
	Of    yaml.Node   `yaml:"of"`
	Op    string      `yaml:"op"`
	Left  yaml.Node   `yaml:"left"`
	Right yaml.Node   `yaml:"right"`
	And   []yaml.Node `yaml:"and"`
	Or    []yaml.Node `yaml:"or"`
}

func parseExprNode(n *yaml.Node) (Expr, error) {
	if n == nil || n.Kind == 0 {
		return nil, errors.Wrap(ErrDefinition, "Missing expression")
	}
	if n.Kind == yaml.ScalarNode {
		if v, err := cast.ToInt64E(n.Value); err == nil {
			return NewConst(v), nil
		}
		return ParseRef(n.Value)
	}
	if n.Kind != yaml.MappingNode {
		return nil, errors.Wrapf(ErrDefinition, "Expression at line %d must be a scalar or a mapping", n.Line)
	}

	d := exprDefinition{}
	if err := n.Decode(&d); err != nil {
		return nil, errors.Wrapf(ErrDefinition, "Expression at line %d: %v", n.Line, err)
	}
	switch {
	case d.Ref != "":
		return ParseRef(d.Ref)
	case d.Const != nil:
		v, err := toInt64("const", d.Const)
		if err != nil {
			return nil, err
		}
		return NewConst(v), nil
	case d.Sum != nil:
		terms, err := parseExprNodes(d.Sum)
		if err != nil {
			return nil, err
		}
		return NewSum(terms...), nil
	case d.Scale != nil:
		factor, err := toInt64("scale", d.Scale)
		if err != nil {
			return nil, err
		}
		x, err := parseExprNode(&d.Of)
		if err != nil {
			return nil, err
		}
		return NewScale(factor, x), nil
	case d.Op != "":
		op, err := ParseOp(d.Op)
		if err != nil {
			return nil, err
		}
		left, err := parseExprNode(&d.Left)
		if err != nil {
			return nil, err
		}
		right, err := parseExprNode(&d.Right)
		if err != nil {
			return nil, err
		}
		return Compare{Op: op, Left: left, Right: right}, nil
	case d.And != nil:
		terms, err := parseExprNodes(d.And)
		if err != nil {
			return nil, err
		}
		return NewAnd(terms...), nil
	case d.Or != nil:
		terms, err := parseExprNodes(d.Or)
		if err != nil {
			return nil, err
		}
		return NewOr(terms...), nil
	}
	return nil, errors.Wrapf(ErrDefinition, "Expression at line %d has no known key", n.Line)
}

func parseExprNodes(l []yaml.Node) ([]Expr, error) {
	terms := make([]Expr, 0, len(l))
	for i := range l {
		e, err := parseExprNode(&l[i])
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	return terms, nil
}

func toInt64(key string, v interface{}) (int64, error) {
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, errors.Wrapf(ErrDefinition, "%s: %v", key, err)
	}
	return n, nil
}

// toInterval reads {start, end} or [start, end].
func toInterval(v interface{}) (Interval, error) {
	var start, end interface{}
	switch u := v.(type) {
	case map[string]interface{}:
		start, end = u["start"], u["end"]
	case []interface{}:
		if len(u) == 2 {
			start, end = u[0], u[1]
		}
	}
	if start == nil || end == nil {
		return Interval{}, errors.Wrapf(ErrDefinition, "Unavailable period %v", v)
	}
	s, err := toInt64("start", start)
	if err != nil {
		return Interval{}, err
	}
	e, err := toInt64("end", end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e), nil
}
