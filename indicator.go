package gantt

import (
	"strings"

	"github.com/pkg/errors"
)

// Indicator is a named value derived from a schedule: Expression / Divisor,
// floored for Integer indicators.
type Indicator struct {
	problem *SchedulingProblem
	name    string
	expr    Expr
	divisor int64
	kind    NumericKind
	bounded bool
	min     int64
	max     int64
}

type IndicatorOption func(i *Indicator)

func WithKind(k NumericKind) IndicatorOption {
	return func(i *Indicator) {
		i.kind = k
	}
}

func WithDivisor(d int64) IndicatorOption {
	return func(i *Indicator) {
		i.divisor = d
	}
}

func WithBounds(min, max int64) IndicatorOption {
	return func(i *Indicator) {
		i.bounded = true
		i.min = min
		i.max = max
	}
}

func (i *Indicator) Name() string {
	return i.name
}

func (i *Indicator) Expression() Expr {
	return i.expr
}

func (i *Indicator) Divisor() int64 {
	return i.divisor
}

func (i *Indicator) Kind() NumericKind {
	return i.kind
}

func (i *Indicator) Bounds() (int64, int64, bool) {
	return i.min, i.max, i.bounded
}

type Objective struct {
	Direction Direction
	Target    Expr
}

func MinimizeObjective(target Expr) Objective {
	return Objective{Direction: Minimize, Target: target}
}

func MaximizeObjective(target Expr) Objective {
	return Objective{Direction: Maximize, Target: target}
}

func (o Objective) String() string {
	return strings.ToLower(string(o.Direction)) + " " + exprString(o.Target)
}

// AddIndicatorFlowTime sums the end times of the tasks registered so far.
func (p *SchedulingProblem) AddIndicatorFlowTime() (*Indicator, error) {
	terms := []Expr{}
	for _, t := range p.tasks {
		terms = append(terms, TaskEnd(t))
	}
	if len(terms) == 0 {
		terms = append(terms, NewConst(0))
	}
	return p.AddIndicator("FlowTime", NewSum(terms...))
}

func (p *SchedulingProblem) AddIndicatorMakespan() (*Indicator, error) {
	return p.AddIndicator("Makespan", Makespan())
}

// AddIndicatorResourceUtilization is the percentage of the horizon r is busy.
func (p *SchedulingProblem) AddIndicatorResourceUtilization(r *Resource) (*Indicator, error) {
	if err := p.ownsResource(r); err != nil {
		return nil, err
	}
	if p.horizon == 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Utilization of %s needs a fixed horizon", r.name)
	}
	return p.AddIndicator("Utilization("+r.name+")",
		NewScale(100, ResourceBusy(r)),
		WithDivisor(p.horizon), WithBounds(0, 100))
}

// AddIndicatorResourceCost is the sum of cost_per_period * busy periods.
func (p *SchedulingProblem) AddIndicatorResourceCost(rs ...*Resource) (*Indicator, error) {
	if len(rs) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "Resource cost needs at least one resource")
	}
	names := []string{}
	terms := []Expr{}
	for _, r := range rs {
		if err := p.ownsResource(r); err != nil {
			return nil, err
		}
		names = append(names, r.name)
		terms = append(terms, NewScale(r.costPerPeriod, ResourceBusy(r)))
	}
	return p.AddIndicator("ResourceCost("+strings.Join(names, ",")+")",
		NewSum(terms...), WithBounds(0, maxInt64))
}

func (p *SchedulingProblem) AddIndicatorNumberOfScheduledTasks() (*Indicator, error) {
	terms := []Expr{}
	for _, t := range p.tasks {
		terms = append(terms, TaskScheduled(t))
	}
	if len(terms) == 0 {
		terms = append(terms, NewConst(0))
	}
	return p.AddIndicator("ScheduledTasks", NewSum(terms...))
}

func (p *SchedulingProblem) ownsResource(r *Resource) error {
	if r == nil {
		return errors.Wrap(ErrInvalidResource, "Nil resource")
	}
	if r.problem != p {
		return errors.Wrapf(ErrInvalidResource, "Resource %s does not belong to problem %s", r.name, p.name)
	}
	return nil
}
