package gantt

import (
	"github.com/pkg/errors"
)

// SchedulingProblem is the root aggregate. It is not safe for concurrent use.
type SchedulingProblem struct {
	name    string
	horizon int64
	state   ProblemState

	tasks         []Task
	taskIndex     map[string]Task
	resources     []*Resource
	resourceIndex map[string]*Resource

	constraints    []Expr
	indicators     []*Indicator
	indicatorIndex map[string]*Indicator
	objective      *Objective

	precedences *PrecedenceGraph
}

type ProblemOption func(p *SchedulingProblem)

// WithHorizon fixes the upper bound of the time axis.
func WithHorizon(h int64) ProblemOption {
	return func(p *SchedulingProblem) {
		p.horizon = h
		if h <= 0 {
			p.horizon = -1
		}
	}
}

func NewSchedulingProblem(name string, options ...ProblemOption) (*SchedulingProblem, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "Empty problem name")
	}
	p := &SchedulingProblem{
		name:           name,
		state:          StateBuilding,
		taskIndex:      make(map[string]Task),
		resourceIndex:  make(map[string]*Resource),
		indicatorIndex: make(map[string]*Indicator),
		precedences:    NewPrecedenceGraph(),
	}
	for _, o := range options {
		o(p)
	}
	if p.horizon < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Problem %s horizon must be positive", name)
	}
	return p, nil
}

func (p *SchedulingProblem) Name() string {
	return p.name
}

// Horizon returns the fixed horizon, false when it is derived at build time.
func (p *SchedulingProblem) Horizon() (int64, bool) {
	return p.horizon, p.horizon > 0
}

func (p *SchedulingProblem) State() ProblemState {
	return p.state
}

func (p *SchedulingProblem) Tasks() []Task {
	l := make([]Task, len(p.tasks))
	copy(l, p.tasks)
	return l
}

func (p *SchedulingProblem) Resources() []*Resource {
	l := make([]*Resource, len(p.resources))
	copy(l, p.resources)
	return l
}

func (p *SchedulingProblem) Constraints() []Expr {
	l := make([]Expr, len(p.constraints))
	copy(l, p.constraints)
	return l
}

func (p *SchedulingProblem) Indicators() []*Indicator {
	l := make([]*Indicator, len(p.indicators))
	copy(l, p.indicators)
	return l
}

func (p *SchedulingProblem) Objective() (Objective, bool) {
	if p.objective == nil {
		return Objective{}, false
	}
	return *p.objective, true
}

func (p *SchedulingProblem) Precedences() []Precedence {
	return p.precedences.Edges()
}

func (p *SchedulingProblem) Task(name string) (Task, error) {
	t, ok := p.taskIndex[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "Task %s", name)
	}
	return t, nil
}

func (p *SchedulingProblem) Resource(name string) (*Resource, error) {
	r, ok := p.resourceIndex[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "Resource %s", name)
	}
	return r, nil
}

func (p *SchedulingProblem) Indicator(name string) (*Indicator, error) {
	i, ok := p.indicatorIndex[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "Indicator %s", name)
	}
	return i, nil
}

func (p *SchedulingProblem) AddTask(t Task) error {
	if err := p.checkBuilding(); err != nil {
		return err
	}
	if t == nil {
		return errors.Wrap(ErrInvalidArgument, "Nil task")
	}
	if t.Problem() != p {
		return errors.Wrapf(ErrInvalidArgument, "Task %s was created for another problem", t.Name())
	}
	if _, ok := p.taskIndex[t.Name()]; ok {
		return errors.Wrapf(ErrDuplicateName, "Task %s", t.Name())
	}
	if err := p.precedences.AddTask(t.Name()); err != nil {
		return errors.Wrapf(ErrDuplicateName, "Task %s: %v", t.Name(), err)
	}

	p.tasks = append(p.tasks, t)
	p.taskIndex[t.Name()] = t
	p.logger().Debugf("Task %s added", t.Name())
	return nil
}

func (p *SchedulingProblem) AddResource(r *Resource) error {
	if err := p.checkBuilding(); err != nil {
		return err
	}
	if r == nil {
		return errors.Wrap(ErrInvalidArgument, "Nil resource")
	}
	if r.problem != p {
		return errors.Wrapf(ErrInvalidArgument, "Resource %s was created for another problem", r.name)
	}
	if _, ok := p.resourceIndex[r.name]; ok {
		return errors.Wrapf(ErrDuplicateName, "Resource %s", r.name)
	}

	p.resources = append(p.resources, r)
	p.resourceIndex[r.name] = r
	p.logger().Debugf("Resource %s added", r.name)
	return nil
}

// AddConstraint registers a boolean expression every schedule must satisfy.
func (p *SchedulingProblem) AddConstraint(e Expr) error {
	if err := p.checkBuilding(); err != nil {
		return err
	}
	if err := checkExpr(e, true); err != nil {
		return err
	}
	if err := p.checkBound(e); err != nil {
		return err
	}
	p.constraints = append(p.constraints, e)
	return nil
}

func (p *SchedulingProblem) AddIndicator(name string, e Expr, options ...IndicatorOption) (*Indicator, error) {
	if err := p.checkBuilding(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "Empty indicator name")
	}
	if _, ok := p.indicatorIndex[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateName, "Indicator %s", name)
	}
	if err := checkExpr(e, false); err != nil {
		return nil, err
	}
	if err := p.checkBound(e); err != nil {
		return nil, err
	}

	i := &Indicator{problem: p, name: name, expr: e, divisor: 1, kind: Integer}
	for _, o := range options {
		o(i)
	}
	if i.divisor < 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Indicator %s divisor %d", name, i.divisor)
	}
	if _, err := ParseNumericKind(string(i.kind)); err != nil {
		return nil, err
	}
	if i.bounded && i.min > i.max {
		return nil, errors.Wrapf(ErrInvalidArgument, "Indicator %s bounds [%d, %d]", name, i.min, i.max)
	}

	p.indicators = append(p.indicators, i)
	p.indicatorIndex[name] = i
	p.logger().Debugf("Indicator %s = %s", name, e)
	return i, nil
}

func (p *SchedulingProblem) AddObjective(o Objective) error {
	if err := p.checkBuilding(); err != nil {
		return err
	}
	if p.objective != nil {
		return errors.Wrapf(ErrAmbiguousObjective, "Problem %s already has %s", p.name, p.objective)
	}
	if _, err := ParseDirection(string(o.Direction)); err != nil {
		return err
	}
	if err := checkExpr(o.Target, false); err != nil {
		return err
	}
	if err := p.checkBound(o.Target); err != nil {
		return err
	}
	p.objective = &o
	return nil
}

// AddPrecedence orders two tasks. It only binds when both are scheduled.
func (p *SchedulingProblem) AddPrecedence(before, after Task, kind PrecedenceKind, offset int64) error {
	if err := p.checkBuilding(); err != nil {
		return err
	}
	if err := p.ownsTask(before); err != nil {
		return err
	}
	if err := p.ownsTask(after); err != nil {
		return err
	}
	kind, err := ParsePrecedenceKind(string(kind))
	if err != nil {
		return err
	}
	if offset < 0 {
		return errors.Wrapf(ErrInvalidArgument, "Precedence offset %d", offset)
	}
	return p.precedences.Add(Precedence{
		Before: before.Name(),
		After:  after.Name(),
		Kind:   kind,
		Offset: offset,
	})
}

func (p *SchedulingProblem) AddTaskStartAt(t Task, v int64) error {
	return p.addTimeWindow(t, Eq(TaskStart(t), NewConst(v)))
}

func (p *SchedulingProblem) AddTaskStartAfter(t Task, v int64) error {
	return p.addTimeWindow(t, Ge(TaskStart(t), NewConst(v)))
}

func (p *SchedulingProblem) AddTaskEndAt(t Task, v int64) error {
	return p.addTimeWindow(t, Eq(TaskEnd(t), NewConst(v)))
}

func (p *SchedulingProblem) AddTaskEndBefore(t Task, v int64) error {
	return p.addTimeWindow(t, Le(TaskEnd(t), NewConst(v)))
}

// addTimeWindow only binds optional tasks when they are scheduled.
func (p *SchedulingProblem) addTimeWindow(t Task, c Compare) error {
	if err := p.ownsTask(t); err != nil {
		return err
	}
	if !t.Optional() {
		return p.AddConstraint(c)
	}
	return p.AddConstraint(NewOr(Eq(TaskScheduled(t), NewConst(0)), c))
}

func (p *SchedulingProblem) ownsTask(t Task) error {
	if t == nil {
		return errors.Wrap(ErrInvalidArgument, "Nil task")
	}
	if registered, ok := p.taskIndex[t.Name()]; !ok || registered != t {
		return errors.Wrapf(ErrUnboundVariable, "Task %s is not registered on problem %s", t.Name(), p.name)
	}
	return nil
}

// checkBound fails when e references an entity p does not know.
func (p *SchedulingProblem) checkBound(e Expr) error {
	return walkVars(e, func(v Var) error {
		ok := true
		switch v.Entity {
		case EntityTask:
			_, ok = p.taskIndex[v.Name]
		case EntityResource:
			_, ok = p.resourceIndex[v.Name]
		case EntityIndicator:
			_, ok = p.indicatorIndex[v.Name]
		}
		if !ok {
			return errors.Wrapf(ErrUnboundVariable, "%s %s in %s", v.Entity, v.Name, e)
		}
		return nil
	})
}

func (p *SchedulingProblem) checkBuilding() error {
	if p.state.IsFrozen() {
		return errors.Wrapf(ErrFrozenProblem, "Problem %s is %s", p.name, p.state)
	}
	return nil
}

func (p *SchedulingProblem) changeState(s ProblemState) {
	p.logger().Debugf("State %s -> %s", p.state, s)
	p.state = s
}

func (p *SchedulingProblem) logger() Logger {
	return problemLogger{}.WithProblem(p.name).Logger()
}
