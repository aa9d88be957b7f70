package gantt

import (
	"fmt"

	"github.com/pkg/errors"
)

type taskVars struct {
	task      Task
	start     VarRef
	end       VarRef
	duration  linearExpr
	durVar    VarRef
	scheduled linearExpr
	lits      []Literal
	selected  map[string]VarRef
}

type usageVars struct {
	task     string
	resource string
	usage    VarRef
	present  []Literal
}

type indicatorVars struct {
	value VarRef
	num   linearExpr
}

// Lowering is a CanonicalModel plus what is needed to map an assignment back
// onto the problem it was built from.
type Lowering struct {
	Problem *SchedulingProblem
	Model   *CanonicalModel

	// Horizon is the fixed horizon, or the derived bound when HorizonFixed
	// is false.
	Horizon      int64
	HorizonFixed bool

	makespan   VarRef
	tasks      map[string]*taskVars
	usages     []usageVars
	byResource map[string][]int
	indicators map[string]*indicatorVars
}

type builder struct {
	p *SchedulingProblem
	m *CanonicalModel
	l *Lowering
}

// Build lowers p into a CanonicalModel. It only fails on structural errors;
// an infeasible problem builds fine and is reported by the solver.
func Build(p *SchedulingProblem) (*Lowering, error) {
	if p == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "Nil problem")
	}
	b := &builder{
		p: p,
		m: NewCanonicalModel(),
	}
	b.l = &Lowering{
		Problem:    p,
		Model:      b.m,
		tasks:      make(map[string]*taskVars),
		byResource: make(map[string][]int),
		indicators: make(map[string]*indicatorVars),
	}

	steps := []func() error{
		b.checkTasks,
		b.buildHorizon,
		b.buildTasks,
		b.buildResources,
		b.buildPrecedences,
		b.buildIndicators,
		b.buildConstraints,
		b.buildObjective,
		b.buildDecisions,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	if err := b.m.Validate(); err != nil {
		return nil, err
	}
	return b.l, nil
}

func (b *builder) checkTasks() error {
	for _, t := range b.p.tasks {
		v, ok := t.(*VariableDurationTask)
		if ok && v.workAmount > 0 && len(v.requirements) == 0 {
			return errors.Wrapf(ErrInvalidArgument, "Task %s has work to do but no resource", v.name)
		}
	}
	return nil
}

// buildHorizon derives a bound large enough for any schedule when the
// problem has no fixed horizon: maximum durations, blocked periods and
// precedence offsets, plus every constant a constraint can push a task to.
func (b *builder) buildHorizon() error {
	if h, ok := b.p.Horizon(); ok {
		b.l.Horizon = h
		b.l.HorizonFixed = true
		return nil
	}

	h := int64(0)
	for _, t := range b.p.tasks {
		h += maxTaskDuration(t)
	}
	blocked := int64(0)
	for _, r := range b.p.resources {
		for _, v := range r.unavailable {
			blocked = max64(blocked, v.End)
		}
	}
	h += blocked
	for _, v := range b.p.precedences.Edges() {
		h += v.Offset + 1
	}
	for _, e := range b.p.constraints {
		h += constSpan(e, 1)
	}
	b.l.Horizon = h
	return nil
}

// constSpan sums the absolute scaled constants in e.
func constSpan(e Expr, factor int64) int64 {
	v := int64(0)
	switch e := e.(type) {
	case Const:
		v = abs64(factor * e.Value)
	case Scale:
		v = constSpan(e.X, factor*e.Factor)
	case Compare:
		v = constSpan(e.Left, factor) + constSpan(e.Right, factor)
	case Sum:
		for _, t := range e.Terms {
			v += constSpan(t, factor)
		}
	case And:
		for _, t := range e.Terms {
			v += constSpan(t, factor)
		}
	case Or:
		for _, t := range e.Terms {
			v += constSpan(t, factor)
		}
	}
	return v
}

func (b *builder) buildTasks() error {
	h := b.l.Horizon
	b.l.makespan = b.m.NewIntVar(0, h, "makespan")

	for _, t := range b.p.tasks {
		name := t.Name()
		tv := &taskVars{
			task:      t,
			start:     b.m.NewIntVar(0, h, name+".start"),
			end:       b.m.NewIntVar(0, h, name+".end"),
			durVar:    -1,
			scheduled: constLinear(1),
			selected:  make(map[string]VarRef),
		}
		b.l.tasks[name] = tv

		if t.Optional() {
			sched := b.m.NewBoolVar(name + ".scheduled")
			tv.scheduled = varLinear(sched)
			tv.lits = []Literal{{Var: sched}}
			off := Literal{Var: sched, Negated: true}
			b.m.AddLinear(name+".unscheduled.start", []LinearTerm{{Var: tv.start, Coef: 1}}, RelLe, 0, off)
			b.m.AddLinear(name+".unscheduled.end", []LinearTerm{{Var: tv.end, Coef: 1}}, RelLe, 0, off)
		}
		b.m.AddLinear(name+".order", []LinearTerm{{Var: tv.start, Coef: 1}, {Var: tv.end, Coef: -1}}, RelLe, 0)
		b.m.AddLinear(name+".makespan", []LinearTerm{{Var: tv.end, Coef: 1}, {Var: b.l.makespan, Coef: -1}}, RelLe, 0, tv.lits...)

		if err := b.buildSelections(tv); err != nil {
			return err
		}

		switch v := t.(type) {
		case *FixedDurationTask:
			b.buildFixedDuration(tv, v)
		case *VariableDurationTask:
			b.buildVariableDuration(tv, v)
		default:
			return errors.Wrapf(ErrInvalidArgument, "Task %s has unknown type %T", name, t)
		}
	}
	return nil
}

func (b *builder) buildSelections(tv *taskVars) error {
	name := tv.task.Name()
	for _, req := range tv.task.Requirements() {
		s, ok := req.(*SelectWorkers)
		if !ok {
			continue
		}
		terms := []LinearTerm{}
		for _, r := range s.candidates {
			sel := b.m.NewBoolVar(name + ".select." + r.name)
			tv.selected[r.name] = sel
			terms = append(terms, LinearTerm{Var: sel, Coef: 1})
			for _, l := range tv.lits {
				b.m.AddLinear(name+".unselected."+r.name, []LinearTerm{{Var: sel, Coef: 1}}, RelLe, 0, l.Not())
			}
		}

		n := int64(s.n)
		switch s.kind {
		case SelectExact:
			b.m.AddLinear(name+".select.exact", terms, RelEq, n, tv.lits...)
		case SelectAtLeast:
			b.m.AddLinear(name+".select.min", terms, RelGe, n, tv.lits...)
		case SelectAtMost:
			b.m.AddLinear(name+".select.one", terms, RelGe, 1, tv.lits...)
			b.m.AddLinear(name+".select.max", terms, RelLe, n, tv.lits...)
		default:
			return errors.Wrapf(ErrInvalidSelection, "Task %s selection kind %q", name, s.kind)
		}
	}
	return nil
}

// newUsages creates one usage variable per (task, resource) pair, the
// number of periods the resource works on the task.
func (b *builder) newUsages(tv *taskVars, hi int64) []int {
	name := tv.task.Name()
	l := []int{}
	for _, r := range taskResources(tv.task) {
		present := withLits(tv.lits)
		if sel, ok := tv.selected[r.name]; ok {
			present = append(present, Literal{Var: sel})
		}
		u := usageVars{
			task:     name,
			resource: r.name,
			usage:    b.m.NewIntVar(0, hi, name+".usage."+r.name),
			present:  present,
		}
		for _, lit := range present {
			b.m.AddLinear(u.task+".idle."+r.name, []LinearTerm{{Var: u.usage, Coef: 1}}, RelLe, 0, lit.Not())
		}
		b.l.usages = append(b.l.usages, u)
		i := len(b.l.usages) - 1
		b.l.byResource[r.name] = append(b.l.byResource[r.name], i)
		l = append(l, i)
	}
	return l
}

func (b *builder) buildFixedDuration(tv *taskVars, t *FixedDurationTask) {
	d := t.duration
	tv.duration = tv.scheduled.scale(d)
	b.m.AddLinear(t.name+".duration",
		[]LinearTerm{{Var: tv.end, Coef: 1}, {Var: tv.start, Coef: -1}}, RelEq, d, tv.lits...)

	for _, i := range b.newUsages(tv, d) {
		u := b.l.usages[i]
		b.m.AddLinear(u.task+".busy."+u.resource, []LinearTerm{{Var: u.usage, Coef: 1}}, RelEq, d, u.present...)
	}
}

// buildVariableDuration ties the duration D to ceil(work / productivity) of
// the assigned resources: P*D >= work and P*D - P <= work - 1.
func (b *builder) buildVariableDuration(tv *taskVars, t *VariableDurationTask) {
	name := t.name
	dmin, dmax := minTaskDuration(t), maxTaskDuration(t)
	if t.optional {
		dmin = 0
	}
	d := b.m.NewIntVar(dmin, dmax, name+".duration")
	tv.durVar = d
	tv.duration = varLinear(d)
	for _, l := range tv.lits {
		b.m.AddLinear(name+".unscheduled.duration", []LinearTerm{{Var: d, Coef: 1}}, RelLe, 0, l.Not())
	}
	b.m.AddLinear(name+".duration",
		[]LinearTerm{{Var: tv.end, Coef: 1}, {Var: tv.start, Coef: -1}, {Var: d, Coef: -1}}, RelEq, 0, tv.lits...)

	work := newLinearExpr()
	assigned := newLinearExpr()
	for _, i := range b.newUsages(tv, dmax) {
		u := b.l.usages[i]
		r := b.p.resourceIndex[u.resource]
		b.m.AddLinear(u.task+".busy."+u.resource,
			[]LinearTerm{{Var: u.usage, Coef: 1}, {Var: d, Coef: -1}}, RelEq, 0, u.present...)

		work = work.addTerm(u.usage, r.productivity)
		if sel, ok := tv.selected[r.name]; ok {
			assigned = assigned.addTerm(sel, r.productivity)
		} else {
			assigned.constant += r.productivity
		}
	}
	if len(work.coefs) == 0 {
		return
	}

	b.addRow(name+".work.min", work, RelGe, t.workAmount, tv.lits)
	b.addRow(name+".work.max", work.plus(assigned, -1), RelLe, t.workAmount-1, tv.lits)
}

func (b *builder) buildResources() error {
	h := b.l.Horizon
	for _, r := range b.p.resources {
		idx := b.l.byResource[r.name]

		energy := newLinearExpr()
		for _, i := range idx {
			energy = energy.addTerm(b.l.usages[i].usage, 1)
		}
		if len(idx) > 1 {
			b.addRow(r.name+".energy", energy, RelLe, h, nil)
		}

		for x := 0; x < len(idx); x++ {
			for y := x + 1; y < len(idx); y++ {
				b.buildNoOverlap(r, b.l.usages[idx[x]], b.l.usages[idx[y]])
			}
		}

		for _, i := range idx {
			u := b.l.usages[i]
			tv := b.l.tasks[u.task]
			for k, v := range r.unavailable {
				before := b.m.NewBoolVar(fmt.Sprintf("%s.%s.blocked%d", u.task, r.name, k))
				lits := withLits(u.present, Literal{Var: before})
				b.m.AddLinear(u.task+".blocked.before", []LinearTerm{{Var: tv.end, Coef: 1}}, RelLe, v.Start, lits...)
				lits = withLits(u.present, Literal{Var: before, Negated: true})
				b.m.AddLinear(u.task+".blocked.after", []LinearTerm{{Var: tv.start, Coef: 1}}, RelGe, v.End, lits...)
			}
		}
	}
	return nil
}

func (b *builder) buildNoOverlap(r *Resource, ui, uj usageVars) {
	ti, tj := b.l.tasks[ui.task], b.l.tasks[uj.task]
	o := b.m.NewBoolVar(fmt.Sprintf("%s.%s<%s", r.name, ui.task, uj.task))
	present := withLits(ui.present, uj.present...)

	b.m.AddLinear(r.name+".disjoint",
		[]LinearTerm{{Var: ti.end, Coef: 1}, {Var: tj.start, Coef: -1}}, RelLe, 0,
		withLits(present, Literal{Var: o})...)
	b.m.AddLinear(r.name+".disjoint",
		[]LinearTerm{{Var: tj.end, Coef: 1}, {Var: ti.start, Coef: -1}}, RelLe, 0,
		withLits(present, Literal{Var: o, Negated: true})...)
}

func (b *builder) buildPrecedences() error {
	for _, v := range b.p.precedences.Edges() {
		before, after := b.l.tasks[v.Before], b.l.tasks[v.After]
		lits := withLits(before.lits, after.lits...)
		terms := []LinearTerm{{Var: before.end, Coef: 1}, {Var: after.start, Coef: -1}}
		name := v.Before + ".precedes." + v.After

		switch v.Kind {
		case PrecedenceStrict:
			b.m.AddLinear(name, terms, RelLe, -v.Offset-1, lits...)
		case PrecedenceTight:
			b.m.AddLinear(name, terms, RelEq, -v.Offset, lits...)
		default:
			b.m.AddLinear(name, terms, RelLe, -v.Offset, lits...)
		}
	}
	return nil
}

// buildIndicators introduces v with div*v <= num <= div*v + div - 1.
func (b *builder) buildIndicators() error {
	for _, i := range b.p.indicators {
		num, err := b.lowerNumeric(i.expr)
		if err != nil {
			return errors.Wrapf(err, "Indicator %s", i.name)
		}
		lo, hi := num.bounds(b.m)
		lo, hi = floorDiv(lo, i.divisor), floorDiv(hi, i.divisor)
		if i.bounded {
			lo, hi = max64(lo, i.min), min64(hi, i.max)
		}

		v := b.m.NewIntVar(lo, hi, i.name)
		scaled := varLinear(v).scale(i.divisor)
		b.addRow(i.name+".floor", scaled.plus(num, -1), RelLe, 0, nil)
		b.addRow(i.name+".ceil", num.plus(scaled, -1), RelLe, i.divisor-1, nil)
		b.l.indicators[i.name] = &indicatorVars{value: v, num: num}
	}
	return nil
}

func (b *builder) buildConstraints() error {
	for _, e := range b.p.constraints {
		if err := b.lowerCondition(e, nil); err != nil {
			return errors.Wrapf(err, "Constraint %s", e)
		}
	}
	return nil
}

func (b *builder) buildObjective() error {
	o := b.p.objective
	if o == nil {
		return nil
	}
	target, err := b.lowerNumeric(o.Target)
	if err != nil {
		return errors.Wrapf(err, "Objective %s", o)
	}
	b.m.Objective = &ModelObjective{
		Direction: o.Direction,
		Terms:     target.terms(),
		Offset:    target.constant,
	}
	return nil
}

func (b *builder) buildDecisions() error {
	names := make([]string, 0, len(b.p.tasks))
	present := []VarRef{}
	selected := []VarRef{}
	durations := []VarRef{}
	for _, t := range b.p.tasks {
		tv := b.l.tasks[t.Name()]
		names = append(names, t.Name())
		for _, l := range tv.lits {
			present = append(present, l.Var)
		}
		for _, req := range t.Requirements() {
			for _, r := range req.Candidates() {
				if sel, ok := tv.selected[r.name]; ok {
					selected = append(selected, sel)
				}
			}
		}
		if tv.durVar >= 0 {
			durations = append(durations, tv.durVar)
		}
	}

	order, err := b.p.precedences.Order(names)
	if err != nil {
		return err
	}
	starts := make([]VarRef, 0, len(order))
	for _, name := range order {
		starts = append(starts, b.l.tasks[name].start)
	}

	b.m.AddDecision(ValueMax, present...)
	b.m.AddDecision(ValueMax, selected...)
	b.m.AddDecision(ValueMin, starts...)
	b.m.AddDecision(ValueMin, durations...)
	b.m.AddDecision(ValueMin, b.l.makespan)
	return nil
}

// addRow adds "e rel rhs", moving the constant of e to the right side.
func (b *builder) addRow(name string, e linearExpr, rel Relation, rhs int64, lits []Literal) {
	b.m.AddLinear(name, e.terms(), rel, rhs-e.constant, lits...)
}

func (b *builder) lowerNumeric(e Expr) (linearExpr, error) {
	switch v := e.(type) {
	case Const:
		return constLinear(v.Value), nil
	case Var:
		return b.ref(v)
	case Scale:
		x, err := b.lowerNumeric(v.X)
		if err != nil {
			return linearExpr{}, err
		}
		return x.scale(v.Factor), nil
	case Sum:
		sum := newLinearExpr()
		for _, t := range v.Terms {
			x, err := b.lowerNumeric(t)
			if err != nil {
				return linearExpr{}, err
			}
			sum = sum.plus(x, 1)
		}
		return sum, nil
	}
	return linearExpr{}, errors.Wrapf(ErrMalformedExpression, "%s is not numeric", exprString(e))
}

func (b *builder) ref(v Var) (linearExpr, error) {
	switch v.Entity {
	case EntityTask:
		tv, ok := b.l.tasks[v.Name]
		if !ok {
			break
		}
		switch v.Attr {
		case AttrStart:
			return varLinear(tv.start), nil
		case AttrEnd:
			return varLinear(tv.end), nil
		case AttrDuration:
			return tv.duration.clone(), nil
		case AttrScheduled:
			return tv.scheduled.clone(), nil
		}
	case EntityResource:
		if _, ok := b.p.resourceIndex[v.Name]; !ok {
			break
		}
		busy := newLinearExpr()
		for _, i := range b.l.byResource[v.Name] {
			busy = busy.addTerm(b.l.usages[i].usage, 1)
		}
		return busy, nil
	case EntityIndicator:
		iv, ok := b.l.indicators[v.Name]
		if !ok {
			break
		}
		return varLinear(iv.value), nil
	case EntityProblem:
		return varLinear(b.l.makespan), nil
	}
	return linearExpr{}, errors.Wrapf(ErrUnboundVariable, "%s", v)
}

// lowerCondition adds rows so that e holds whenever every literal of lits is
// true.
func (b *builder) lowerCondition(e Expr, lits []Literal) error {
	switch v := e.(type) {
	case Compare:
		h, err := getOperator(v.Op)
		if err != nil {
			return err
		}
		if h.IsDisjunctive() {
			terms := make([]Expr, 0, len(h.Split))
			for _, op := range h.Split {
				terms = append(terms, Compare{Op: op, Left: v.Left, Right: v.Right})
			}
			return b.lowerCondition(NewOr(terms...), lits)
		}

		left, err := b.lowerNumeric(v.Left)
		if err != nil {
			return err
		}
		right, err := b.lowerNumeric(v.Right)
		if err != nil {
			return err
		}
		diff := left.plus(right, -1)
		name := v.String()
		if h.Min == h.Max {
			b.addRow(name, diff, RelEq, h.Min, lits)
			return nil
		}
		if h.Min != minInt64 {
			b.addRow(name, diff, RelGe, h.Min, lits)
		}
		if h.Max != maxInt64 {
			b.addRow(name, diff, RelLe, h.Max, lits)
		}
		return nil
	case And:
		for _, t := range v.Terms {
			if err := b.lowerCondition(t, lits); err != nil {
				return err
			}
		}
		return nil
	case Or:
		if len(v.Terms) == 1 {
			return b.lowerCondition(v.Terms[0], lits)
		}
		clause := []LinearTerm{}
		for k, t := range v.Terms {
			branch := b.m.NewBoolVar(fmt.Sprintf("or%d.%d", len(b.m.Constraints), k))
			if err := b.lowerCondition(t, withLits(lits, Literal{Var: branch})); err != nil {
				return err
			}
			clause = append(clause, LinearTerm{Var: branch, Coef: 1})
		}
		b.m.AddLinear(v.String(), clause, RelGe, 1, lits...)
		return nil
	case Var:
		x, err := b.ref(v)
		if err != nil {
			return err
		}
		b.addRow(v.String(), x, RelGe, 1, lits)
		return nil
	}
	return errors.Wrapf(ErrMalformedExpression, "%s is not a condition", exprString(e))
}

func withLits(a []Literal, b ...Literal) []Literal {
	l := make([]Literal, 0, len(a)+len(b))
	l = append(l, a...)
	return append(l, b...)
}
