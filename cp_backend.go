package gantt

import (
	"context"
)

var errSearchStopped = newError("Search stopped")

type CPOption func(b *CPBackend)

// WithNodeLimit stops the search with StatusUnknown after n nodes.
func WithNodeLimit(n int64) CPOption {
	return func(b *CPBackend) {
		b.nodeLimit = n
	}
}

func WithBackendName(name string) CPOption {
	return func(b *CPBackend) {
		b.name = name
	}
}

// CPBackend is a bounds-propagation and depth-first search solver over
// enforced linear rows.
type CPBackend struct {
	name      string
	nodeLimit int64
}

func NewCPBackend(options ...CPOption) *CPBackend {
	b := &CPBackend{name: "cp"}
	for _, o := range options {
		o(b)
	}
	return b
}

func (b *CPBackend) Name() string {
	return b.name
}

func (b *CPBackend) Solve(ctx context.Context, m *CanonicalModel) (Response, error) {
	if err := m.Validate(); err != nil {
		return Response{}, err
	}
	if ctx.Err() != nil {
		return Unknown(0), nil
	}

	s := newCPSearch(ctx, m, b.nodeLimit)
	if s.empty() {
		return Unsat(0), nil
	}
	found, err := s.search()
	if err == errSearchStopped {
		return Unknown(s.nodes), nil
	}
	if err != nil {
		return Response{}, err
	}
	if !found {
		return Unsat(s.nodes), nil
	}
	return Sat(s.values(), s.nodes), nil
}

// cpRow is sum(terms) <= bound when every literal holds.
type cpRow struct {
	terms []LinearTerm
	bound int64
	lits  []Literal
}

type cpTrail struct {
	v  VarRef
	lo int64
	hi int64
}

type cpDecision struct {
	v    VarRef
	hint ValueHint
}

type cpSearch struct {
	ctx   context.Context
	limit int64
	nodes int64

	lo    []int64
	hi    []int64
	trail []cpTrail

	rows   []cpRow
	watch  [][]int
	queue  []int
	queued []bool

	order []cpDecision
}

func newCPSearch(ctx context.Context, m *CanonicalModel, limit int64) *cpSearch {
	n := len(m.Variables)
	s := &cpSearch{
		ctx:   ctx,
		limit: limit,
		lo:    make([]int64, n),
		hi:    make([]int64, n),
		watch: make([][]int, n),
	}
	for i, v := range m.Variables {
		s.lo[i], s.hi[i] = v.Lo, v.Hi
	}

	for _, c := range m.Constraints {
		switch c.Rel {
		case RelLe:
			s.addRow(c.Terms, c.Bound, c.EnforcedBy)
		case RelGe:
			s.addRow(negate(c.Terms), -c.Bound, c.EnforcedBy)
		case RelEq:
			s.addRow(c.Terms, c.Bound, c.EnforcedBy)
			s.addRow(negate(c.Terms), -c.Bound, c.EnforcedBy)
		}
	}
	s.queued = make([]bool, len(s.rows))
	for i := range s.rows {
		s.enqueue(i)
	}

	seen := make([]bool, n)
	for _, d := range m.Decisions {
		for _, v := range d.Vars {
			if !seen[v] {
				seen[v] = true
				s.order = append(s.order, cpDecision{v: v, hint: d.Value})
			}
		}
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			s.order = append(s.order, cpDecision{v: VarRef(i), hint: ValueMin})
		}
	}
	return s
}

func negate(terms []LinearTerm) []LinearTerm {
	l := make([]LinearTerm, len(terms))
	for i, t := range terms {
		l[i] = LinearTerm{Var: t.Var, Coef: -t.Coef}
	}
	return l
}

func (s *cpSearch) addRow(terms []LinearTerm, bound int64, lits []Literal) {
	i := len(s.rows)
	s.rows = append(s.rows, cpRow{terms: terms, bound: bound, lits: lits})

	watched := make(map[VarRef]bool)
	add := func(v VarRef) {
		if !watched[v] {
			watched[v] = true
			s.watch[v] = append(s.watch[v], i)
		}
	}
	for _, t := range terms {
		add(t.Var)
	}
	for _, l := range lits {
		add(l.Var)
	}
}

func (s *cpSearch) empty() bool {
	for i := range s.lo {
		if s.lo[i] > s.hi[i] {
			return true
		}
	}
	return false
}

func (s *cpSearch) values() []int64 {
	l := make([]int64, len(s.lo))
	copy(l, s.lo)
	return l
}

func (s *cpSearch) enqueue(r int) {
	if !s.queued[r] {
		s.queued[r] = true
		s.queue = append(s.queue, r)
	}
}

func (s *cpSearch) touch(v VarRef) {
	for _, r := range s.watch[v] {
		s.enqueue(r)
	}
}

func (s *cpSearch) setLo(v VarRef, x int64) bool {
	if x <= s.lo[v] {
		return true
	}
	if x > s.hi[v] {
		return false
	}
	s.trail = append(s.trail, cpTrail{v: v, lo: s.lo[v], hi: s.hi[v]})
	s.lo[v] = x
	s.touch(v)
	return true
}

func (s *cpSearch) setHi(v VarRef, x int64) bool {
	if x >= s.hi[v] {
		return true
	}
	if x < s.lo[v] {
		return false
	}
	s.trail = append(s.trail, cpTrail{v: v, lo: s.lo[v], hi: s.hi[v]})
	s.hi[v] = x
	s.touch(v)
	return true
}

func (s *cpSearch) undo(mark int) {
	for len(s.trail) > mark {
		e := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		s.lo[e.v], s.hi[e.v] = e.lo, e.hi
	}
}

type litState int

const (
	litUnknown litState = iota
	litTrue
	litFalse
)

func (s *cpSearch) literal(l Literal) litState {
	if s.lo[l.Var] != s.hi[l.Var] {
		return litUnknown
	}
	if (s.lo[l.Var] == 1) != l.Negated {
		return litTrue
	}
	return litFalse
}

func (s *cpSearch) falsify(l Literal) bool {
	if l.Negated {
		return s.setLo(l.Var, 1)
	}
	return s.setHi(l.Var, 0)
}

func (s *cpSearch) termMin(t LinearTerm) int64 {
	if t.Coef > 0 {
		return t.Coef * s.lo[t.Var]
	}
	return t.Coef * s.hi[t.Var]
}

// propagateRow tightens the bounds implied by one row. When the row cannot
// hold and a single enforcement literal is undecided, that literal is set
// false.
func (s *cpSearch) propagateRow(r int) bool {
	row := &s.rows[r]

	undecided := 0
	var last Literal
	for _, l := range row.lits {
		switch s.literal(l) {
		case litFalse:
			return true
		case litUnknown:
			undecided++
			last = l
		}
	}
	if undecided > 1 {
		return true
	}

	minSum := int64(0)
	for _, t := range row.terms {
		minSum += s.termMin(t)
	}
	if undecided == 1 {
		if minSum > row.bound {
			return s.falsify(last)
		}
		return true
	}
	if minSum > row.bound {
		return false
	}

	for _, t := range row.terms {
		slack := row.bound - minSum + s.termMin(t)
		if t.Coef > 0 {
			if !s.setHi(t.Var, floorDiv(slack, t.Coef)) {
				return false
			}
		} else {
			if !s.setLo(t.Var, ceilDiv(slack, t.Coef)) {
				return false
			}
		}
	}
	return true
}

func (s *cpSearch) propagate() bool {
	for len(s.queue) > 0 {
		r := s.queue[len(s.queue)-1]
		s.queue = s.queue[:len(s.queue)-1]
		s.queued[r] = false

		if !s.propagateRow(r) {
			for _, q := range s.queue {
				s.queued[q] = false
			}
			s.queue = s.queue[:0]
			return false
		}
	}
	return true
}

func (s *cpSearch) next() (cpDecision, bool) {
	for _, d := range s.order {
		if s.lo[d.v] < s.hi[d.v] {
			return d, true
		}
	}
	return cpDecision{}, false
}

func (s *cpSearch) search() (bool, error) {
	s.nodes++
	if s.limit > 0 && s.nodes > s.limit {
		return false, errSearchStopped
	}
	if s.nodes%64 == 0 && s.ctx.Err() != nil {
		return false, errSearchStopped
	}

	if !s.propagate() {
		return false, nil
	}
	d, ok := s.next()
	if !ok {
		return true, nil
	}

	mark := len(s.trail)
	lo, hi := s.lo[d.v], s.hi[d.v]

	var first, second func() bool
	if d.hint == ValueMax {
		first = func() bool { return s.setLo(d.v, hi) }
		second = func() bool { return s.setHi(d.v, hi-1) }
	} else {
		first = func() bool { return s.setHi(d.v, lo) }
		second = func() bool { return s.setLo(d.v, lo+1) }
	}

	for _, branch := range []func() bool{first, second} {
		if branch() {
			found, err := s.search()
			if found || err != nil {
				return found, err
			}
		}
		s.undo(mark)
	}
	return false, nil
}
