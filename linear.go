package gantt

import (
	"math"
	"sort"
)

const (
	maxInt64 = math.MaxInt64
	minInt64 = math.MinInt64
)

// linearExpr is sum(coef * var) + constant over model variables.
type linearExpr struct {
	coefs    map[VarRef]int64
	constant int64
}

func newLinearExpr() linearExpr {
	return linearExpr{coefs: make(map[VarRef]int64)}
}

func constLinear(v int64) linearExpr {
	l := newLinearExpr()
	l.constant = v
	return l
}

func varLinear(v VarRef) linearExpr {
	l := newLinearExpr()
	l.coefs[v] = 1
	return l
}

func (l linearExpr) addTerm(v VarRef, coef int64) linearExpr {
	l.coefs[v] += coef
	if l.coefs[v] == 0 {
		delete(l.coefs, v)
	}
	return l
}

// plus returns l + factor*l2 as a new expression.
func (l linearExpr) plus(l2 linearExpr, factor int64) linearExpr {
	v := l.clone()
	for ref, coef := range l2.coefs {
		v = v.addTerm(ref, coef*factor)
	}
	v.constant += l2.constant * factor
	return v
}

func (l linearExpr) scale(factor int64) linearExpr {
	return newLinearExpr().plus(l, factor)
}

func (l linearExpr) clone() linearExpr {
	v := newLinearExpr()
	for ref, coef := range l.coefs {
		v.coefs[ref] = coef
	}
	v.constant = l.constant
	return v
}

func (l linearExpr) isConst() bool {
	return len(l.coefs) == 0
}

// terms lists the non-zero terms ordered by variable.
func (l linearExpr) terms() []LinearTerm {
	refs := make([]VarRef, 0, len(l.coefs))
	for ref := range l.coefs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	terms := make([]LinearTerm, 0, len(refs))
	for _, ref := range refs {
		terms = append(terms, LinearTerm{Var: ref, Coef: l.coefs[ref]})
	}
	return terms
}

// bounds computes the range of l by interval arithmetic over m.
func (l linearExpr) bounds(m *CanonicalModel) (int64, int64) {
	lo, hi := l.constant, l.constant
	for ref, coef := range l.coefs {
		v := m.Variables[ref]
		if coef > 0 {
			lo += coef * v.Lo
			hi += coef * v.Hi
		} else {
			lo += coef * v.Hi
			hi += coef * v.Lo
		}
	}
	return lo, hi
}

func (l linearExpr) eval(values []int64) int64 {
	v := l.constant
	for ref, coef := range l.coefs {
		v += coef * values[ref]
	}
	return v
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func sortStrings(l []string) {
	sort.Strings(l)
}
