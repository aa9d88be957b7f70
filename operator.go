package gantt

import (
	"math"
	"sort"
	"strings"
)

type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

func ParseOp(s string) (Op, error) {
	op := Op(strings.TrimSpace(s))
	if op == "=" {
		op = OpEq
	}
	if _, err := getOperator(op); err != nil {
		return "", err
	}
	return op, nil
}

// OperatorHandler describes a comparison "left op right" as a range for
// left - right. Disjunctive operators are lowered through Split.
type OperatorHandler struct {
	Op    Op
	Check func(l, r int64) bool
	Min   int64
	Max   int64
	Split []Op
}

func (h OperatorHandler) IsDisjunctive() bool {
	return len(h.Split) > 0
}

var (
	EqOperatorHandler = OperatorHandler{
		Op:    OpEq,
		Check: func(l, r int64) bool { return l == r },
		Min:   0,
		Max:   0,
	}
	NeOperatorHandler = OperatorHandler{
		Op:    OpNe,
		Check: func(l, r int64) bool { return l != r },
		Split: []Op{OpLt, OpGt},
	}
	LtOperatorHandler = OperatorHandler{
		Op:    OpLt,
		Check: func(l, r int64) bool { return l < r },
		Min:   math.MinInt64,
		Max:   -1,
	}
	LeOperatorHandler = OperatorHandler{
		Op:    OpLe,
		Check: func(l, r int64) bool { return l <= r },
		Min:   math.MinInt64,
		Max:   0,
	}
	GtOperatorHandler = OperatorHandler{
		Op:    OpGt,
		Check: func(l, r int64) bool { return l > r },
		Min:   1,
		Max:   math.MaxInt64,
	}
	GeOperatorHandler = OperatorHandler{
		Op:    OpGe,
		Check: func(l, r int64) bool { return l >= r },
		Min:   0,
		Max:   math.MaxInt64,
	}
)

var DefaultOperatorHandlers = []OperatorHandler{
	EqOperatorHandler,
	NeOperatorHandler,
	LtOperatorHandler,
	LeOperatorHandler,
	GtOperatorHandler,
	GeOperatorHandler,
}

var operators = func() map[Op]OperatorHandler {
	m := make(map[Op]OperatorHandler)
	for _, h := range DefaultOperatorHandlers {
		m[h.Op] = h
	}
	return m
}()

func getOperator(op Op) (OperatorHandler, error) {
	h, ok := operators[op]
	if !ok {
		return OperatorHandler{}, wrapError(ErrMalformedExpression, "Unknown comparison operator %q", op)
	}
	return h, nil
}

func Operators() []Op {
	l := make([]Op, 0, len(operators))
	for op := range operators {
		l = append(l, op)
	}
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	return l
}
