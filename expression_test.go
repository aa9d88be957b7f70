package gantt

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestExpression_String(t *testing.T) {
	p := getTestProblem(t)
	t1 := getTestFixedTask(t, p, "t1", 2)
	w1 := getTestResource(t, p, "w1")

	tests := []struct {
		expr     Expr
		expected string
	}{
		{TaskStart(t1), "t1.start"},
		{Makespan(), "makespan"},
		{NewConst(-3), "-3"},
		{NewSum(TaskEnd(t1), NewConst(1)), "(t1.end + 1)"},
		{NewScale(100, ResourceBusy(w1)), "100*w1.busy"},
		{Le(TaskEnd(t1), NewConst(5)), "t1.end <= 5"},
		{NewOr(Eq(TaskScheduled(t1), NewConst(0)), Gt(TaskStart(t1), NewConst(1))),
			"(t1.scheduled == 0 or t1.start > 1)"},
		{NewAnd(TaskScheduled(t1), Ne(TaskDuration(t1), NewConst(0))),
			"(t1.scheduled and t1.duration != 0)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, tt.expr.String())
	}
}

func TestExpression_ParseRef(t *testing.T) {
	tests := []struct {
		ref      string
		expected Var
	}{
		{"t1.start", Var{Entity: EntityTask, Name: "t1", Attr: AttrStart}},
		{" t1.end ", Var{Entity: EntityTask, Name: "t1", Attr: AttrEnd}},
		{"a.b.duration", Var{Entity: EntityTask, Name: "a.b", Attr: AttrDuration}},
		{"w1.busy", Var{Entity: EntityResource, Name: "w1", Attr: AttrBusy}},
		{"FlowTime.value", Var{Entity: EntityIndicator, Name: "FlowTime", Attr: AttrValue}},
		{"makespan", Makespan()},
	}
	for _, tt := range tests {
		v, err := ParseRef(tt.ref)
		require.Nil(t, err)
		require.Equal(t, tt.expected, v)
	}

	for _, ref := range []string{"", "t1", ".start", "t1.", "t1.color", "p.makespan"} {
		_, err := ParseRef(ref)
		require.True(t, errors.Is(err, ErrMalformedExpression), ref)
	}
}

func TestExpression_Malformed(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	t1 := getTestFixedTask(t, p, "t1", 2)

	constraints := []Expr{
		nil,
		TaskStart(t1),
		NewConst(1),
		NewSum(TaskStart(t1)),
		NewAnd(),
		NewOr(TaskStart(t1)),
		Le(Le(TaskStart(t1), NewConst(1)), NewConst(1)),
		Compare{Op: "~", Left: TaskStart(t1), Right: NewConst(1)},
		Var{Entity: EntityResource, Name: "t1", Attr: AttrStart},
	}
	for _, e := range constraints {
		err := p.AddConstraint(e)
		require.True(t, errors.Is(err, ErrMalformedExpression), exprString(e))
	}

	_, err := p.AddIndicator("bad", Le(TaskStart(t1), NewConst(1)))
	require.True(t, errors.Is(err, ErrMalformedExpression))
	_, err = p.AddIndicator("empty", NewSum())
	require.True(t, errors.Is(err, ErrMalformedExpression))

	require.Empty(t, p.Constraints())
	require.Empty(t, p.Indicators())
}

func TestExpression_ScheduledIsCondition(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	t1, err := NewFixedDurationTask(p, "t1", 2, Optional())
	require.Nil(t, err)

	require.Nil(t, p.AddConstraint(TaskScheduled(t1)))
	require.Len(t, p.Constraints(), 1)

	s := solveTestProblem(t, p)
	v, err := s.Task("t1")
	require.Nil(t, err)
	require.True(t, v.Scheduled)
}

func TestExpression_Operators(t *testing.T) {
	tests := []struct {
		op       Op
		l, r     int64
		expected bool
	}{
		{OpEq, 1, 1, true},
		{OpNe, 1, 1, false},
		{OpLt, 1, 2, true},
		{OpLe, 2, 2, true},
		{OpGt, 2, 2, false},
		{OpGe, 3, 2, true},
	}
	for _, tt := range tests {
		h, err := getOperator(tt.op)
		require.Nil(t, err)
		require.Equal(t, tt.expected, h.Check(tt.l, tt.r), "%d %s %d", tt.l, tt.op, tt.r)
	}

	op, err := ParseOp("=")
	require.Nil(t, err)
	require.Equal(t, OpEq, op)
	_, err = ParseOp("=<")
	require.True(t, errors.Is(err, ErrMalformedExpression))

	h, err := getOperator(OpNe)
	require.Nil(t, err)
	require.True(t, h.IsDisjunctive())
	require.Equal(t, []Op{OpLt, OpGt}, h.Split)
}
