package gantt

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func getTestVariableIndex(l *Lowering) map[string]VarRef {
	m := make(map[string]VarRef)
	for i, v := range l.Model.Variables {
		m[v.Name] = VarRef(i)
	}
	return m
}

func TestBuilder_DerivedHorizon(t *testing.T) {
	p := getTestProblem(t)
	w1 := getTestResource(t, p, "w1")
	require.Nil(t, w1.AddUnavailability(1, 4))
	t1 := getTestFixedTask(t, p, "t1", 2, w1)
	t2 := getTestFixedTask(t, p, "t2", 3)
	require.Nil(t, p.AddPrecedence(t1, t2, PrecedenceLax, 1))

	l, err := Build(p)
	require.Nil(t, err)
	require.False(t, l.HorizonFixed)
	require.Equal(t, int64(2+3+4+2), l.Horizon)

	p = getTestProblem(t)
	t1 = getTestFixedTask(t, p, "t1", 2)
	require.Nil(t, p.AddConstraint(Ge(TaskStart(t1), NewConst(30))))
	l, err = Build(p)
	require.Nil(t, err)
	require.Equal(t, int64(2+30), l.Horizon)

	p = getTestProblem(t)
	t1 = getTestFixedTask(t, p, "t1", 2)
	require.Nil(t, p.AddConstraint(Ge(TaskStart(t1), NewScale(3, NewConst(10)))))
	require.Nil(t, p.AddConstraint(Le(NewSum(TaskEnd(t1), NewConst(-4)), NewConst(100))))
	l, err = Build(p)
	require.Nil(t, err)
	require.Equal(t, int64(2+30+4+100), l.Horizon)

	p = getTestProblem(t, WithHorizon(7))
	getTestFixedTask(t, p, "t1", 2)
	l, err = Build(p)
	require.Nil(t, err)
	require.True(t, l.HorizonFixed)
	require.Equal(t, int64(7), l.Horizon)
}

func TestBuilder_Variables(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	w1 := getTestResource(t, p, "w1")
	w2 := getTestResource(t, p, "w2")
	sel, err := NewSelectWorkers([]*Resource{w1, w2}, 1, SelectExact)
	require.Nil(t, err)
	t1, err := NewFixedDurationTask(p, "t1", 3, Optional())
	require.Nil(t, err)
	require.Nil(t, t1.AddRequiredResource(sel))
	t2, err := NewVariableDurationTask(p, "t2", 4)
	require.Nil(t, err)
	require.Nil(t, t2.AddRequiredResource(w1))

	l, err := Build(p)
	require.Nil(t, err)
	require.Nil(t, l.Model.Validate())

	vars := getTestVariableIndex(l)
	for _, name := range []string{
		"makespan",
		"t1.start", "t1.end", "t1.scheduled",
		"t1.select.w1", "t1.select.w2",
		"t1.usage.w1", "t1.usage.w2",
		"t2.start", "t2.end", "t2.duration", "t2.usage.w1",
		"w1.t1<t2",
	} {
		_, ok := vars[name]
		require.True(t, ok, name)
	}
	_, ok := vars["t2.scheduled"]
	require.False(t, ok)

	d := l.Model.Variables[vars["t2.duration"]]
	require.Equal(t, int64(4), d.Lo)
	require.Equal(t, int64(4), d.Hi)
	require.Equal(t, VarBoolean, l.Model.Variables[vars["t1.scheduled"]].Kind)
	require.Nil(t, l.Model.Objective)

	hints := []ValueHint{}
	for _, d := range l.Model.Decisions {
		hints = append(hints, d.Value)
	}
	require.Equal(t, []ValueHint{ValueMax, ValueMax, ValueMin, ValueMin, ValueMin}, hints)
}

// The work rows only accept the smallest duration covering the work.
func TestBuilder_VariableDurationRows(t *testing.T) {
	p := getTestProblem(t, WithHorizon(20))
	w1 := getTestResource(t, p, "w1", WithProductivity(3))
	t1, err := NewVariableDurationTask(p, "t1", 10)
	require.Nil(t, err)
	require.Nil(t, t1.AddRequiredResource(w1))

	l, err := Build(p)
	require.Nil(t, err)
	vars := getTestVariableIndex(l)

	assignment := func(d int64) []int64 {
		values := make([]int64, len(l.Model.Variables))
		values[vars["t1.end"]] = d
		values[vars["t1.duration"]] = d
		values[vars["t1.usage.w1"]] = d
		values[vars["makespan"]] = d
		return values
	}
	require.False(t, l.Model.IsSatisfied(assignment(3)))
	require.True(t, l.Model.IsSatisfied(assignment(4)))
	require.False(t, l.Model.IsSatisfied(assignment(5)))
}

func TestBuilder_Objective(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	t1 := getTestFixedTask(t, p, "t1", 2)
	require.Nil(t, p.AddObjective(MaximizeObjective(NewSum(TaskStart(t1), NewConst(5)))))

	l, err := Build(p)
	require.Nil(t, err)
	vars := getTestVariableIndex(l)

	o := l.Model.Objective
	require.NotNil(t, o)
	require.Equal(t, Maximize, o.Direction)
	require.Equal(t, int64(5), o.Offset)
	require.Equal(t, []LinearTerm{{Var: vars["t1.start"], Coef: 1}}, o.Terms)

	values := make([]int64, len(l.Model.Variables))
	values[vars["t1.start"]] = 3
	require.Equal(t, int64(8), o.Evaluate(values))
}

func TestBuilder_Indicator(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	t1 := getTestFixedTask(t, p, "t1", 2)
	_, err := p.AddIndicator("third", TaskEnd(t1), WithDivisor(3))
	require.Nil(t, err)

	l, err := Build(p)
	require.Nil(t, err)
	vars := getTestVariableIndex(l)

	v := l.Model.Variables[vars["third"]]
	require.Equal(t, int64(0), v.Lo)
	require.Equal(t, int64(3), v.Hi)

	values := make([]int64, len(l.Model.Variables))
	values[vars["t1.start"]] = 5
	values[vars["t1.end"]] = 7
	values[vars["makespan"]] = 7
	values[vars["third"]] = 2
	require.True(t, l.Model.IsSatisfied(values))
	values[vars["third"]] = 3
	require.False(t, l.Model.IsSatisfied(values))
}

func TestBuilder_Errors(t *testing.T) {
	_, err := Build(nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))

	p := getTestProblem(t)
	_, err = NewVariableDurationTask(p, "t1", 10)
	require.Nil(t, err)
	_, err = Build(p)
	require.True(t, errors.Is(err, ErrInvalidArgument))

	p = getTestProblem(t)
	_, err = NewVariableDurationTask(p, "t1", 0)
	require.Nil(t, err)
	_, err = Build(p)
	require.Nil(t, err)
}

func TestCanonicalModel_Validate(t *testing.T) {
	m := NewCanonicalModel()
	x := m.NewIntVar(0, 5, "x")
	b := m.NewBoolVar("b")
	m.AddLinear("c", []LinearTerm{{Var: x, Coef: 1}}, RelLe, 3, Literal{Var: b})
	require.Nil(t, m.Validate())

	bad := m.WithConstraint(LinearConstraint{Name: "bad", Terms: []LinearTerm{{Var: 7, Coef: 1}}, Rel: RelLe})
	require.True(t, errors.Is(bad.Validate(), ErrModel))
	require.Len(t, m.Constraints, 1)

	bad = m.WithConstraint(LinearConstraint{Name: "bad", Rel: "<>"})
	require.True(t, errors.Is(bad.Validate(), ErrModel))

	m.Variables = append(m.Variables, Variable{Name: "y", Kind: VarBoolean, Lo: 0, Hi: 2})
	require.True(t, errors.Is(m.Validate(), ErrModel))
}

func TestCanonicalModel_IsSatisfied(t *testing.T) {
	m := NewCanonicalModel()
	x := m.NewIntVar(0, 5, "x")
	y := m.NewIntVar(0, 5, "y")
	b := m.NewBoolVar("b")
	m.AddLinear("sum", []LinearTerm{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, RelGe, 4)
	m.AddLinear("cap", []LinearTerm{{Var: x, Coef: 1}}, RelLe, 1, Literal{Var: b, Negated: true})

	require.True(t, m.IsSatisfied([]int64{4, 0, 1}))
	require.False(t, m.IsSatisfied([]int64{4, 0, 0}))
	require.True(t, m.IsSatisfied([]int64{1, 3, 0}))
	require.False(t, m.IsSatisfied([]int64{1, 2, 0}))
	require.False(t, m.IsSatisfied([]int64{6, 0, 1}))
	require.False(t, m.IsSatisfied([]int64{1, 3}))

	require.Equal(t, "[!x2] -> 1*x0 <= 1", m.Constraints[1].String())
}
