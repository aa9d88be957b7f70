package gantt

import (
	"context"
	"os/exec"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func getTestGantt(t require.TestingT, options ...Option) *Gantt {
	g, err := NewGantt(options...)
	require.Nil(t, err)
	return g
}

func getTestProblem(t require.TestingT, options ...ProblemOption) *SchedulingProblem {
	p, err := NewSchedulingProblem("test", options...)
	require.Nil(t, err)
	return p
}

func getTestResource(t require.TestingT, p *SchedulingProblem, name string, options ...ResourceOption) *Resource {
	r, err := NewResource(p, name, options...)
	require.Nil(t, err)
	return r
}

func getTestFixedTask(t require.TestingT, p *SchedulingProblem, name string, d int64, rs ...ResourceRequirement) *FixedDurationTask {
	task, err := NewFixedDurationTask(p, name, d)
	require.Nil(t, err)
	for _, r := range rs {
		require.Nil(t, task.AddRequiredResource(r))
	}
	return task
}

func solveTestProblem(t require.TestingT, p *SchedulingProblem, options ...Option) Solution {
	s, err := getTestGantt(t, options...).Solve(context.Background(), p)
	require.Nil(t, err)
	return s
}

func requireIndicator(t require.TestingT, s Solution, name string, expected float64) {
	v, err := s.Indicator(name)
	require.Nil(t, err)
	require.Equal(t, expected, v.Value)
}

// requireValidSchedule checks durations, horizon containment, exclusive
// resources and optional tasks on a feasible solution.
func requireValidSchedule(t require.TestingT, p *SchedulingProblem, s Solution) {
	require.True(t, s.Feasible())
	horizon, err := s.Horizon()
	require.Nil(t, err)

	for _, task := range p.Tasks() {
		v, err := s.Task(task.Name())
		require.Nil(t, err)

		if !v.Scheduled {
			require.True(t, task.Optional())
			require.Equal(t, int64(0), v.Start)
			require.Equal(t, int64(0), v.End)
			require.Empty(t, v.Resources)
			continue
		}

		require.True(t, v.Start >= 0)
		require.True(t, v.End <= horizon)
		require.Equal(t, v.Duration, v.End-v.Start)

		switch task := task.(type) {
		case *FixedDurationTask:
			require.Equal(t, task.Duration(), v.Duration)
		case *VariableDurationTask:
			total := int64(0)
			for _, name := range v.Resources {
				r, err := p.Resource(name)
				require.Nil(t, err)
				total += r.Productivity()
			}
			if task.WorkAmount() > 0 {
				require.Equal(t, ceilDiv(task.WorkAmount(), total), v.Duration)
			}
		}
	}

	resources, err := s.Resources()
	require.Nil(t, err)
	for _, r := range resources {
		for i := 0; i < len(r.Intervals); i++ {
			for j := i + 1; j < len(r.Intervals); j++ {
				require.False(t, r.Intervals[i].Overlaps(r.Intervals[j].Interval),
					"%s: %v overlaps %v", r.Name, r.Intervals[i], r.Intervals[j])
			}
		}
	}
}

// Two tasks of duration 2 on a horizon of 2 both end at 2.
func TestGantt_FlowTime(t *testing.T) {
	p := getTestProblem(t, WithHorizon(2))
	getTestFixedTask(t, p, "t1", 2)
	getTestFixedTask(t, p, "t2", 2)
	_, err := p.AddIndicatorFlowTime()
	require.Nil(t, err)

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	requireIndicator(t, s, "FlowTime", 4)
}

// Work 100 on workers of productivity 4 and 7 takes ceil(100/11) = 10
// periods, costing 10*10 + 20*10.
func TestGantt_ResourceCost(t *testing.T) {
	p := getTestProblem(t)
	w1 := getTestResource(t, p, "w1", WithProductivity(4), WithCostPerPeriod(10))
	w2 := getTestResource(t, p, "w2", WithProductivity(7), WithCostPerPeriod(20))
	task, err := NewVariableDurationTask(p, "t1", 100)
	require.Nil(t, err)
	require.Nil(t, task.AddRequiredResource(w1))
	require.Nil(t, task.AddRequiredResource(w2))

	cost, err := p.AddIndicatorResourceCost(w1, w2)
	require.Nil(t, err)
	require.Equal(t, "ResourceCost(w1,w2)", cost.Name())
	makespan, err := p.AddIndicatorMakespan()
	require.Nil(t, err)
	require.Nil(t, p.AddObjective(MinimizeObjective(IndicatorValue(makespan))))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	require.True(t, s.Optimal())
	requireIndicator(t, s, "ResourceCost(w1,w2)", 300)
	requireIndicator(t, s, "Makespan", 10)

	v, err := s.Task("t1")
	require.Nil(t, err)
	require.Equal(t, int64(10), v.Duration)
	require.Equal(t, []string{"w1", "w2"}, v.Resources)

	horizon, err := s.Horizon()
	require.Nil(t, err)
	require.Equal(t, int64(10), horizon)
}

func TestGantt_ResourceUtilization(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	w1 := getTestResource(t, p, "w1")
	getTestFixedTask(t, p, "t1", 5, w1)
	_, err := p.AddIndicatorResourceUtilization(w1)
	require.Nil(t, err)

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	requireIndicator(t, s, "Utilization(w1)", 50)

	r, err := s.Resource("w1")
	require.Nil(t, err)
	require.Equal(t, int64(5), r.Busy)
	require.Len(t, r.Intervals, 1)
}

// One task fixed on w1, one selectable between w1 and w2: the two
// utilizations always add up to 100.
func TestGantt_SelectWorkersUtilization(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	w1 := getTestResource(t, p, "w1")
	w2 := getTestResource(t, p, "w2")
	getTestFixedTask(t, p, "t1", 5, w1)
	sel, err := NewSelectWorkers([]*Resource{w1, w2}, 1, SelectExact)
	require.Nil(t, err)
	getTestFixedTask(t, p, "t2", 5, sel)

	u1, err := p.AddIndicatorResourceUtilization(w1)
	require.Nil(t, err)
	u2, err := p.AddIndicatorResourceUtilization(w2)
	require.Nil(t, err)

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)

	v1, err := s.Indicator(u1.Name())
	require.Nil(t, err)
	v2, err := s.Indicator(u2.Name())
	require.Nil(t, err)
	require.Equal(t, int64(100), v1.Int()+v2.Int())

	t2, err := s.Task("t2")
	require.Nil(t, err)
	require.Len(t, t2.Resources, 1)
}

func getTestOptionalTasksProblem(t require.TestingT) (*SchedulingProblem, *Indicator) {
	p := getTestProblem(t, WithHorizon(20))
	w1 := getTestResource(t, p, "w1")
	for i := 0; i < 40; i++ {
		task, err := NewFixedDurationTask(p, "t"+strconv.Itoa(i), 1, Optional())
		require.Nil(t, err)
		require.Nil(t, task.AddRequiredResource(w1))
	}
	u, err := p.AddIndicatorResourceUtilization(w1)
	require.Nil(t, err)
	_, err = p.AddIndicatorNumberOfScheduledTasks()
	require.Nil(t, err)
	return p, u
}

// Forty optional unit tasks on a horizon of 20: constraining utilization to
// 100 schedules exactly twenty of them.
func TestGantt_OptionalTasksUtilizationConstraint(t *testing.T) {
	p, u := getTestOptionalTasksProblem(t)
	require.Nil(t, p.AddConstraint(Eq(IndicatorValue(u), NewConst(100))))

	s := solveTestProblem(t, p)
	require.Equal(t, StatusSat, s.Status())
	requireValidSchedule(t, p, s)
	requireIndicator(t, s, "Utilization(w1)", 100)
	requireIndicator(t, s, "ScheduledTasks", 20)
}

func TestGantt_OptionalTasksUtilizationObjective(t *testing.T) {
	p, u := getTestOptionalTasksProblem(t)
	require.Nil(t, p.AddObjective(MaximizeObjective(IndicatorValue(u))))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	require.True(t, s.Optimal())
	requireIndicator(t, s, "Utilization(w1)", 100)
}

// Stating the target utilization as a constraint needs a single backend call,
// maximizing it needs at least one more to prove optimality.
func TestGantt_OptionalTasksUtilizationSearchEffort(t *testing.T) {
	iterations := totalIterations.WithLabelValues(DefaultBackendName)
	solveIterations := func(p *SchedulingProblem) float64 {
		before := testutil.ToFloat64(iterations)
		s := solveTestProblem(t, p)
		requireIndicator(t, s, "Utilization(w1)", 100)
		return testutil.ToFloat64(iterations) - before
	}

	p, u := getTestOptionalTasksProblem(t)
	require.Nil(t, p.AddConstraint(Eq(IndicatorValue(u), NewConst(100))))
	byConstraint := solveIterations(p)

	p, u = getTestOptionalTasksProblem(t)
	require.Nil(t, p.AddObjective(MaximizeObjective(IndicatorValue(u))))
	byObjective := solveIterations(p)

	require.Equal(t, float64(1), byConstraint)
	require.True(t, byConstraint < byObjective, "%v >= %v", byConstraint, byObjective)
}

func TestGantt_SelectWorkersNeedsTwoCandidates(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	w1 := getTestResource(t, p, "w1")

	_, err := NewSelectWorkers([]*Resource{w1}, 1, SelectExact)
	require.True(t, errors.Is(err, ErrInvalidSelection))
	_, err = NewSelectWorkers(nil, 1, SelectAtLeast)
	require.True(t, errors.Is(err, ErrInvalidSelection))
}

func TestGantt_Infeasible(t *testing.T) {
	p := getTestProblem(t, WithHorizon(2))
	w1 := getTestResource(t, p, "w1")
	getTestFixedTask(t, p, "t1", 2, w1)
	getTestFixedTask(t, p, "t2", 1, w1)

	s := solveTestProblem(t, p)
	require.False(t, s.Feasible())
	require.Equal(t, StatusUnsat, s.Status())
	require.Equal(t, StateInfeasible, p.State())

	_, err := s.Task("t1")
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
	_, err = s.Tasks()
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
	_, err = s.Resource("w1")
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
	_, err = s.Indicator("FlowTime")
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
	_, err = s.Horizon()
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
}

func TestGantt_OptionalTaskLeftOut(t *testing.T) {
	p := getTestProblem(t, WithHorizon(3))
	w1 := getTestResource(t, p, "w1", WithCostPerPeriod(2))
	getTestFixedTask(t, p, "t1", 3, w1)
	t2, err := NewFixedDurationTask(p, "t2", 2, Optional())
	require.Nil(t, err)
	require.Nil(t, t2.AddRequiredResource(w1))
	_, err = p.AddIndicatorNumberOfScheduledTasks()
	require.Nil(t, err)
	_, err = p.AddIndicatorResourceCost(w1)
	require.Nil(t, err)
	_, err = p.AddIndicator("T2Duration", TaskDuration(t2))
	require.Nil(t, err)

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)

	v, err := s.Task("t2")
	require.Nil(t, err)
	require.False(t, v.Scheduled)
	requireIndicator(t, s, "ScheduledTasks", 1)
	requireIndicator(t, s, "ResourceCost(w1)", 6)
	requireIndicator(t, s, "T2Duration", 0)

	r, err := s.Resource("w1")
	require.Nil(t, err)
	require.Equal(t, []BusyInterval{{Task: "t1", Interval: NewInterval(0, 3)}}, r.Intervals)
}

// Work 12 on one of two workers: the faster one (productivity 3) gives the
// shortest makespan, ceil(12/3) = 4.
func TestGantt_VariableDurationSelection(t *testing.T) {
	p := getTestProblem(t)
	w1 := getTestResource(t, p, "w1", WithProductivity(2))
	w2 := getTestResource(t, p, "w2", WithProductivity(3))
	task, err := NewVariableDurationTask(p, "t1", 12)
	require.Nil(t, err)
	sel, err := NewSelectWorkers([]*Resource{w1, w2}, 1, SelectExact)
	require.Nil(t, err)
	require.Nil(t, task.AddRequiredResource(sel))
	require.Nil(t, p.AddObjective(MinimizeObjective(Makespan())))

	for _, strategy := range []Strategy{StrategyLinear, StrategyBinary} {
		s := solveTestProblem(t, p, WithStrategy(strategy))
		requireValidSchedule(t, p, s)
		require.True(t, s.Optimal())

		v, err := s.Task("t1")
		require.Nil(t, err)
		require.Equal(t, int64(4), v.Duration)
		require.Equal(t, []string{"w2"}, v.Resources)

		objective, ok, err := s.Objective()
		require.Nil(t, err)
		require.True(t, ok)
		require.Equal(t, int64(4), objective)
	}
}

func TestGantt_Precedence(t *testing.T) {
	tests := []struct {
		kind   PrecedenceKind
		offset int64
		start  int64
	}{
		{PrecedenceLax, 0, 2},
		{PrecedenceLax, 1, 3},
		{PrecedenceStrict, 0, 3},
		{PrecedenceTight, 2, 4},
	}

	for _, tt := range tests {
		p := getTestProblem(t)
		t1 := getTestFixedTask(t, p, "t1", 2)
		t2 := getTestFixedTask(t, p, "t2", 3)
		require.Nil(t, p.AddPrecedence(t1, t2, tt.kind, tt.offset))
		require.Nil(t, p.AddObjective(MinimizeObjective(Makespan())))

		s := solveTestProblem(t, p)
		requireValidSchedule(t, p, s)

		v1, err := s.Task("t1")
		require.Nil(t, err)
		v2, err := s.Task("t2")
		require.Nil(t, err)
		require.Equal(t, int64(0), v1.Start, "%s %d", tt.kind, tt.offset)
		require.Equal(t, tt.start, v2.Start, "%s %d", tt.kind, tt.offset)
		makespan, err := s.Makespan()
		require.Nil(t, err)
		require.Equal(t, tt.start+3, makespan)
	}
}

func TestGantt_Unavailability(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	w1 := getTestResource(t, p, "w1")
	require.Nil(t, w1.AddUnavailability(0, 3))
	getTestFixedTask(t, p, "t1", 2, w1)
	require.Nil(t, p.AddObjective(MinimizeObjective(Makespan())))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	v, err := s.Task("t1")
	require.Nil(t, err)
	require.Equal(t, int64(3), v.Start)
	require.Equal(t, int64(5), v.End)
}

func TestGantt_TimeWindows(t *testing.T) {
	p := getTestProblem(t, WithHorizon(20))
	t1 := getTestFixedTask(t, p, "t1", 2)
	t2 := getTestFixedTask(t, p, "t2", 2)
	t3, err := NewFixedDurationTask(p, "t3", 2, Optional())
	require.Nil(t, err)
	require.Nil(t, p.AddTaskStartAt(t1, 4))
	require.Nil(t, p.AddTaskStartAfter(t2, 7))
	require.Nil(t, p.AddTaskEndBefore(t3, 1))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)

	v1, err := s.Task("t1")
	require.Nil(t, err)
	require.Equal(t, int64(4), v1.Start)
	v2, err := s.Task("t2")
	require.Nil(t, err)
	require.Equal(t, int64(7), v2.Start)
	v3, err := s.Task("t3")
	require.Nil(t, err)
	require.False(t, v3.Scheduled)
}

// Without a horizon, windows far past the summed durations stay reachable.
func TestGantt_DerivedHorizonTimeWindows(t *testing.T) {
	p := getTestProblem(t)
	w1 := getTestResource(t, p, "w1")
	t1 := getTestFixedTask(t, p, "t1", 5, w1)
	t2 := getTestFixedTask(t, p, "t2", 3, w1)
	require.Nil(t, p.AddTaskStartAt(t1, 100))
	require.Nil(t, p.AddConstraint(Ge(TaskStart(t2), NewScale(3, NewConst(10)))))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
	require.Equal(t, StatusSat, s.Status())
	require.True(t, s.Feasible())

	v1, err := s.Task("t1")
	require.Nil(t, err)
	require.Equal(t, int64(100), v1.Start)
	v2, err := s.Task("t2")
	require.Nil(t, err)
	require.Equal(t, int64(30), v2.Start)

	makespan, err := s.Makespan()
	require.Nil(t, err)
	require.Equal(t, int64(105), makespan)
}

func TestGantt_DisjunctiveConstraint(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	t1 := getTestFixedTask(t, p, "t1", 2)
	t2 := getTestFixedTask(t, p, "t2", 2)
	require.Nil(t, p.AddConstraint(Ne(TaskStart(t1), TaskStart(t2))))
	require.Nil(t, p.AddConstraint(NewOr(
		Ge(TaskStart(t1), NewConst(5)),
		Ge(TaskStart(t2), NewConst(5)),
	)))

	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)

	v1, err := s.Task("t1")
	require.Nil(t, err)
	v2, err := s.Task("t2")
	require.Nil(t, err)
	require.NotEqual(t, v1.Start, v2.Start)
	require.True(t, v1.Start >= 5 || v2.Start >= 5)
}

func TestGantt_FrozenProblem(t *testing.T) {
	p := getTestProblem(t, WithHorizon(5))
	w1 := getTestResource(t, p, "w1")
	t1 := getTestFixedTask(t, p, "t1", 2, w1)

	s := solveTestProblem(t, p)
	require.True(t, s.Feasible())
	require.Equal(t, StateSolved, p.State())

	_, err := NewFixedDurationTask(p, "t2", 1)
	require.True(t, errors.Is(err, ErrFrozenProblem))
	_, err = NewResource(p, "w2")
	require.True(t, errors.Is(err, ErrFrozenProblem))
	require.True(t, errors.Is(t1.AddRequiredResource(w1), ErrFrozenProblem))
	require.True(t, errors.Is(w1.AddUnavailability(0, 1), ErrFrozenProblem))
	require.True(t, errors.Is(p.AddConstraint(Le(TaskEnd(t1), NewConst(3))), ErrFrozenProblem))
	_, err = p.AddIndicatorMakespan()
	require.True(t, errors.Is(err, ErrFrozenProblem))

	s2 := solveTestProblem(t, p)
	require.Equal(t, s, s2)
}

func TestGantt_BuildErrorKeepsProblemEditable(t *testing.T) {
	p := getTestProblem(t)
	task, err := NewVariableDurationTask(p, "t1", 10)
	require.Nil(t, err)

	_, err = getTestGantt(t).Solve(context.Background(), p)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	require.Equal(t, StateBuilding, p.State())

	w1 := getTestResource(t, p, "w1", WithProductivity(5))
	require.Nil(t, task.AddRequiredResource(w1))
	s := solveTestProblem(t, p)
	requireValidSchedule(t, p, s)
}

func TestGantt_CanceledContext(t *testing.T) {
	p := getTestProblem(t, WithHorizon(10))
	getTestFixedTask(t, p, "t1", 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := getTestGantt(t).Solve(ctx, p)
	require.Nil(t, err)
	require.Equal(t, StatusUnknown, s.Status())
	require.False(t, s.Feasible())
	_, err = s.Task("t1")
	require.True(t, errors.Is(err, ErrInvalidSolutionAccess))
}

func TestGantt_UnknownBackend(t *testing.T) {
	_, err := NewGantt(WithBackend("missing"))
	require.True(t, errors.Is(err, ErrBackendNotFound))

	_, err = NewGantt(WithStrategy("random"))
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func testGanttJobShop(t require.TestingT, g *Gantt) {
	p := getTestProblem(t)
	machines := []*Resource{
		getTestResource(t, p, "m1"),
		getTestResource(t, p, "m2"),
	}
	for j := 0; j < 3; j++ {
		var prev Task
		for k, m := range machines {
			task := getTestFixedTask(t, p, "j"+strconv.Itoa(j)+"o"+strconv.Itoa(k), int64(j+k+1), m)
			if prev != nil {
				require.Nil(t, p.AddPrecedence(prev, task, PrecedenceLax, 0))
			}
			prev = task
		}
	}
	require.Nil(t, p.AddObjective(MinimizeObjective(Makespan())))

	s, err := g.Solve(context.Background(), p)
	require.Nil(t, err)
	requireValidSchedule(t, p, s)
}

func TestGantt_ZetaJobShop_CPUProfile(t *testing.T) {
	pp := profile.Start(profile.CPUProfile, profile.ProfilePath("."))

	g := getTestGantt(t)
	for i := 0; i < 20; i++ {
		testGanttJobShop(t, g)
	}

	pp.Stop()

	output, err := exec.Command("go", "tool", "pprof", "-hide", "^runtime", "-top", "cpu.pprof").CombinedOutput()
	t.Logf("CPUProfile: error %v, output %s\n", err, string(output))
}

func TestGantt_ZetaJobShop_MemoryProfile(t *testing.T) {
	pp := profile.Start(profile.MemProfile, profile.MemProfileAllocs, profile.ProfilePath("."))

	g := getTestGantt(t)
	for i := 0; i < 20; i++ {
		testGanttJobShop(t, g)
	}

	pp.Stop()

	output, err := exec.Command("go", "tool", "pprof", "-hide", "^runtime", "-top", "mem.pprof").CombinedOutput()
	t.Logf("MemoryProfile: error %v, output %s\n", err, string(output))
}
