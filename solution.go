package gantt

import (
	"sort"

	"github.com/pkg/errors"
)

type TaskResult struct {
	Name      string   `json:"name" msgpack:"name" yaml:"name"`
	Start     int64    `json:"start" msgpack:"start" yaml:"start"`
	End       int64    `json:"end" msgpack:"end" yaml:"end"`
	Duration  int64    `json:"duration" msgpack:"duration" yaml:"duration"`
	Scheduled bool     `json:"scheduled" msgpack:"scheduled" yaml:"scheduled"`
	Resources []string `json:"resources" msgpack:"resources" yaml:"resources"`
}

type BusyInterval struct {
	Task     string `json:"task" msgpack:"task" yaml:"task"`
	Interval `yaml:",inline"`
}

type ResourceResult struct {
	Name      string         `json:"name" msgpack:"name" yaml:"name"`
	Busy      int64          `json:"busy" msgpack:"busy" yaml:"busy"`
	Intervals []BusyInterval `json:"intervals" msgpack:"intervals" yaml:"intervals"`
}

type IndicatorResult struct {
	Name  string      `json:"name" msgpack:"name" yaml:"name"`
	Kind  NumericKind `json:"kind" msgpack:"kind" yaml:"kind"`
	Value float64     `json:"value" msgpack:"value" yaml:"value"`
}

func (v IndicatorResult) Int() int64 {
	return int64(v.Value)
}

// Solution is immutable. Every accessor but Feasible, Status and Optimal
// fails with ErrInvalidSolutionAccess when no schedule was found.
type Solution struct {
	problem  string
	status   SolveStatus
	feasible bool
	optimal  bool

	horizon   int64
	makespan  int64
	objective *int64

	tasks      []TaskResult
	taskIndex  map[string]int
	resources  []ResourceResult
	resIndex   map[string]int
	indicators []IndicatorResult
	indIndex   map[string]int
}

func (s Solution) Problem() string {
	return s.problem
}

func (s Solution) Status() SolveStatus {
	return s.status
}

func (s Solution) Feasible() bool {
	return s.feasible
}

// Optimal reports whether the objective value was proven optimal. Without
// an objective every feasible solution is optimal.
func (s Solution) Optimal() bool {
	return s.optimal
}

func (s Solution) check() error {
	if !s.feasible {
		return errors.Wrapf(ErrInvalidSolutionAccess, "Problem %s is %s", s.problem, s.status)
	}
	return nil
}

// Horizon is the fixed horizon, or the makespan when it was derived.
func (s Solution) Horizon() (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.horizon, nil
}

func (s Solution) Makespan() (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.makespan, nil
}

func (s Solution) Objective() (int64, bool, error) {
	if err := s.check(); err != nil {
		return 0, false, err
	}
	if s.objective == nil {
		return 0, false, nil
	}
	return *s.objective, true, nil
}

func (s Solution) Task(name string) (TaskResult, error) {
	if err := s.check(); err != nil {
		return TaskResult{}, err
	}
	i, ok := s.taskIndex[name]
	if !ok {
		return TaskResult{}, errors.Wrapf(ErrNotFound, "Task %s", name)
	}
	return copyTaskResult(s.tasks[i]), nil
}

func (s Solution) Tasks() ([]TaskResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	l := make([]TaskResult, 0, len(s.tasks))
	for _, v := range s.tasks {
		l = append(l, copyTaskResult(v))
	}
	return l, nil
}

func (s Solution) Resource(name string) (ResourceResult, error) {
	if err := s.check(); err != nil {
		return ResourceResult{}, err
	}
	i, ok := s.resIndex[name]
	if !ok {
		return ResourceResult{}, errors.Wrapf(ErrNotFound, "Resource %s", name)
	}
	return copyResourceResult(s.resources[i]), nil
}

func (s Solution) Resources() ([]ResourceResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	l := make([]ResourceResult, 0, len(s.resources))
	for _, v := range s.resources {
		l = append(l, copyResourceResult(v))
	}
	return l, nil
}

func (s Solution) Indicator(name string) (IndicatorResult, error) {
	if err := s.check(); err != nil {
		return IndicatorResult{}, err
	}
	i, ok := s.indIndex[name]
	if !ok {
		return IndicatorResult{}, errors.Wrapf(ErrNotFound, "Indicator %s", name)
	}
	return s.indicators[i], nil
}

func (s Solution) Indicators() ([]IndicatorResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	l := make([]IndicatorResult, len(s.indicators))
	copy(l, s.indicators)
	return l, nil
}

func copyTaskResult(v TaskResult) TaskResult {
	v.Resources = append([]string{}, v.Resources...)
	return v
}

func copyResourceResult(v ResourceResult) ResourceResult {
	v.Intervals = append([]BusyInterval{}, v.Intervals...)
	return v
}

// Extract maps raw back onto the problem lowered into l. It does not touch
// l or raw.
func Extract(l *Lowering, raw RawAssignment) Solution {
	s := Solution{
		problem: l.Problem.name,
		status:  raw.Status,
	}
	if raw.Status != StatusSat || len(raw.Values) != len(l.Model.Variables) {
		if raw.Status == StatusSat {
			s.status = StatusUnknown
		}
		return s
	}

	values := raw.Values
	s.feasible = true
	s.optimal = raw.Optimal
	if l.Model.Objective != nil {
		v := l.Model.Objective.Evaluate(values)
		s.objective = &v
	}
	s.taskIndex = make(map[string]int)
	for _, t := range l.Problem.tasks {
		tv := l.tasks[t.Name()]
		v := TaskResult{
			Name:      t.Name(),
			Scheduled: tv.scheduled.eval(values) == 1,
			Resources: []string{},
		}
		if v.Scheduled {
			v.Start = values[tv.start]
			v.End = values[tv.end]
			v.Duration = tv.duration.eval(values)
		}
		s.taskIndex[v.Name] = len(s.tasks)
		s.tasks = append(s.tasks, v)
		s.makespan = max64(s.makespan, v.End)
	}
	s.horizon = l.Horizon
	if !l.HorizonFixed {
		s.horizon = s.makespan
	}

	busy := make(map[string][]BusyInterval)
	for _, u := range l.usages {
		if !presentIn(u.present, values) {
			continue
		}
		t := &s.tasks[s.taskIndex[u.task]]
		if !t.Scheduled {
			continue
		}
		t.Resources = append(t.Resources, u.resource)
		if values[u.usage] > 0 {
			busy[u.resource] = append(busy[u.resource], BusyInterval{
				Task:     u.task,
				Interval: NewInterval(t.Start, t.End),
			})
		}
	}

	s.resIndex = make(map[string]int)
	for _, r := range l.Problem.resources {
		v := ResourceResult{Name: r.name, Intervals: busy[r.name]}
		if v.Intervals == nil {
			v.Intervals = []BusyInterval{}
		}
		sort.SliceStable(v.Intervals, func(i, j int) bool {
			if v.Intervals[i].Start != v.Intervals[j].Start {
				return v.Intervals[i].Start < v.Intervals[j].Start
			}
			return v.Intervals[i].Task < v.Intervals[j].Task
		})
		for _, i := range l.byResource[r.name] {
			v.Busy += values[l.usages[i].usage]
		}
		s.resIndex[v.Name] = len(s.resources)
		s.resources = append(s.resources, v)
	}

	s.indIndex = make(map[string]int)
	for _, i := range l.Problem.indicators {
		iv := l.indicators[i.name]
		v := IndicatorResult{Name: i.name, Kind: i.kind}
		num := iv.num.eval(values)
		if i.kind == Real {
			v.Value = float64(num) / float64(i.divisor)
		} else {
			v.Value = float64(floorDiv(num, i.divisor))
		}
		s.indIndex[v.Name] = len(s.indicators)
		s.indicators = append(s.indicators, v)
	}
	return s
}

func presentIn(lits []Literal, values []int64) bool {
	for _, l := range lits {
		if !l.IsTrue(values) {
			return false
		}
	}
	return true
}
