package gantt

import (
	"github.com/pkg/errors"
)

// Task is implemented by *FixedDurationTask and *VariableDurationTask only.
type Task interface {
	Name() string
	Optional() bool
	Priority() int64
	Requirements() []ResourceRequirement
	Problem() *SchedulingProblem
	AddRequiredResource(req ResourceRequirement) error
	isTask()
}

var (
	_ Task = (*FixedDurationTask)(nil)
	_ Task = (*VariableDurationTask)(nil)
)

type taskBase struct {
	problem      *SchedulingProblem
	name         string
	optional     bool
	priority     int64
	requirements []ResourceRequirement
}

type TaskOption func(t *taskBase)

// Optional lets the solver leave the task out of the schedule.
func Optional() TaskOption {
	return func(t *taskBase) {
		t.optional = true
	}
}

func WithPriority(v int64) TaskOption {
	return func(t *taskBase) {
		t.priority = v
	}
}

func newTaskBase(p *SchedulingProblem, name string, options []TaskOption) (taskBase, error) {
	if p == nil {
		return taskBase{}, errors.Wrap(ErrInvalidArgument, "Nil problem")
	}
	if name == "" {
		return taskBase{}, errors.Wrap(ErrInvalidArgument, "Empty task name")
	}
	t := taskBase{problem: p, name: name, priority: 1}
	for _, o := range options {
		o(&t)
	}
	if t.priority < 0 {
		return taskBase{}, errors.Wrapf(ErrInvalidArgument, "Task %s priority %d", name, t.priority)
	}
	return t, nil
}

func (t *taskBase) Name() string {
	return t.name
}

func (t *taskBase) Optional() bool {
	return t.optional
}

func (t *taskBase) Priority() int64 {
	return t.priority
}

func (t *taskBase) Problem() *SchedulingProblem {
	return t.problem
}

func (t *taskBase) Requirements() []ResourceRequirement {
	l := make([]ResourceRequirement, len(t.requirements))
	copy(l, t.requirements)
	return l
}

func (t *taskBase) AddRequiredResource(req ResourceRequirement) error {
	if err := t.problem.checkBuilding(); err != nil {
		return err
	}
	if req == nil {
		return errors.Wrapf(ErrInvalidResource, "Nil requirement on task %s", t.name)
	}
	if r, ok := req.(*Resource); ok && r == nil {
		return errors.Wrapf(ErrInvalidResource, "Nil resource on task %s", t.name)
	}
	if s, ok := req.(*SelectWorkers); ok && s == nil {
		return errors.Wrapf(ErrInvalidResource, "Nil selection on task %s", t.name)
	}

	used := make(map[string]bool)
	for _, old := range t.requirements {
		for _, r := range old.Candidates() {
			used[r.name] = true
		}
	}
	for _, r := range req.Candidates() {
		if r.problem != t.problem {
			return errors.Wrapf(ErrInvalidResource, "Resource %s does not belong to problem %s", r.name, t.problem.name)
		}
		if used[r.name] {
			return errors.Wrapf(ErrInvalidResource, "Resource %s already required by task %s", r.name, t.name)
		}
	}

	t.requirements = append(t.requirements, req)
	return nil
}

func (*taskBase) isTask() {}

type FixedDurationTask struct {
	taskBase
	duration int64
}

// NewFixedDurationTask creates a task of constant duration and registers it on p.
func NewFixedDurationTask(p *SchedulingProblem, name string, duration int64, options ...TaskOption) (*FixedDurationTask, error) {
	base, err := newTaskBase(p, name, options)
	if err != nil {
		return nil, err
	}
	if duration < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Task %s duration %d", name, duration)
	}
	t := &FixedDurationTask{taskBase: base, duration: duration}
	if err := p.AddTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FixedDurationTask) Duration() int64 {
	return t.duration
}

type VariableDurationTask struct {
	taskBase
	workAmount int64
}

// NewVariableDurationTask creates a task whose duration follows from the
// productivity of the resources assigned to it.
func NewVariableDurationTask(p *SchedulingProblem, name string, workAmount int64, options ...TaskOption) (*VariableDurationTask, error) {
	base, err := newTaskBase(p, name, options)
	if err != nil {
		return nil, err
	}
	if workAmount < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Task %s work amount %d", name, workAmount)
	}
	t := &VariableDurationTask{taskBase: base, workAmount: workAmount}
	if err := p.AddTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *VariableDurationTask) WorkAmount() int64 {
	return t.workAmount
}

// taskResources flattens the requirements of t in declaration order.
func taskResources(t Task) []*Resource {
	l := []*Resource{}
	for _, req := range t.Requirements() {
		l = append(l, req.Candidates()...)
	}
	return l
}

// maxTaskDuration is the largest duration t can take in any schedule.
func maxTaskDuration(t Task) int64 {
	switch v := t.(type) {
	case *FixedDurationTask:
		return v.duration
	case *VariableDurationTask:
		if v.workAmount == 0 {
			return 0
		}
		minProductivity := int64(0)
		for _, r := range taskResources(v) {
			if minProductivity == 0 || r.productivity < minProductivity {
				minProductivity = r.productivity
			}
		}
		if minProductivity == 0 {
			return 0
		}
		return ceilDiv(v.workAmount, minProductivity)
	}
	panic("unknown task variant")
}

// minTaskDuration is the smallest duration t can take when scheduled.
func minTaskDuration(t Task) int64 {
	switch v := t.(type) {
	case *FixedDurationTask:
		return v.duration
	case *VariableDurationTask:
		if v.workAmount == 0 {
			return 0
		}
		total := int64(0)
		for _, r := range taskResources(v) {
			total += r.productivity
		}
		if total == 0 {
			return 0
		}
		return ceilDiv(v.workAmount, total)
	}
	panic("unknown task variant")
}
