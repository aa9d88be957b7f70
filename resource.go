package gantt

import (
	"github.com/pkg/errors"
)

// ResourceRequirement is either a *Resource or a *SelectWorkers.
type ResourceRequirement interface {
	Candidates() []*Resource
	isRequirement()
}

var (
	_ ResourceRequirement = (*Resource)(nil)
	_ ResourceRequirement = (*SelectWorkers)(nil)
)

type Resource struct {
	problem       *SchedulingProblem
	name          string
	productivity  int64
	costPerPeriod int64
	unavailable   []Interval
}

type ResourceOption func(r *Resource)

func WithProductivity(v int64) ResourceOption {
	return func(r *Resource) {
		r.productivity = v
	}
}

func WithCostPerPeriod(v int64) ResourceOption {
	return func(r *Resource) {
		r.costPerPeriod = v
	}
}

// NewResource creates a resource and registers it on p.
func NewResource(p *SchedulingProblem, name string, options ...ResourceOption) (*Resource, error) {
	if p == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "Nil problem")
	}
	r := &Resource{
		problem:       p,
		name:          name,
		productivity:  1,
		costPerPeriod: 0,
	}
	for _, o := range options {
		o(r)
	}

	if name == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "Empty resource name")
	}
	if r.productivity <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Resource %s productivity %d", name, r.productivity)
	}
	if r.costPerPeriod < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Resource %s cost per period %d", name, r.costPerPeriod)
	}

	if err := p.AddResource(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resource) Name() string {
	return r.name
}

func (r *Resource) Productivity() int64 {
	return r.productivity
}

func (r *Resource) CostPerPeriod() int64 {
	return r.costPerPeriod
}

func (r *Resource) Problem() *SchedulingProblem {
	return r.problem
}

func (r *Resource) Candidates() []*Resource {
	return []*Resource{r}
}

func (*Resource) isRequirement() {}

func (r *Resource) Unavailabilities() []Interval {
	l := make([]Interval, len(r.unavailable))
	copy(l, r.unavailable)
	return l
}

// AddUnavailability blocks [start, end) on the resource.
func (r *Resource) AddUnavailability(start, end int64) error {
	if err := r.problem.checkBuilding(); err != nil {
		return err
	}
	if start < 0 || end <= start {
		return errors.Wrapf(ErrInvalidArgument, "Unavailability [%d, %d) on %s", start, end, r.name)
	}
	r.unavailable = append(r.unavailable, NewInterval(start, end))
	return nil
}

type SelectKind string

const (
	SelectExact   SelectKind = "exact"
	SelectAtLeast SelectKind = "min"
	SelectAtMost  SelectKind = "max"
)

func ParseSelectKind(s string) (SelectKind, error) {
	switch SelectKind(s) {
	case SelectExact, "":
		return SelectExact, nil
	case SelectAtLeast:
		return SelectAtLeast, nil
	case SelectAtMost:
		return SelectAtMost, nil
	}
	return "", errors.Wrapf(ErrInvalidSelection, "Kind %q", s)
}

// SelectWorkers picks n resources out of the candidates.
type SelectWorkers struct {
	candidates []*Resource
	n          int
	kind       SelectKind
}

func NewSelectWorkers(candidates []*Resource, n int, kind SelectKind) (*SelectWorkers, error) {
	if len(candidates) < 2 {
		return nil, errors.Wrapf(ErrInvalidSelection, "Need at least 2 candidates, got %d", len(candidates))
	}
	if _, err := ParseSelectKind(string(kind)); err != nil {
		return nil, err
	}
	if n < 1 || n > len(candidates) {
		return nil, errors.Wrapf(ErrInvalidSelection, "Select %d out of %d candidates", n, len(candidates))
	}

	seen := make(map[string]bool)
	var owner *SchedulingProblem
	for _, r := range candidates {
		if r == nil {
			return nil, errors.Wrap(ErrInvalidResource, "Nil candidate")
		}
		if owner == nil {
			owner = r.problem
		}
		if r.problem != owner {
			return nil, errors.Wrapf(ErrInvalidResource, "Candidate %s belongs to another problem", r.name)
		}
		if seen[r.name] {
			return nil, errors.Wrapf(ErrInvalidSelection, "Duplicate candidate %s", r.name)
		}
		seen[r.name] = true
	}

	l := make([]*Resource, len(candidates))
	copy(l, candidates)
	if kind == "" {
		kind = SelectExact
	}
	return &SelectWorkers{candidates: l, n: n, kind: kind}, nil
}

func (s *SelectWorkers) Candidates() []*Resource {
	l := make([]*Resource, len(s.candidates))
	copy(l, s.candidates)
	return l
}

func (s *SelectWorkers) Count() int {
	return s.n
}

func (s *SelectWorkers) Kind() SelectKind {
	return s.kind
}

func (*SelectWorkers) isRequirement() {}
