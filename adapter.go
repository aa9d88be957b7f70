package gantt

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RawAssignment is what the adapter hands to the extractor.
type RawAssignment struct {
	Status     SolveStatus
	Values     []int64
	Optimal    bool
	Objective  int64
	Iterations int
	Nodes      int64
}

type AdapterOption func(a *SolverAdapter)

func WithAdapterStrategy(s Strategy) AdapterOption {
	return func(a *SolverAdapter) {
		a.strategy = s
	}
}

func WithAdapterLogger(l problemLogger) AdapterOption {
	return func(a *SolverAdapter) {
		a.logger = l
	}
}

// SolverAdapter optimizes through repeated satisfiability calls on a Backend.
type SolverAdapter struct {
	backend  Backend
	strategy Strategy
	logger   problemLogger
}

func NewSolverAdapter(b Backend, options ...AdapterOption) *SolverAdapter {
	a := &SolverAdapter{backend: b, strategy: StrategyLinear}
	for _, o := range options {
		o(a)
	}
	a.logger = a.logger.WithBackend(b.Name())
	return a
}

// Solve returns the first satisfying assignment when objective is nil, else
// the best one found before timeout. A zero timeout only uses ctx.
func (a *SolverAdapter) Solve(ctx context.Context, m *CanonicalModel, objective *ModelObjective, timeout time.Duration) (RawAssignment, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw := RawAssignment{Status: StatusUnknown}
	resp, err := a.call(ctx, m, &raw)
	if err != nil {
		return RawAssignment{}, err
	}
	if resp.Status != StatusSat {
		raw.Status = resp.Status
		return raw, nil
	}
	a.accept(&raw, resp, objective)
	if objective == nil {
		raw.Optimal = true
		return raw, nil
	}

	if a.strategy == StrategyBinary {
		err = a.bisect(ctx, m, objective, &raw)
	} else {
		err = a.descend(ctx, m, objective, &raw)
	}
	if err != nil {
		return RawAssignment{}, err
	}
	a.logger.Logger().Debugf("Objective %d optimal %v after %d iterations", raw.Objective, raw.Optimal, raw.Iterations)
	return raw, nil
}

// descend asks for a strictly better objective until the backend says no.
func (a *SolverAdapter) descend(ctx context.Context, m *CanonicalModel, objective *ModelObjective, raw *RawAssignment) error {
	for {
		bound := raw.Objective - 1
		if objective.Direction == Maximize {
			bound = raw.Objective + 1
		}
		resp, err := a.call(ctx, m.WithConstraint(objectiveRow(objective, bound)), raw)
		if err != nil {
			return err
		}
		switch resp.Status {
		case StatusSat:
			a.accept(raw, resp, objective)
		case StatusUnsat:
			raw.Optimal = true
			return nil
		default:
			return nil
		}
	}
}

// bisect halves the range between the best known objective and its bound.
func (a *SolverAdapter) bisect(ctx context.Context, m *CanonicalModel, objective *ModelObjective, raw *RawAssignment) error {
	lo, hi := objectiveBounds(m, objective)
	for {
		var bound int64
		if objective.Direction == Maximize {
			lo = raw.Objective + 1
			if lo > hi {
				break
			}
			bound = ceilDiv(lo+hi, 2)
		} else {
			hi = raw.Objective - 1
			if lo > hi {
				break
			}
			bound = floorDiv(lo+hi, 2)
		}

		resp, err := a.call(ctx, m.WithConstraint(objectiveRow(objective, bound)), raw)
		if err != nil {
			return err
		}
		switch resp.Status {
		case StatusSat:
			a.accept(raw, resp, objective)
		case StatusUnsat:
			if objective.Direction == Maximize {
				hi = bound - 1
			} else {
				lo = bound + 1
			}
		default:
			return nil
		}
	}
	raw.Optimal = true
	return nil
}

func (a *SolverAdapter) call(ctx context.Context, m *CanonicalModel, raw *RawAssignment) (Response, error) {
	resp, err := a.backend.Solve(ctx, m)
	raw.Iterations++
	if err != nil {
		return Response{}, errors.Wrapf(ErrBackend, "%s: %v", a.backend.Name(), err)
	}
	raw.Nodes += resp.Nodes
	if resp.Status == StatusSat && !m.IsSatisfied(resp.Values) {
		return Response{}, errors.Wrapf(ErrBackend, "%s returned an assignment violating the model", a.backend.Name())
	}
	a.logger.Logger().Debugf("Iteration %d: %s after %d nodes", raw.Iterations, resp.Status, resp.Nodes)
	return resp, nil
}

func (a *SolverAdapter) accept(raw *RawAssignment, resp Response, objective *ModelObjective) {
	raw.Status = StatusSat
	raw.Values = resp.Values
	if objective != nil {
		raw.Objective = objective.Evaluate(resp.Values)
	}
}

// objectiveRow is "objective <= bound" when minimizing, ">= bound" otherwise.
func objectiveRow(o *ModelObjective, bound int64) LinearConstraint {
	rel := RelLe
	if o.Direction == Maximize {
		rel = RelGe
	}
	return LinearConstraint{
		Name:  "objective",
		Terms: o.Terms,
		Rel:   rel,
		Bound: bound - o.Offset,
	}
}

func objectiveBounds(m *CanonicalModel, o *ModelObjective) (int64, int64) {
	l := constLinear(o.Offset)
	for _, t := range o.Terms {
		l = l.addTerm(t.Var, t.Coef)
	}
	return l.bounds(m)
}
