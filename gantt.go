package gantt

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Gantt runs the build, solve and extract pipeline on scheduling problems.
type Gantt struct {
	backendName string
	timeout     time.Duration
	strategy    Strategy
}

func NewGantt(options ...Option) (*Gantt, error) {
	g := &Gantt{
		backendName: DefaultBackendName,
		strategy:    StrategyLinear,
	}

	for _, o := range options {
		o(g)
	}

	if _, err := ParseStrategy(string(g.strategy)); err != nil {
		return nil, err
	}
	if g.timeout < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Timeout %v", g.timeout)
	}
	if _, err := GetBackend(g.backendName); err != nil {
		return nil, err
	}
	return g, nil
}

// Solve freezes p and blocks until a solution, a proof of infeasibility, or
// the timeout. Unsat and Unknown are reported through Solution.Feasible.
func (g *Gantt) Solve(ctx context.Context, p *SchedulingProblem) (Solution, error) {
	if p == nil {
		return Solution{}, errors.Wrap(ErrInvalidArgument, "Nil problem")
	}
	if p.state == StateSolving {
		return Solution{}, errors.Wrapf(ErrFrozenProblem, "Problem %s is being solved", p.name)
	}
	backend, err := GetBackend(g.backendName)
	if err != nil {
		return Solution{}, err
	}

	logger := problemLogger{}.WithProblem(p.name).WithRunID(NewRunID()).WithBackend(backend.Name())
	previous := p.state
	p.changeState(StateSolving)

	metrics.AddRunningSolve()
	defer metrics.RemoveRunningSolve()
	startTime := time.Now()

	l, err := Build(p)
	if err != nil {
		p.changeState(previous)
		metrics.Solve(backend.Name(), "error", time.Since(startTime), RawAssignment{})
		logger.WithPhase("build").Logger().Warnf("Build failed, %v", err)
		return Solution{}, err
	}
	logger.WithPhase("build").Logger().Debugf("Lowered to %d variables and %d constraints, horizon %d",
		len(l.Model.Variables), len(l.Model.Constraints), l.Horizon)

	adapter := NewSolverAdapter(backend,
		WithAdapterStrategy(g.strategy),
		WithAdapterLogger(logger.WithPhase("solve")))
	raw, err := adapter.Solve(ctx, l.Model, l.Model.Objective, g.timeout)
	if err != nil {
		p.changeState(StateInfeasible)
		metrics.Solve(backend.Name(), "error", time.Since(startTime), raw)
		logger.WithPhase("solve").Logger().Errorf("Backend failed, %v", err)
		return Solution{}, err
	}

	s := Extract(l, raw)
	if s.Feasible() {
		p.changeState(StateSolved)
	} else {
		p.changeState(StateInfeasible)
	}

	d := time.Since(startTime)
	metrics.Solve(backend.Name(), string(s.Status()), d, raw)
	logger.WithPhase("extract").Logger().Infof("%s in %v, optimal %v, %d iterations, %d nodes",
		s.Status(), d, s.Optimal(), raw.Iterations, raw.Nodes)
	return s, nil
}
