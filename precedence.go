package gantt

import (
	"github.com/heimdalr/dag"
	"github.com/pkg/errors"
)

type PrecedenceKind string

const (
	PrecedenceLax    PrecedenceKind = "lax"
	PrecedenceStrict PrecedenceKind = "strict"
	PrecedenceTight  PrecedenceKind = "tight"
)

func ParsePrecedenceKind(s string) (PrecedenceKind, error) {
	switch PrecedenceKind(s) {
	case PrecedenceLax, "":
		return PrecedenceLax, nil
	case PrecedenceStrict:
		return PrecedenceStrict, nil
	case PrecedenceTight:
		return PrecedenceTight, nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "Precedence kind %q", s)
}

// Precedence orders Before ahead of After, separated by at least Offset
// periods (exactly Offset for tight precedences).
type Precedence struct {
	Before string
	After  string
	Kind   PrecedenceKind
	Offset int64
}

func (v Precedence) Op() Op {
	switch v.Kind {
	case PrecedenceStrict:
		return OpLt
	case PrecedenceTight:
		return OpEq
	}
	return OpLe
}

type PrecedenceGraph struct {
	dag   *dag.DAG
	edges []Precedence
	pairs map[[2]string]bool
}

func NewPrecedenceGraph() *PrecedenceGraph {
	return &PrecedenceGraph{
		dag:   dag.NewDAG(),
		pairs: make(map[[2]string]bool),
	}
}

func (g *PrecedenceGraph) AddTask(name string) error {
	return g.dag.AddVertexByID(name, name)
}

func (g *PrecedenceGraph) Add(p Precedence) error {
	if p.Before == p.After {
		return errors.Wrapf(ErrPrecedenceCycle, "Task %s precedes itself", p.Before)
	}
	pair := [2]string{p.Before, p.After}
	if !g.pairs[pair] {
		if err := g.dag.AddEdge(p.Before, p.After); err != nil {
			return errors.Wrapf(ErrPrecedenceCycle, "%s -> %s: %v", p.Before, p.After, err)
		}
		g.pairs[pair] = true
	}
	g.edges = append(g.edges, p)
	return nil
}

func (g *PrecedenceGraph) Edges() []Precedence {
	l := make([]Precedence, len(g.edges))
	copy(l, g.edges)
	return l
}

// Order returns names in topological order. Ties keep the order of names.
func (g *PrecedenceGraph) Order(names []string) ([]string, error) {
	position := make(map[string]int, len(names))
	for i, name := range names {
		position[name] = i
	}

	indegree := make(map[string]int, len(names))
	for _, name := range names {
		parents, err := g.dag.GetParents(name)
		if err != nil {
			return nil, errors.Wrapf(err, "Parents of %s", name)
		}
		indegree[name] = len(parents)
	}

	done := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))
	for len(order) < len(names) {
		next := ""
		for _, name := range names {
			if !done[name] && indegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, errors.Wrap(ErrPrecedenceCycle, "No task without predecessors")
		}
		done[next] = true
		order = append(order, next)

		children, err := g.dag.GetChildren(next)
		if err != nil {
			return nil, errors.Wrapf(err, "Children of %s", next)
		}
		for _, id := range vertexIDs(children) {
			if _, ok := position[id]; ok {
				indegree[id]--
			}
		}
	}
	return order, nil
}

func vertexIDs(vertices map[string]interface{}) []string {
	ids := make([]string, 0, len(vertices))
	for id := range vertices {
		ids = append(ids, id)
	}
	sortStrings(ids)
	return ids
}
