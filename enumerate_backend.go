package gantt

import (
	"context"

	"github.com/pkg/errors"
)

const defaultEnumerateLimit = 1 << 22

// EnumerateBackend tries every assignment in lexicographic order. It is only
// meant for tiny models.
type EnumerateBackend struct {
	limit int64
}

func NewEnumerateBackend() *EnumerateBackend {
	return &EnumerateBackend{limit: defaultEnumerateLimit}
}

func (b *EnumerateBackend) Name() string {
	return "enumerate"
}

func (b *EnumerateBackend) Solve(ctx context.Context, m *CanonicalModel) (Response, error) {
	if err := m.Validate(); err != nil {
		return Response{}, err
	}

	size := int64(1)
	for _, v := range m.Variables {
		if v.Lo > v.Hi {
			return Unsat(0), nil
		}
		size *= v.Hi - v.Lo + 1
		if size > b.limit {
			return Response{}, errors.Errorf("Model has more than %d assignments", b.limit)
		}
	}

	values := make([]int64, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = v.Lo
	}

	nodes := int64(0)
	for {
		nodes++
		if nodes%1024 == 0 && ctx.Err() != nil {
			return Unknown(nodes), nil
		}
		if m.IsSatisfied(values) {
			l := make([]int64, len(values))
			copy(l, values)
			return Sat(l, nodes), nil
		}
		if !increment(values, m.Variables) {
			return Unsat(nodes), nil
		}
	}
}

// increment advances values like an odometer, last variable fastest.
func increment(values []int64, vars []Variable) bool {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] < vars[i].Hi {
			values[i]++
			return true
		}
		values[i] = vars[i].Lo
	}
	return false
}
