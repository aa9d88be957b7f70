package gantt

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Backend decides a CanonicalModel. Implementations keep no state between
// calls. Running out of time or search budget is reported as StatusUnknown,
// not as an error.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *CanonicalModel) (Response, error)
}

type Response struct {
	Status SolveStatus
	Values []int64
	Nodes  int64
}

func Sat(values []int64, nodes int64) Response {
	return Response{Status: StatusSat, Values: values, Nodes: nodes}
}

func Unsat(nodes int64) Response {
	return Response{Status: StatusUnsat, Nodes: nodes}
}

func Unknown(nodes int64) Response {
	return Response{Status: StatusUnknown, Nodes: nodes}
}

type BackendSet struct {
	backends map[string]Backend
	mu       sync.RWMutex
}

func NewBackendSet() *BackendSet {
	m := &BackendSet{
		backends: make(map[string]Backend),
		mu:       sync.RWMutex{},
	}
	m.registerDefaults()
	return m
}

func (m *BackendSet) Register(b Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exist := m.backends[b.Name()]
	if exist {
		return errors.Wrapf(ErrBackendDuplicated, "Backend %s is already registered", b.Name())
	}
	m.backends[b.Name()] = b
	return nil
}

func (m *BackendSet) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exist := m.backends[name]
	if !exist {
		return errors.Wrapf(ErrBackendNotFound, "Backend %s", name)
	}
	delete(m.backends, name)
	return nil
}

func (m *BackendSet) Get(name string) (Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.backends[name]
	if ok {
		return v, nil
	}
	return nil, errors.Wrapf(ErrBackendNotFound, "Backend %s", name)
}

func (m *BackendSet) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *BackendSet) registerDefaults() {
	for _, b := range DefaultBackends {
		_ = m.Register(b)
	}
}

const DefaultBackendName = "cp"

var DefaultBackends = []Backend{
	NewCPBackend(),
	NewEnumerateBackend(),
}

var backends = NewBackendSet()

func RegisterBackend(b Backend) error {
	return backends.Register(b)
}

func UnregisterBackend(name string) error {
	return backends.Unregister(name)
}

func GetBackend(name string) (Backend, error) {
	return backends.Get(name)
}

func BackendNames() []string {
	return backends.Names()
}
