package gantt

import (
	"time"
)

type Option func(g *Gantt)

// WithBackend selects a registered backend by name.
func WithBackend(name string) Option {
	return func(g *Gantt) {
		g.backendName = name
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gantt) {
		g.timeout = d
	}
}

func WithStrategy(s Strategy) Option {
	return func(g *Gantt) {
		g.strategy = s
	}
}
