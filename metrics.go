package gantt

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metrics = prom{}

var (
	promNamespace = "gantt"
	promSolver    = "solver"

	promHostname, _ = os.Hostname()
	promConstLabels = prometheus.Labels{"host": promHostname}

	numberOfRunningSolve = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace:   promNamespace,
		Subsystem:   promSolver,
		Name:        "running",
		Help:        "The number of currently running solves",
		ConstLabels: promConstLabels,
	})

	numberOfSolve = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   promNamespace,
		Subsystem:   promSolver,
		Name:        "solves_total",
		Help:        "The number of solves by backend and outcome",
		ConstLabels: promConstLabels,
	}, []string{"backend", "status"})

	totalSolveTime = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   promNamespace,
		Subsystem:   promSolver,
		Name:        "solve_time_total",
		Help:        "Solve time in milliseconds by backend and outcome",
		ConstLabels: promConstLabels,
	}, []string{"backend", "status"})

	totalSearchNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   promNamespace,
		Subsystem:   promSolver,
		Name:        "nodes_total",
		Help:        "The number of search nodes explored by backend",
		ConstLabels: promConstLabels,
	}, []string{"backend"})

	totalIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   promNamespace,
		Subsystem:   promSolver,
		Name:        "iterations_total",
		Help:        "The number of backend calls made while optimizing",
		ConstLabels: promConstLabels,
	}, []string{"backend"})
)

type prom struct {
}

func (m prom) AddRunningSolve() {
	numberOfRunningSolve.Inc()
}

func (m prom) RemoveRunningSolve() {
	numberOfRunningSolve.Dec()
}

// Solve records one finished solve. status is "error" when the pipeline
// failed before producing a status.
func (m prom) Solve(backend string, status string, d time.Duration, raw RawAssignment) {
	v := d / 1e6
	numberOfSolve.WithLabelValues(backend, status).Inc()
	totalSolveTime.WithLabelValues(backend, status).Add(float64(v))
	totalSearchNodes.WithLabelValues(backend).Add(float64(raw.Nodes))
	totalIterations.WithLabelValues(backend).Add(float64(raw.Iterations))
}
