// Package metrics holds the Prometheus collectors of the grading worker.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeError     = "error"
)

var (
	// Registry is the dedicated Prometheus registry for the worker
	Registry = prometheus.NewRegistry()

	// WorkItems counts graded work items by kind and outcome
	WorkItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "itinerary_work_items_total", Help: "Graded work items by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// GradeDuration records time spent grading one item in seconds
	GradeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "itinerary_grade_duration_seconds", Help: "Time spent grading one work item in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"kind"},
	)
	// QueueWait records how long items waited in the queue in seconds
	QueueWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "itinerary_queue_wait_seconds", Help: "Time between submission and pickup in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}},
		[]string{"kind"},
	)
	// Violations records violations found per prediction
	Violations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "itinerary_violations", Help: "Constraint violations per graded prediction.", Buckets: []float64{0, 1, 2, 3, 5, 8, 13}},
		[]string{"kind"},
	)
	// ActiveWorkers is the number of worker goroutines currently grading
	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "itinerary_active_workers", Help: "Worker goroutines currently grading an item."},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more
// than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(WorkItems)
		Registry.MustRegister(GradeDuration)
		Registry.MustRegister(QueueWait)
		Registry.MustRegister(Violations)
		Registry.MustRegister(ActiveWorkers)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
