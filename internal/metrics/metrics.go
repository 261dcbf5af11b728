package metrics

import (
	"github.com/blackmichael/sentiment-collector/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collector's Prometheus instruments on a private registry.
// It implements domain.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	eventsProcessed *prometheus.CounterVec
	postsInserted   prometheus.Counter
	fetchFailures   prometheus.Counter
	postsRescored   prometheus.Counter
	cycles          prometheus.Counter
}

var _ domain.Recorder = (*Metrics)(nil)

// New creates the instruments and registers them, along with the Go runtime
// and process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		eventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_events_processed_total",
				Help: "Eligible events processed, by resulting collection state",
			},
			[]string{"state"},
		),
		postsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_posts_inserted_total",
			Help: "Posts newly stored",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_fetch_failures_total",
			Help: "Event collections aborted by a search failure",
		}),
		postsRescored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_posts_rescored_total",
			Help: "Posts whose sentiment weight changed and was written",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cycles_completed_total",
			Help: "Completed collection cycles",
		}),
	}

	m.registry.MustRegister(
		m.eventsProcessed,
		m.postsInserted,
		m.fetchFailures,
		m.postsRescored,
		m.cycles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for serving.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventProcessed(state domain.CollectionState) {
	m.eventsProcessed.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) PostsInserted(n int) {
	m.postsInserted.Add(float64(n))
}

func (m *Metrics) FetchFailed() {
	m.fetchFailures.Inc()
}

func (m *Metrics) PostsRescored(n int) {
	m.postsRescored.Add(float64(n))
}

func (m *Metrics) CycleCompleted() {
	m.cycles.Inc()
}
