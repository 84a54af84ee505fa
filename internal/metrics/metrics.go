package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines the counters recorded while answering inbound messages.
type Metrics interface {
	IncInbound(platform string)
	IncWorkflow(outcome string)
	IncAction(kind, status string)
	IncDelivery(platform, status string)
	IncClarification()
	ObserveGeneration(durationSeconds float64)
	AddEnergy(kwh, kgCO2 float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncInbound(string)          {}
func (Noop) IncWorkflow(string)         {}
func (Noop) IncAction(string, string)   {}
func (Noop) IncDelivery(string, string) {}
func (Noop) IncClarification()          {}
func (Noop) ObserveGeneration(float64)  {}
func (Noop) AddEnergy(float64, float64) {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	inbound        *prometheus.CounterVec
	workflows      *prometheus.CounterVec
	actions        *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	clarifications prometheus.Counter
	generation     prometheus.Histogram
	energy         prometheus.Counter
	carbon         prometheus.Counter
	once           sync.Once
}

// NewProm builds the collectors and registers them with the default registerer.
func NewProm(namespace string) *Prom {
	p := &Prom{
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by platform",
		}, []string{"platform"}),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_evaluations_total",
			Help:      "Workflow evaluations by outcome",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_actions_total",
			Help:      "Workflow actions by kind and status",
		}, []string{"kind", "status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by platform and status",
		}, []string{"platform", "status"}),
		clarifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clarifications_total",
			Help:      "Retrievals that asked the customer to clarify",
		}),
		generation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent generating a reply",
			Buckets:   prometheus.DefBuckets,
		}),
		energy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_kwh_total",
			Help:      "Estimated energy consumed answering messages",
		}),
		carbon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carbon_kg_total",
			Help:      "Estimated emissions answering messages",
		}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.inbound, p.workflows, p.actions, p.deliveries,
			p.clarifications, p.generation, p.energy, p.carbon)
	})
}

func (p *Prom) IncInbound(platform string) {
	p.inbound.WithLabelValues(platform).Inc()
}

func (p *Prom) IncWorkflow(outcome string) {
	p.workflows.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncAction(kind, status string) {
	p.actions.WithLabelValues(kind, status).Inc()
}

func (p *Prom) IncDelivery(platform, status string) {
	p.deliveries.WithLabelValues(platform, status).Inc()
}

func (p *Prom) IncClarification() {
	p.clarifications.Inc()
}

func (p *Prom) ObserveGeneration(durationSeconds float64) {
	p.generation.Observe(durationSeconds)
}

func (p *Prom) AddEnergy(kwh, kgCO2 float64) {
	if kwh > 0 {
		p.energy.Add(kwh)
	}
	if kgCO2 > 0 {
		p.carbon.Add(kgCO2)
	}
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
