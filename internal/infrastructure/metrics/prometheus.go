package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vision-relay/internal/domain/port"
)

// Prometheus собирает метрики пайплайна в собственный реестр
type Prometheus struct {
	registry *prometheus.Registry
	jobs     *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewPrometheus регистрирует метрики
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vision_relay",
			Name:      "jobs_total",
			Help:      "Jobs processed by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vision_relay",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vision_relay",
			Name:      "stage_failures_total",
			Help:      "Failed pipeline stages.",
		}, []string{"stage"}),
	}

	p.registry.MustRegister(
		p.jobs,
		p.stages,
		p.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveStage(stage string, elapsed time.Duration, err error) {
	p.stages.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		p.failures.WithLabelValues(stage).Inc()
	}
}

func (p *Prometheus) JobFinished(outcome string) {
	p.jobs.WithLabelValues(outcome).Inc()
}

// Handler отдаёт метрики для /metrics
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry нужен тестам и для регистрации дополнительных коллекторов
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

var _ port.PipelineMetrics = (*Prometheus)(nil)
