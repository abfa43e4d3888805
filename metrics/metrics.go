// Package metrics expõe o estado do processo no formato Prometheus: build,
// uptime, saúde do Redis, limites configurados e contadores de decisões do
// rate limit e de operações de segredo.
//
// Usa um prometheus.Registry próprio em vez do global, então vários
// Collectors podem coexistir em testes.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pw-gateway/middleware/ratelimit/domain"
)

const namespace = "pw"

// Prober mede a latência de um ciclo escrita/leitura no Redis.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Info são os valores estáticos publicados como gauges.
type Info struct {
	Version           string
	MessageMaxLength  uint16
	FileMaxSize       uint64
	FileUploadEnabled bool
	IPLimitsEnabled   bool
	BodyLimit         int
}

type Metrics struct {
	reg       *prometheus.Registry
	decisions *prometheus.CounterVec
	secretOps *prometheus.CounterVec
}

type options struct {
	probeTimeout time.Duration
	now          func() time.Time
}

type Option func(*options)

func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) { o.probeTimeout = d }
}

func New(info Info, prober Prober, opts ...Option) *Metrics {
	o := options{probeTimeout: 2 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	start := o.now()

	m := &Metrics{
		reg: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limit decisions by result.",
		}, []string{"result"}),
		secretOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_operations_total",
			Help:      "Secret store operations by operation and result.",
		}, []string{"operation", "result"}),
	}

	gauge := func(name, help string, v float64) prometheus.Collector {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
		g.Set(v)
		return g
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version"})
	buildInfo.WithLabelValues(info.Version).Set(1)

	m.reg.MustRegister(
		gauge("up", "Whether the service is up.", 1),
		buildInfo,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started.",
		}, func() float64 { return o.now().Sub(start).Seconds() }),
		gauge("config_message_max_length", "Configured default message max length.", float64(info.MessageMaxLength)),
		gauge("config_file_max_size_bytes", "Configured default file max size in bytes.", float64(info.FileMaxSize)),
		gauge("config_file_upload_enabled", "Whether file upload is enabled.", boolFloat(info.FileUploadEnabled)),
		gauge("ip_limits_enabled", "Whether per-IP limits are enabled.", boolFloat(info.IPLimitsEnabled)),
		gauge("body_limit_bytes", "Process-wide request body ceiling in bytes.", float64(info.BodyLimit)),
		m.decisions,
		m.secretOps,
	)
	if prober != nil {
		m.reg.MustRegister(newRedisCollector(prober, o.probeTimeout))
	}

	for _, r := range domain.Results {
		m.decisions.WithLabelValues(string(r))
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveSecret tem a assinatura de secret.Observer.
func (m *Metrics) ObserveSecret(operation, result string) {
	m.secretOps.WithLabelValues(operation, result).Inc()
}

// RateLimitStats é um domain.StatsStore que incrementa
// pw_rate_limit_decisions_total.
func (m *Metrics) RateLimitStats() domain.StatsStore {
	return rateLimitStats{vec: m.decisions}
}

type rateLimitStats struct {
	vec *prometheus.CounterVec
}

func (s rateLimitStats) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Result == "" {
		return nil
	}
	s.vec.WithLabelValues(string(ev.Result)).Inc()
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
