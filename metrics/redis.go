package metrics

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// redisCollector roda o probe a cada scrape. Redis fora do ar vira
// pw_redis_up 0 e latência NaN, nunca erro de coleta.
type redisCollector struct {
	prober  Prober
	timeout time.Duration
	up      *prometheus.Desc
	latency *prometheus.Desc
}

func newRedisCollector(p Prober, timeout time.Duration) *redisCollector {
	return &redisCollector{
		prober:  p,
		timeout: timeout,
		up: prometheus.NewDesc(prometheus.BuildFQName(namespace, "redis", "up"),
			"Whether Redis answered the write/read probe.", nil, nil),
		latency: prometheus.NewDesc(prometheus.BuildFQName(namespace, "redis", "latency_seconds"),
			"Latency of the Redis write/read probe.", nil, nil),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.latency
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	up, latency := 1.0, math.NaN()
	d, err := c.prober.Probe(ctx)
	if err != nil {
		up = 0
	} else {
		latency = d.Seconds()
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, latency)
}
