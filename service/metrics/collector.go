package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 音频块去向
const (
	ChunkForwarded = "forwarded"
	ChunkQueued    = "queued"
	ChunkDropped   = "dropped"
)

// 下行结果类型
const (
	ResultInterim = "interim"
	ResultFinal   = "final"
)

// Collector 中继的全部指标；nil 也能用，什么都不记（测试里不用装配）
type Collector struct {
	registry *prometheus.Registry

	sessionsActive   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	audioChunks      *prometheus.CounterVec
	results          *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	upstreamConnect  prometheus.Histogram
	clientErrors     prometheus.Counter
}

// NewCollector 在 registry 上注册指标，registry 为 nil 时新建一个
func NewCollector(namespace, subsystem string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "travel"
	}
	if subsystem == "" {
		subsystem = "speech_relay"
	}

	c := &Collector{
		registry: registry,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_active",
			Help:      "Client speech sessions currently registered",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_total",
			Help:      "Client speech sessions created",
		}),
		audioChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audio_chunks_total",
			Help:      "Audio chunks received from clients by outcome",
		}, []string{"outcome"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "results_total",
			Help:      "Recognition results forwarded to clients",
		}, []string{"kind"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_failures_total",
			Help:      "Upstream failures by reason",
		}, []string{"reason"}),
		upstreamConnect: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_connect_seconds",
			Help:      "Time from start to upstream socket established",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		clientErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "client_error_frames_total",
			Help:      "Error frames sent to clients",
		}),
	}

	registry.MustRegister(
		c.sessionsActive,
		c.sessionsTotal,
		c.audioChunks,
		c.results,
		c.upstreamFailures,
		c.upstreamConnect,
		c.clientErrors,
	)
	return c
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

func (c *Collector) AudioChunk(outcome string) {
	if c == nil {
		return
	}
	c.audioChunks.WithLabelValues(outcome).Inc()
}

func (c *Collector) Result(kind string) {
	if c == nil {
		return
	}
	c.results.WithLabelValues(kind).Inc()
}

func (c *Collector) UpstreamFailure(reason string) {
	if c == nil {
		return
	}
	c.upstreamFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) UpstreamConnected(d time.Duration) {
	if c == nil {
		return
	}
	c.upstreamConnect.Observe(d.Seconds())
}

func (c *Collector) ClientError() {
	if c == nil {
		return
	}
	c.clientErrors.Inc()
}

// Registry 底层 registry，测试和额外 collector 用
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 抓取入口
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
