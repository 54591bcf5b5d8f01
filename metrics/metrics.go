// Package metrics exports comserial transfer counters to Prometheus.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	comserial "github.com/luhtfiimanal/go-comserial"
)

// Collector implements comserial.Observer.
type Collector struct {
	bytes    *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	errors   *prometheus.CounterVec
	sizes    *prometheus.HistogramVec
}

var _ comserial.Observer = (*Collector)(nil)

// NewCollector registers the comserial metrics on reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "comserial_bytes_total",
			Help: "Bytes moved over the serial line, including partial transfers.",
		}, []string{"direction"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "comserial_timeouts_total",
			Help: "Buffered transfers that hit their timeout.",
		}, []string{"direction"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "comserial_errors_total",
			Help: "Buffered transfers aborted by a runtime error.",
		}, []string{"direction"}),
		sizes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "comserial_transfer_bytes",
			Help:    "Size of completed buffered transfers.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"direction"}),
	}
}

func (c *Collector) Transferred(dir comserial.Direction, n int) {
	c.bytes.WithLabelValues(string(dir)).Add(float64(n))
	c.sizes.WithLabelValues(string(dir)).Observe(float64(n))
}

func (c *Collector) TimedOut(dir comserial.Direction, n int) {
	c.bytes.WithLabelValues(string(dir)).Add(float64(n))
	c.timeouts.WithLabelValues(string(dir)).Inc()
}

func (c *Collector) Failed(dir comserial.Direction, _ error) {
	c.errors.WithLabelValues(string(dir)).Inc()
}

// Serve exposes /metrics for g on addr in the background and returns the
// server so the caller can shut it down.
func Serve(addr string, g prometheus.Gatherer, log *slog.Logger) *http.Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		log.Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
