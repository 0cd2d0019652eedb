package monitoring

import (
	"time"

	"dcbench/internal/core/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ services.MetricsSink = (*PrometheusCollector)(nil)

// PrometheusCollector exports the benchmark observations on the /metrics
// endpoint of the status server.
type PrometheusCollector struct {
	sentBytes     prometheus.Counter
	receivedBytes prometheus.Counter

	bufferedAmount prometheus.Gauge
	totalSent      prometheus.Gauge
	totalReceived  prometheus.Gauge
	rttSeconds     prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sentBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dcbench_sent_bytes_total",
			Help: "Bytes sent on the benchmark data channel",
		}),

		receivedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dcbench_received_bytes_total",
			Help: "Bytes received on the benchmark data channel",
		}),

		bufferedAmount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcbench_buffered_amount_bytes",
			Help: "Bytes accepted by the data channel but not yet drained",
		}),

		totalSent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcbench_connection_sent_bytes",
			Help: "Lifetime bytes sent reported by the peer connection",
		}),

		totalReceived: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcbench_connection_received_bytes",
			Help: "Lifetime bytes received reported by the peer connection",
		}),

		rttSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dcbench_rtt_seconds",
			Help: "Last round-trip-time sample of the peer connection",
		}),
	}
}

func (c *PrometheusCollector) ObserveWindow(sentBytes, receivedBytes, bufferedAmount uint64) {
	c.sentBytes.Add(float64(sentBytes))
	c.receivedBytes.Add(float64(receivedBytes))
	c.bufferedAmount.Set(float64(bufferedAmount))
}

func (c *PrometheusCollector) ObserveTotals(bytesSent, bytesReceived uint64, rtt time.Duration) {
	c.totalSent.Set(float64(bytesSent))
	c.totalReceived.Set(float64(bytesReceived))
	c.rttSeconds.Set(rtt.Seconds())
}
