package transport

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a connection's activity counters and current state as
// Prometheus metrics. Register it with a prometheus.Registerer:
//
//	prometheus.MustRegister(transport.NewCollector(conn))
type Collector struct {
	conn *Conn

	framesSent      *prometheus.Desc
	framesRecv      *prometheus.Desc
	parseErrors     *prometheus.Desc
	reconnects      *prometheus.Desc
	pingsSent       *prometheus.Desc
	pongsRecv       *prometheus.Desc
	requestTimeouts *prometheus.Desc
	state           *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Prometheus collector view over conn.
func NewCollector(conn *Conn) *Collector {
	return &Collector{
		conn: conn,
		framesSent: prometheus.NewDesc(
			"scanbridge_frames_sent_total",
			"Frames written to the bridge channel.",
			nil, nil),
		framesRecv: prometheus.NewDesc(
			"scanbridge_frames_received_total",
			"Frames read from the bridge channel.",
			nil, nil),
		parseErrors: prometheus.NewDesc(
			"scanbridge_frame_parse_errors_total",
			"Malformed inbound frames dropped.",
			nil, nil),
		reconnects: prometheus.NewDesc(
			"scanbridge_reconnects_total",
			"Backoff reconnect attempts scheduled.",
			nil, nil),
		pingsSent: prometheus.NewDesc(
			"scanbridge_keepalive_pings_sent_total",
			"Keepalive ping frames sent.",
			nil, nil),
		pongsRecv: prometheus.NewDesc(
			"scanbridge_keepalive_pongs_received_total",
			"Keepalive acknowledgments consumed.",
			nil, nil),
		requestTimeouts: prometheus.NewDesc(
			"scanbridge_request_timeouts_total",
			"Requests that expired without a matching response.",
			nil, nil),
		state: prometheus.NewDesc(
			"scanbridge_connection_state",
			"Current connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
			nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesSent
	ch <- c.framesRecv
	ch <- c.parseErrors
	ch <- c.reconnects
	ch <- c.pingsSent
	ch <- c.pongsRecv
	ch <- c.requestTimeouts
	ch <- c.state
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.conn.Metrics()
	ch <- prometheus.MustNewConstMetric(c.framesSent, prometheus.CounterValue, float64(m.FramesSent()))
	ch <- prometheus.MustNewConstMetric(c.framesRecv, prometheus.CounterValue, float64(m.FramesReceived()))
	ch <- prometheus.MustNewConstMetric(c.parseErrors, prometheus.CounterValue, float64(m.ParseErrors()))
	ch <- prometheus.MustNewConstMetric(c.reconnects, prometheus.CounterValue, float64(m.Reconnects()))
	ch <- prometheus.MustNewConstMetric(c.pingsSent, prometheus.CounterValue, float64(m.PingsSent()))
	ch <- prometheus.MustNewConstMetric(c.pongsRecv, prometheus.CounterValue, float64(m.PongsReceived()))
	ch <- prometheus.MustNewConstMetric(c.requestTimeouts, prometheus.CounterValue, float64(m.RequestTimeouts()))
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(c.conn.State()))
}
