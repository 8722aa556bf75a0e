// Package metrics exposes recorder and player statistics as Prometheus
// metrics, styled after the teacher's internal/metrics.Metrics:
// promauto-registered counters and gauges, one constructor per subcommand.
// These are an additional consumer of the same counters the recorder and
// player already track for their own Stats() calls — nothing here is load
// bearing for the core contracts in spec §4.1/§4.2.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder mirrors the recorder's Stats() snapshot as Prometheus series.
type Recorder struct {
	Received     prometheus.Counter
	Written      prometheus.Counter
	Dropped      prometheus.Counter
	BytesWritten prometheus.Counter
	Overflow     prometheus.Gauge
	Paused       prometheus.Gauge
}

// NewRecorder registers and returns the recorder metric set.
func NewRecorder() *Recorder {
	return &Recorder{
		Received: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeskip_recorder_messages_received_total",
			Help: "Messages delivered by the broker callback, paused or not.",
		}),
		Written: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeskip_recorder_messages_written_total",
			Help: "Messages successfully appended to the capture file.",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeskip_recorder_messages_dropped_total",
			Help: "Messages dropped: paused or ring overflow.",
		}),
		BytesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeskip_recorder_bytes_written_total",
			Help: "On-wire bytes appended to the capture file.",
		}),
		Overflow: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeskip_recorder_overflow",
			Help: "1 if the ring buffer has ever overflowed this run, else 0.",
		}),
		Paused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeskip_recorder_paused",
			Help: "1 if recording is currently paused, else 0.",
		}),
	}
}

// Player mirrors the player's Stats() snapshot as Prometheus series.
type Player struct {
	MessagesPublished prometheus.Counter
	CurrentIndex      prometheus.Gauge
	Speed             prometheus.Gauge
	PositionNs        prometheus.Gauge
}

// NewPlayer registers and returns the player metric set.
func NewPlayer() *Player {
	return &Player{
		MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeskip_player_messages_published_total",
			Help: "Messages successfully published back to the broker.",
		}),
		CurrentIndex: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeskip_player_current_index",
			Help: "Index of the next message to publish.",
		}),
		Speed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeskip_player_speed",
			Help: "Current playback speed multiplier (0 = unthrottled).",
		}),
		PositionNs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeskip_player_position_ns",
			Help: "Elapsed capture time at the current index, in nanoseconds.",
		}),
	}
}

// Serve starts a /metrics HTTP listener on addr. Intended to run in its
// own goroutine; returns the error from http.ListenAndServe (always
// non-nil once the listener stops).
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
