package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ipcril"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	ipcMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "messages_total",
			Help:      "IPC messages by channel, direction and command.",
		},
		[]string{"channel", "direction", "command"},
	)
	ipcUnknown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "unknown_commands_total",
			Help:      "Inbound messages dropped for an unhandled command code.",
		},
		[]string{"channel"},
	)
	hostRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "requests_total",
			Help:      "Host requests by kind.",
		},
		[]string{"kind"},
	)
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "completions_total",
			Help:      "Completions delivered to the host by errno.",
		},
		[]string{"errno"},
	)
	suppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "completions_suppressed_total",
			Help:      "Completions dropped because the host canceled the request.",
		},
	)
	unsolicited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "unsolicited_total",
			Help:      "Unsolicited events pushed to the host.",
		},
		[]string{"event"},
	)
	smsEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "sms_queue_evictions_total",
			Help:      "Queued outgoing SMS dropped because the queue was full.",
		},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "queue_depth",
			Help:      "Entries waiting in the serial queues.",
		},
		[]string{"queue"},
	)
	radioState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ril",
			Name:      "radio_state",
			Help:      "1 for the current radio state, 0 otherwise.",
		},
		[]string{"state"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			ipcMessages, ipcUnknown,
			hostRequests, completions, suppressed, unsolicited,
			smsEvictions, queueDepth, radioState,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordIPCMessage(channel, direction, command string) {
	RegisterMetrics()
	ipcMessages.WithLabelValues(channel, direction, command).Inc()
}

func RecordUnknownCommand(channel string) {
	RegisterMetrics()
	ipcUnknown.WithLabelValues(channel).Inc()
}

func RecordHostRequest(kind string) {
	RegisterMetrics()
	hostRequests.WithLabelValues(kind).Inc()
}

func RecordCompletion(errno string) {
	RegisterMetrics()
	completions.WithLabelValues(errno).Inc()
}

func RecordSuppressedCompletion() {
	RegisterMetrics()
	suppressed.Inc()
}

func RecordUnsolicited(event string) {
	RegisterMetrics()
	unsolicited.WithLabelValues(event).Inc()
}

func RecordSMSEviction() {
	RegisterMetrics()
	smsEvictions.Inc()
}

func SetQueueDepth(queue string, depth int) {
	RegisterMetrics()
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetRadioState flips the radio_state gauge to current among states.
func SetRadioState(current string, states []string) {
	RegisterMetrics()
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		radioState.WithLabelValues(s).Set(v)
	}
}
