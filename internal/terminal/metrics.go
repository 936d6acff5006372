package terminal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/termcore/internal/scrollback"
)

const metricsNamespace = "termcore"

// Metrics holds the manager's Prometheus collectors.
type Metrics struct {
	active      prometheus.Gauge
	outputLines *prometheus.CounterVec
	commands    prometheus.Counter
	exits       prometheus.Counter
	dropped     prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already registered by an earlier
// manager are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "terminals_active",
			Help:      "Number of open terminals.",
		}),
		outputLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "output_lines_total",
			Help:      "Output lines appended to terminal buffers.",
		}, []string{"stream"}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands submitted to terminals.",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "process_exits_total",
			Help:      "Terminal processes that exited.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scrollback_dropped_lines_total",
			Help:      "Lines evicted from scrollback buffers.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.active = register(reg, m.active, &err)
	m.outputLines = register(reg, m.outputLines, &err)
	m.commands = register(reg, m.commands, &err)
	m.exits = register(reg, m.exits, &err)
	m.dropped = register(reg, m.dropped, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = errors.Join(*errp, err)
	}
	return c
}

func (m *Metrics) observe(ev Event) {
	switch ev.Kind {
	case EventOutputReceived:
		stream := "stdout"
		if ev.LineType == scrollback.LineError {
			stream = "stderr"
		}
		m.outputLines.WithLabelValues(stream).Inc()
	case EventCommandExecuted:
		m.commands.Inc()
	case EventProcessExited:
		m.exits.Inc()
	}
}
