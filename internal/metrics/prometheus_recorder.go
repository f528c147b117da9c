package metrics

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "lightmixer"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg                *prom.Registry
	invalidTransitions prom.Counter
	buttonPresses      prom.Counter
	touchEvents        prom.Counter
	saveRequests       prom.Counter
	commits            *prom.CounterVec
	brightness         prom.Gauge
	enabled            prom.Gauge
	position           prom.Gauge
}

// NewPrometheusRecorder constructs and registers the loop metrics.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		invalidTransitions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_invalid_transitions_total",
			Help:      "Non-adjacent quadrature phase transitions ignored by the decoder",
		}),
		buttonPresses: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_button_presses_total",
			Help:      "Raw encoder button press edges",
		}),
		touchEvents: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "touch_events_total",
			Help:      "Confirmed touch-down events",
		}),
		saveRequests: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_save_requests_total",
			Help:      "Save requests that opened or replaced the pending write",
		}),
		commits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_commits_total",
			Help:      "Durable commit attempts by result",
		}, []string{"result"}),
		brightness: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "brightness",
			Help:      "Brightness currently applied to the actuator",
		}),
		enabled: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "enabled",
			Help:      "1 when the output is enabled",
		}),
		position: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "encoder_position",
			Help:      "Last observed encoder position",
		}),
	}
	reg.MustRegister(pr.invalidTransitions, pr.buttonPresses, pr.touchEvents,
		pr.saveRequests, pr.commits, pr.brightness, pr.enabled, pr.position)
	return pr
}

func (p *PrometheusRecorder) IncInvalidTransition() {
	if p == nil {
		return
	}
	p.invalidTransitions.Inc()
}

func (p *PrometheusRecorder) IncButtonPress() {
	if p == nil {
		return
	}
	p.buttonPresses.Inc()
}

func (p *PrometheusRecorder) IncTouchEvent() {
	if p == nil {
		return
	}
	p.touchEvents.Inc()
}

func (p *PrometheusRecorder) IncSaveRequest() {
	if p == nil {
		return
	}
	p.saveRequests.Inc()
}

func (p *PrometheusRecorder) IncCommit(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.commits.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetBrightness(v uint8) {
	if p == nil {
		return
	}
	p.brightness.Set(float64(v))
}

func (p *PrometheusRecorder) SetEnabled(on bool) {
	if p == nil {
		return
	}
	if on {
		p.enabled.Set(1)
	} else {
		p.enabled.Set(0)
	}
}

func (p *PrometheusRecorder) SetPosition(v uint8) {
	if p == nil {
		return
	}
	p.position.Set(float64(v))
}

// WriteTextfile writes the current metric values in the text exposition
// format, atomically replacing path.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
