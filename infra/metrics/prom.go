package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/matthieuc/gpiolink/core/metrics"
)

// PromSink records agent events in Prometheus metrics.
type PromSink struct {
	buttons  *prometheus.CounterVec
	leds     *prometheus.CounterVec
	latency  prometheus.Histogram
	brokerUp prometheus.Gauge
	benchMPS prometheus.Gauge
}

// NewPromSink registers agent metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buttons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpiolink_button_events_total",
		Help: "Total number of published button state changes",
	}, []string{"pin", "pressed"})
	leds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpiolink_led_commands_total",
		Help: "Total number of LED commands handled",
	}, []string{"action", "accepted"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpiolink_publish_latency_seconds",
		Help:    "Broker round trip of a single publish",
		Buckets: prometheus.DefBuckets,
	})
	brokerUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gpiolink_broker_up",
		Help: "1 when the supervised broker is running",
	})
	benchMPS := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gpiolink_bench_messages_per_second",
		Help: "Throughput measured by the last benchmark run",
	})

	if err := reg.Register(buttons); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			buttons = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(leds); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			leds = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(brokerUp); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			brokerUp = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(benchMPS); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			benchMPS = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{buttons: buttons, leds: leds, latency: latency, brokerUp: brokerUp, benchMPS: benchMPS}, nil
}

// RecordButtonEvent increments the counter for a published state change.
func (s *PromSink) RecordButtonEvent(ev coremetrics.ButtonEventRecord) error {
	s.buttons.WithLabelValues(strconv.Itoa(ev.Event.Pin), strconv.FormatBool(ev.Event.Pressed)).Inc()
	return nil
}

// RecordLEDCommand increments the counter for a handled LED command.
func (s *PromSink) RecordLEDCommand(ev coremetrics.LEDCommandEvent) error {
	s.leds.WithLabelValues(ev.Action, strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}

// RecordPublishLatency feeds the latency histogram.
func (s *PromSink) RecordPublishLatency(recs []coremetrics.PublishLatency) error {
	for _, r := range recs {
		s.latency.Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordBrokerStatus reflects the supervisor state on the up gauge.
func (s *PromSink) RecordBrokerStatus(ev coremetrics.BrokerStatusEvent) error {
	if ev.Status == "running" {
		s.brokerUp.Set(1)
	} else {
		s.brokerUp.Set(0)
	}
	return nil
}

// RecordBench publishes the last measured throughput.
func (s *PromSink) RecordBench(ev coremetrics.BenchEvent) error {
	s.benchMPS.Set(ev.MsgPerSec)
	return nil
}
