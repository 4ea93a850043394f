package metrics

import (
	"time"

	"github.com/matthieuc/gpiolink/core/model"
)

// ButtonEventRecord captures a published input state change.
type ButtonEventRecord struct {
	Event     model.ButtonEvent
	Topic     string
	Component string
}

// MetricsSink records button events for observability purposes.
type MetricsSink interface {
	RecordButtonEvent(ev ButtonEventRecord) error
}

// LEDCommandEvent captures a received LED command and its outcome.
type LEDCommandEvent struct {
	LED      int
	Action   string
	Accepted bool
	Time     time.Time
}

// LEDCommandRecorder records LED commands handled by the agent.
type LEDCommandRecorder interface {
	RecordLEDCommand(ev LEDCommandEvent) error
}

// PublishLatency captures the broker round trip of a single publish.
type PublishLatency struct {
	Topic   string
	Latency time.Duration
	Time    time.Time
}

// PublishLatencyRecorder records publish round-trip latencies.
type PublishLatencyRecorder interface {
	RecordPublishLatency(recs []PublishLatency) error
}

// BrokerStatusEvent captures a supervised broker state transition.
type BrokerStatusEvent struct {
	Status string
	Time   time.Time
}

// BrokerStatusRecorder records broker supervisor transitions.
type BrokerStatusRecorder interface {
	RecordBrokerStatus(ev BrokerStatusEvent) error
}

// BenchEvent summarises a throughput benchmark run.
type BenchEvent struct {
	Count       int
	PayloadSize int
	MsgPerSec   float64
	MeanLatency time.Duration
	Time        time.Time
}

// BenchRecorder records benchmark summaries.
type BenchRecorder interface {
	RecordBench(ev BenchEvent) error
}

// NopSink discards every record.
type NopSink struct{}

// RecordButtonEvent implements MetricsSink.
func (NopSink) RecordButtonEvent(ButtonEventRecord) error { return nil }
