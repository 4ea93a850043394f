package metrics

import coremetrics "github.com/matthieuc/gpiolink/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordButtonEvent forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordButtonEvent(ev coremetrics.ButtonEventRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordButtonEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordLEDCommand forwards LED command events when supported by the sink.
func (m *MultiSink) RecordLEDCommand(ev coremetrics.LEDCommandEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.LEDCommandRecorder); ok {
			if err := rec.RecordLEDCommand(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPublishLatency forwards latency batches when supported by the sink.
func (m *MultiSink) RecordPublishLatency(recs []coremetrics.PublishLatency) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PublishLatencyRecorder); ok {
			if err := rec.RecordPublishLatency(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBrokerStatus forwards supervisor transitions when supported by the sink.
func (m *MultiSink) RecordBrokerStatus(ev coremetrics.BrokerStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.BrokerStatusRecorder); ok {
			if err := rec.RecordBrokerStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBench forwards benchmark summaries when supported by the sink.
func (m *MultiSink) RecordBench(ev coremetrics.BenchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.BenchRecorder); ok {
			if err := rec.RecordBench(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
