package bench

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/matthieuc/gpiolink/core/logger"
	"github.com/matthieuc/gpiolink/core/metrics"
)

// Config controls the publish throughput benchmark.
type Config struct {
	// Count is the number of publishes to time.
	Count int `json:"count"`
	// PayloadSize is the size of the fixed payload in bytes.
	PayloadSize int `json:"payload_size"`
	// Topic receives the benchmark messages.
	Topic string `json:"topic"`
	// QoS for the benchmark publishes.
	QoS byte `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Count == 0 {
		c.Count = 1000
	}
	if c.PayloadSize == 0 {
		c.PayloadSize = 64
	}
	if c.Topic == "" {
		c.Topic = "gpiolink/bench"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.PayloadSize <= 0 {
		return fmt.Errorf("payload_size must be positive")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}

// Publisher is the publish surface the benchmark exercises.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
}

// Report summarises a benchmark run.
type Report struct {
	Count       int
	PayloadSize int
	Total       time.Duration
	Mean        time.Duration
	Min         time.Duration
	Max         time.Duration
	P95         time.Duration
	MsgPerSec   float64
	BytesPerSec float64
}

// Runner times a fixed number of publishes against a connected session.
type Runner struct {
	cfg  Config
	pub  Publisher
	sink metrics.MetricsSink
	log  logger.Logger
}

// NewRunner assembles a Runner. sink may be nil.
func NewRunner(cfg Config, pub Publisher, sink metrics.MetricsSink, log logger.Logger) *Runner {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Runner{cfg: cfg, pub: pub, sink: sink, log: log}
}

// Run publishes cfg.Count fixed-size payloads, timing each broker round
// trip, and returns the aggregated report. A publish failure aborts the run:
// a partial benchmark is not meaningful.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	payload := bytes.Repeat([]byte{'x'}, r.cfg.PayloadSize)
	samples := make([]float64, 0, r.cfg.Count)
	latencies := make([]metrics.PublishLatency, 0, r.cfg.Count)

	start := time.Now()
	for i := 0; i < r.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		t0 := time.Now()
		if err := r.pub.Publish(r.cfg.Topic, payload, r.cfg.QoS); err != nil {
			return Report{}, fmt.Errorf("publish %d/%d: %w", i+1, r.cfg.Count, err)
		}
		elapsed := time.Since(t0)
		samples = append(samples, elapsed.Seconds())
		latencies = append(latencies, metrics.PublishLatency{Topic: r.cfg.Topic, Latency: elapsed, Time: t0})
	}
	total := time.Since(start)

	report := summarize(samples, total, r.cfg)
	r.log.Infof("bench: %d msgs of %dB in %s (%.1f msg/s, mean %s, p95 %s)",
		report.Count, report.PayloadSize, report.Total.Round(time.Millisecond),
		report.MsgPerSec, report.Mean, report.P95)

	if rec, ok := r.sink.(metrics.PublishLatencyRecorder); ok {
		if err := rec.RecordPublishLatency(latencies); err != nil {
			r.log.Warnf("record publish latencies: %v", err)
		}
	}
	if rec, ok := r.sink.(metrics.BenchRecorder); ok {
		ev := metrics.BenchEvent{
			Count:       report.Count,
			PayloadSize: report.PayloadSize,
			MsgPerSec:   report.MsgPerSec,
			MeanLatency: report.Mean,
			Time:        start,
		}
		if err := rec.RecordBench(ev); err != nil {
			r.log.Warnf("record bench: %v", err)
		}
	}
	return report, nil
}

// summarize aggregates per-publish latency samples into a Report.
func summarize(samples []float64, total time.Duration, cfg Config) Report {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	rep := Report{
		Count:       len(samples),
		PayloadSize: cfg.PayloadSize,
		Total:       total,
	}
	if len(sorted) == 0 {
		return rep
	}
	rep.Mean = secondsToDuration(stat.Mean(sorted, nil))
	rep.Min = secondsToDuration(sorted[0])
	rep.Max = secondsToDuration(sorted[len(sorted)-1])
	rep.P95 = secondsToDuration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	if total > 0 {
		rep.MsgPerSec = float64(len(samples)) / total.Seconds()
		rep.BytesPerSec = rep.MsgPerSec * float64(cfg.PayloadSize)
	}
	return rep
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
