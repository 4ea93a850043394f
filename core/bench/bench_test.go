package bench

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieuc/gpiolink/core/metrics"
)

type countingPublisher struct {
	mu    sync.Mutex
	count int
	size  int
	topic string
	fail  int // fail the nth publish (1-based), 0 disables
}

func (p *countingPublisher) Publish(topic string, payload []byte, qos byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	p.size = len(payload)
	p.topic = topic
	if p.fail > 0 && p.count == p.fail {
		return fmt.Errorf("boom")
	}
	return nil
}

type recordingSink struct {
	metrics.NopSink
	latencies []metrics.PublishLatency
	benches   []metrics.BenchEvent
}

func (s *recordingSink) RecordPublishLatency(recs []metrics.PublishLatency) error {
	s.latencies = append(s.latencies, recs...)
	return nil
}

func (s *recordingSink) RecordBench(ev metrics.BenchEvent) error {
	s.benches = append(s.benches, ev)
	return nil
}

func TestRunPublishesFixedCount(t *testing.T) {
	pub := &countingPublisher{}
	sink := &recordingSink{}
	r := NewRunner(Config{Count: 50, PayloadSize: 16, Topic: "bench/t"}, pub, sink, nil)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, pub.count)
	assert.Equal(t, 16, pub.size)
	assert.Equal(t, "bench/t", pub.topic)
	assert.Equal(t, 50, rep.Count)
	assert.Positive(t, rep.MsgPerSec)
	assert.Positive(t, rep.Total)
	assert.GreaterOrEqual(t, rep.Max, rep.Min)

	assert.Len(t, sink.latencies, 50)
	require.Len(t, sink.benches, 1)
	assert.Equal(t, 50, sink.benches[0].Count)
}

func TestRunAbortsOnPublishError(t *testing.T) {
	pub := &countingPublisher{fail: 3}
	r := NewRunner(Config{Count: 10, PayloadSize: 8, Topic: "bench/t"}, pub, nil, nil)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, pub.count)
}

func TestRunRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &countingPublisher{}
	r := NewRunner(Config{Count: 10, PayloadSize: 8, Topic: "bench/t"}, pub, nil, nil)

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pub.count)
}

func TestSummarize(t *testing.T) {
	samples := []float64{0.001, 0.002, 0.003, 0.004}
	rep := summarize(samples, 100*time.Millisecond, Config{PayloadSize: 10})

	assert.Equal(t, 4, rep.Count)
	assert.Equal(t, 1*time.Millisecond, rep.Min)
	assert.Equal(t, 4*time.Millisecond, rep.Max)
	assert.InDelta(t, (2500 * time.Microsecond).Seconds(), rep.Mean.Seconds(), 1e-9)
	assert.InDelta(t, 40.0, rep.MsgPerSec, 1e-9)
	assert.InDelta(t, 400.0, rep.BytesPerSec, 1e-9)
	assert.GreaterOrEqual(t, rep.P95, rep.Mean)
	assert.LessOrEqual(t, rep.P95, rep.Max)
}

func TestSummarizeEmpty(t *testing.T) {
	rep := summarize(nil, 0, Config{PayloadSize: 10})
	assert.Zero(t, rep.Count)
	assert.Zero(t, rep.MsgPerSec)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, 1000, cfg.Count)
	assert.Equal(t, 64, cfg.PayloadSize)
	assert.Equal(t, "gpiolink/bench", cfg.Topic)
	assert.NoError(t, cfg.Validate())

	assert.Error(t, Config{Count: -1, PayloadSize: 1, Topic: "t"}.Validate())
	assert.Error(t, Config{Count: 1, PayloadSize: 0, Topic: "t"}.Validate())
	assert.Error(t, Config{Count: 1, PayloadSize: 1}.Validate())
}
