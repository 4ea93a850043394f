package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/matthieuc/gpiolink/core/metrics"
	"github.com/matthieuc/gpiolink/infra/logger"
)

// InfluxSink writes agent events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordButtonEvent writes a button state change point.
func (s *InfluxSink) RecordButtonEvent(ev coremetrics.ButtonEventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("button_event").
		AddTag("pin", strconv.Itoa(ev.Event.Pin)).
		AddTag("component", ev.Component).
		AddField("pressed", ev.Event.Pressed).
		SetTime(ev.Event.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLEDCommand writes a handled LED command point.
func (s *InfluxSink) RecordLEDCommand(ev coremetrics.LEDCommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("led_command").
		AddTag("led", strconv.Itoa(ev.LED)).
		AddTag("action", ev.Action).
		AddField("accepted", ev.Accepted).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBrokerStatus writes a supervisor transition point.
func (s *InfluxSink) RecordBrokerStatus(ev coremetrics.BrokerStatusEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("broker_status").
		AddTag("status", ev.Status).
		AddField("value", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBench writes a benchmark summary point.
func (s *InfluxSink) RecordBench(ev coremetrics.BenchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("bench_run").
		AddField("count", ev.Count).
		AddField("payload_size", ev.PayloadSize).
		AddField("msg_per_sec", ev.MsgPerSec).
		AddField("mean_latency_ms", float64(ev.MeanLatency)/float64(time.Millisecond)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
