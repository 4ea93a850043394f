package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthieuc/gpiolink/config"
	"github.com/matthieuc/gpiolink/core/agent"
	"github.com/matthieuc/gpiolink/core/gpio"
	coremetrics "github.com/matthieuc/gpiolink/core/metrics"
	"github.com/matthieuc/gpiolink/core/model"
	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/infra/logger"
	"github.com/matthieuc/gpiolink/infra/metrics"
	"github.com/matthieuc/gpiolink/infra/mqtt"
	"github.com/matthieuc/gpiolink/internal/broker"
	"github.com/matthieuc/gpiolink/internal/eventbus"
)

// Service orchestrates the broker supervisor, the MQTT session and the agent.
type Service struct {
	cfg   *config.Config
	board gpio.Board
	sup   *broker.Supervisor
	bus   eventbus.EventBus
	sink  coremetrics.MetricsSink
	log   logger.Logger
}

// New assembles a Service from the configuration. The broker process and the
// MQTT session are only started by Run.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	sink, err := BuildSink(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:   cfg,
		board: gpio.NewSimBoard(cfg.GPIO.Inputs, cfg.GPIO.LEDs),
		bus:   eventbus.New(),
		sink:  sink,
		log:   logg,
	}

	// Metrics consume button events off the bus, keeping the agent loop
	// decoupled from sink latency.
	go svc.recordButtonEvents()

	if cfg.Broker.Enabled {
		sup := broker.NewSupervisor(cfg.Broker, logger.New("broker"))
		sup.OnStatus = func(st broker.Status) {
			if rec, ok := sink.(coremetrics.BrokerStatusRecorder); ok {
				if err := rec.RecordBrokerStatus(coremetrics.BrokerStatusEvent{Status: string(st), Time: time.Now()}); err != nil {
					logg.Warnf("record broker status: %v", err)
				}
			}
		}
		svc.sup = sup
	}
	return svc, nil
}

// BuildSink assembles the configured metrics sinks into a single one.
func BuildSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

// SessionConfig returns the MQTT configuration the agent connects with,
// pointed at the supervised broker when one is enabled and carrying an LWT
// so subscribers observe ungraceful exits.
func (s *Service) SessionConfig() mqtt.Config {
	mqttCfg := s.cfg.MQTT
	if s.sup != nil {
		mqttCfg.Broker = s.sup.Addr()
	}
	if mqttCfg.LWTTopic == "" {
		mqttCfg.LWTTopic = s.cfg.Agent.TopicPrefix + "/agent/status"
		mqttCfg.LWTPayload = model.StatusOffline
		mqttCfg.LWTRetain = true
	}
	return mqttCfg
}

// Run starts everything and blocks until the context is cancelled or the
// agent's stop pin fires.
func (s *Service) Run(ctx context.Context) error {
	if s.sup != nil {
		if err := s.sup.Open(ctx); err != nil {
			return fmt.Errorf("open broker: %w", err)
		}
		defer func() {
			if err := s.sup.Close(); err != nil {
				s.log.Errorf("close broker: %v", err)
			}
		}()
	}

	mqttCfg := s.SessionConfig()
	hooks := coremqtt.Hooks{
		OnConnect:   func() { s.log.Infof("session connected to %s", mqttCfg.Broker) },
		OnSubscribe: func(filter string) { s.log.Infof("subscribed to %s", filter) },
	}
	sess, err := mqtt.NewPahoSession(mqttCfg, hooks)
	if err != nil {
		return fmt.Errorf("mqtt session: %w", err)
	}
	defer sess.Close()

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	ag := agent.New(s.cfg.Agent, s.board, sess, s.bus, s.sink, logger.New("agent"),
		mqttCfg.QoSFor("button"), mqttCfg.QoSFor("led"))
	err = ag.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// recordButtonEvents forwards button events from the bus into the metrics
// sink. Runs until the bus is closed.
func (s *Service) recordButtonEvents() {
	for ev := range s.bus.Subscribe() {
		rec := coremetrics.ButtonEventRecord{
			Event:     ev,
			Topic:     agent.ButtonStateTopic(s.cfg.Agent.TopicPrefix, ev.Pin),
			Component: "agent",
		}
		if err := s.sink.RecordButtonEvent(rec); err != nil {
			s.log.Warnf("record button event: %v", err)
		}
	}
}

// Board exposes the underlying board, used by development tooling to drive
// the simulated inputs.
func (s *Service) Board() gpio.Board { return s.board }

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
