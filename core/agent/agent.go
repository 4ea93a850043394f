package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/matthieuc/gpiolink/core/gpio"
	"github.com/matthieuc/gpiolink/core/logger"
	"github.com/matthieuc/gpiolink/core/metrics"
	"github.com/matthieuc/gpiolink/core/model"
	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/internal/eventbus"
)

// Session is the MQTT surface the agent needs: acknowledged publishes,
// retained status publishes and wildcard subscriptions.
type Session interface {
	Publish(topic string, payload []byte, qos byte) error
	PublishRetained(topic string, payload []byte, qos byte) error
	Subscribe(filter string, qos byte, handler coremqtt.MessageHandler) error
}

// Agent polls the watched input pins, publishes a ButtonEvent per observed
// change and drives LEDs from received commands.
type Agent struct {
	cfg   Config
	board gpio.Board
	sess  Session
	bus   eventbus.EventBus
	sink  metrics.MetricsSink
	log   logger.Logger

	buttonQoS byte
	ledQoS    byte

	last []bool
}

// New assembles an Agent. bus and sink may be nil.
func New(cfg Config, board gpio.Board, sess Session, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger, buttonQoS, ledQoS byte) *Agent {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Agent{
		cfg:       cfg,
		board:     board,
		sess:      sess,
		bus:       bus,
		sink:      sink,
		log:       log,
		buttonQoS: buttonQoS,
		ledQoS:    ledQoS,
		last:      make([]bool, len(cfg.Pins)),
	}
}

// Run subscribes to the LED command filter, announces the watched pins as
// online and polls until the context is cancelled or the stop pin reads
// true. On exit every watched pin is marked offline with a retained message.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.sess.Subscribe(LEDSetFilter(a.cfg.TopicPrefix), a.ledQoS, a.handleLEDMessage); err != nil {
		return err
	}

	for _, pin := range a.cfg.Pins {
		topic := ButtonStatusTopic(a.cfg.TopicPrefix, pin)
		if err := a.sess.PublishRetained(topic, []byte(model.StatusOnline), a.buttonQoS); err != nil {
			a.log.Errorf("publish online status for pin %d: %v", pin, err)
		}
	}

	// Seed last-observed values so startup levels do not count as changes.
	for i, pin := range a.cfg.Pins {
		v, err := a.board.ReadPin(pin)
		if err != nil {
			a.log.Errorf("read pin %d: %v", pin, err)
			continue
		}
		a.last[i] = v
	}

	ticker := time.NewTicker(time.Duration(a.cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.publishOffline()
			return ctx.Err()
		case <-ticker.C:
			a.pollOnce()
			if a.stopRequested() {
				a.log.Infof("stop pin %d active, shutting down", a.cfg.StopPin)
				a.publishOffline()
				return nil
			}
		}
	}
}

// pollOnce samples every watched pin and publishes one event per change.
func (a *Agent) pollOnce() {
	for i, pin := range a.cfg.Pins {
		v, err := a.board.ReadPin(pin)
		if err != nil {
			a.log.Errorf("read pin %d: %v", pin, err)
			continue
		}
		if v == a.last[i] {
			continue
		}
		a.last[i] = v
		a.publishChange(pin, v)
	}
}

func (a *Agent) publishChange(pin int, pressed bool) {
	ev := model.ButtonEvent{
		MessageID: uuid.NewString(),
		Pin:       pin,
		Pressed:   pressed,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		a.log.Errorf("marshal button event: %v", err)
		return
	}
	topic := ButtonStateTopic(a.cfg.TopicPrefix, pin)
	if err := a.sess.Publish(topic, payload, a.buttonQoS); err != nil {
		a.log.Errorf("publish button event for pin %d: %v", pin, err)
		return
	}
	a.log.Debugw("button event published", map[string]any{"pin": pin, "pressed": pressed})
	if a.bus != nil {
		a.bus.Publish(ev)
	}
}

func (a *Agent) stopRequested() bool {
	if a.cfg.StopPin < 0 {
		return false
	}
	v, err := a.board.ReadPin(a.cfg.StopPin)
	if err != nil {
		a.log.Errorf("read stop pin %d: %v", a.cfg.StopPin, err)
		return false
	}
	return v
}

// publishOffline marks every watched pin offline with a retained message so
// subscribers observe the shutdown even when they join later.
func (a *Agent) publishOffline() {
	for _, pin := range a.cfg.Pins {
		topic := ButtonStatusTopic(a.cfg.TopicPrefix, pin)
		if err := a.sess.PublishRetained(topic, []byte(model.StatusOffline), a.buttonQoS); err != nil {
			a.log.Errorf("publish offline status for pin %d: %v", pin, err)
		}
	}
}

// handleLEDMessage parses a command topic and payload and drives the LED.
// Malformed commands are logged and dropped.
func (a *Agent) handleLEDMessage(topic string, payload []byte) {
	led, err := LEDIndexFromTopic(topic)
	if err != nil {
		a.log.Warnf("drop led command: %v", err)
		return
	}
	action := string(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var cmd model.LEDCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			a.log.Warnf("drop led command on %s: %v", topic, err)
			a.recordLED(led, "invalid", false)
			return
		}
		action = cmd.Action
	}

	var applyErr error
	switch action {
	case model.ActionOn:
		applyErr = a.board.SetLED(led, true)
	case model.ActionOff:
		applyErr = a.board.SetLED(led, false)
	case model.ActionToggle:
		_, applyErr = a.board.ToggleLED(led)
	default:
		a.log.Warnf("drop led command on %s: unknown action %q", topic, action)
		a.recordLED(led, action, false)
		return
	}
	if applyErr != nil {
		a.log.Errorf("apply led command %s on led %d: %v", action, led, applyErr)
		a.recordLED(led, action, false)
		return
	}
	a.log.Debugw("led command applied", map[string]any{"led": led, "action": action})
	a.recordLED(led, action, true)
}

func (a *Agent) recordLED(led int, action string, accepted bool) {
	rec, ok := a.sink.(metrics.LEDCommandRecorder)
	if !ok {
		return
	}
	ev := metrics.LEDCommandEvent{LED: led, Action: action, Accepted: accepted, Time: time.Now()}
	if err := rec.RecordLEDCommand(ev); err != nil {
		a.log.Warnf("record led command: %v", err)
	}
}
