package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieuc/gpiolink/core/gpio"
	"github.com/matthieuc/gpiolink/core/model"
	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/internal/eventbus"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockSession records publishes and exposes registered handlers so tests can
// inject messages.
type mockSession struct {
	mu       sync.Mutex
	pubs     []published
	handlers map[string]coremqtt.MessageHandler
	failPub  bool
}

func newMockSession() *mockSession {
	return &mockSession{handlers: make(map[string]coremqtt.MessageHandler)}
}

func (m *mockSession) Publish(topic string, payload []byte, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPub {
		return fmt.Errorf("publish failed")
	}
	m.pubs = append(m.pubs, published{topic, payload, qos, false})
	return nil
}

func (m *mockSession) PublishRetained(topic string, payload []byte, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pubs = append(m.pubs, published{topic, payload, qos, true})
	return nil
}

func (m *mockSession) Subscribe(filter string, qos byte, handler coremqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[filter] = handler
	return nil
}

func (m *mockSession) onTopic(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.pubs {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func newTestAgent(t *testing.T, cfg Config, board gpio.Board, sess Session) *Agent {
	t.Helper()
	return New(cfg, board, sess, nil, nil, nil, 1, 1)
}

func TestPollOncePublishesOnChange(t *testing.T) {
	board := gpio.NewSimBoard(4, 4)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0, 1, 2}, StopPin: 3, TopicPrefix: "gpiolink"}, board, sess)

	a.pollOnce()
	assert.Empty(t, sess.pubs, "no change, no publish")

	require.NoError(t, board.SetPin(1, true))
	a.pollOnce()
	msgs := sess.onTopic("gpiolink/button/1/state")
	require.Len(t, msgs, 1)

	var ev model.ButtonEvent
	require.NoError(t, json.Unmarshal(msgs[0].payload, &ev))
	assert.Equal(t, 1, ev.Pin)
	assert.True(t, ev.Pressed)
	assert.NotEmpty(t, ev.MessageID)

	// No further change, no further message.
	a.pollOnce()
	assert.Len(t, sess.onTopic("gpiolink/button/1/state"), 1)

	// Release publishes exactly one more.
	require.NoError(t, board.SetPin(1, false))
	a.pollOnce()
	msgs = sess.onTopic("gpiolink/button/1/state")
	require.Len(t, msgs, 2)
	require.NoError(t, json.Unmarshal(msgs[1].payload, &ev))
	assert.False(t, ev.Pressed)
}

func TestPollOnceFlapWithinTick(t *testing.T) {
	board := gpio.NewSimBoard(2, 0)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, TopicPrefix: "gpiolink"}, board, sess)

	// Press and release between two polls: the level is unchanged at
	// sampling time, so nothing is published.
	require.NoError(t, board.SetPin(0, true))
	require.NoError(t, board.SetPin(0, false))
	a.pollOnce()
	assert.Empty(t, sess.onTopic("gpiolink/button/0/state"))
}

func TestRunStopPinTerminates(t *testing.T) {
	board := gpio.NewSimBoard(4, 4)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0, 1}, StopPin: 3, PollIntervalMS: 5, TopicPrefix: "gpiolink"}, board, sess)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	require.NoError(t, board.SetPin(3, true))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("agent did not stop on stop pin")
	}

	for _, pin := range []int{0, 1} {
		topic := fmt.Sprintf("gpiolink/button/%d/status", pin)
		msgs := sess.onTopic(topic)
		require.NotEmpty(t, msgs, "missing status for pin %d", pin)
		last := msgs[len(msgs)-1]
		assert.Equal(t, model.StatusOffline, string(last.payload))
		assert.True(t, last.retained)
	}
}

func TestRunContextCancel(t *testing.T) {
	board := gpio.NewSimBoard(2, 0)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, PollIntervalMS: 5, TopicPrefix: "gpiolink"}, board, sess)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Online statuses appear once the loop is up.
	assert.Eventually(t, func() bool {
		return len(sess.onTopic("gpiolink/button/0/status")) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("agent did not stop on cancel")
	}

	msgs := sess.onTopic("gpiolink/button/0/status")
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, model.StatusOnline, string(msgs[0].payload))
	assert.Equal(t, model.StatusOffline, string(msgs[len(msgs)-1].payload))
}

func TestRunSeedsInitialLevels(t *testing.T) {
	board := gpio.NewSimBoard(2, 0)
	require.NoError(t, board.SetPin(0, true))
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, PollIntervalMS: 5, TopicPrefix: "gpiolink"}, board, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = a.Run(ctx)

	// A high level at startup is not a change.
	assert.Empty(t, sess.onTopic("gpiolink/button/0/state"))
}

func TestLEDCommands(t *testing.T) {
	board := gpio.NewSimBoard(1, 3)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, TopicPrefix: "gpiolink"}, board, sess)

	a.handleLEDMessage("gpiolink/led/0/set", []byte("on"))
	on, err := board.LED(0)
	require.NoError(t, err)
	assert.True(t, on)

	a.handleLEDMessage("gpiolink/led/0/set", []byte("off"))
	on, _ = board.LED(0)
	assert.False(t, on)

	a.handleLEDMessage("gpiolink/led/1/set", []byte("toggle"))
	on, _ = board.LED(1)
	assert.True(t, on)

	a.handleLEDMessage("gpiolink/led/2/set", []byte(`{"action":"on"}`))
	on, _ = board.LED(2)
	assert.True(t, on)
}

func TestLEDCommandsDropped(t *testing.T) {
	board := gpio.NewSimBoard(1, 1)
	sess := newMockSession()
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, TopicPrefix: "gpiolink"}, board, sess)

	// None of these may panic or change LED state.
	a.handleLEDMessage("gpiolink/led/x/set", []byte("on"))
	a.handleLEDMessage("gpiolink/led/0/set", []byte("blink"))
	a.handleLEDMessage("gpiolink/led/0/set", []byte(`{"action":`))
	a.handleLEDMessage("gpiolink/led/9/set", []byte("on"))

	on, err := board.LED(0)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestButtonEventsOnBus(t *testing.T) {
	board := gpio.NewSimBoard(1, 0)
	sess := newMockSession()
	bus := eventbus.New()
	ch := bus.Subscribe()
	a := New(Config{Pins: []int{0}, StopPin: -1, TopicPrefix: "gpiolink"}, board, sess, bus, nil, nil, 0, 0)

	require.NoError(t, board.SetPin(0, true))
	a.pollOnce()

	select {
	case ev := <-ch:
		assert.Equal(t, 0, ev.Pin)
		assert.True(t, ev.Pressed)
	default:
		t.Fatalf("no event on bus")
	}
}

func TestPublishFailureKeepsRunning(t *testing.T) {
	board := gpio.NewSimBoard(1, 0)
	sess := newMockSession()
	sess.failPub = true
	a := newTestAgent(t, Config{Pins: []int{0}, StopPin: -1, TopicPrefix: "gpiolink"}, board, sess)

	require.NoError(t, board.SetPin(0, true))
	a.pollOnce()
	// The failed publish is logged and dropped; polling continues.
	assert.Empty(t, sess.onTopic("gpiolink/button/0/state"))
}
