package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TimeoutMS  int             `json:"timeout_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// pahoClient is the subset of paho.Client the session uses, extracted for
// testability.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	filter  string
	qos     byte
	handler coremqtt.MessageHandler
}

// PahoSession implements core/mqtt.Session using Eclipse Paho.
type PahoSession struct {
	cli   pahoClient
	hooks coremqtt.Hooks

	mu   sync.Mutex
	subs []subscription

	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoSession connects to the MQTT broker and returns a ready session.
// Hook callbacks fire on connect, subscribe acknowledgment and connection
// loss; any of them may be nil.
func NewPahoSession(cfg Config, hooks coremqtt.Hooks) (*PahoSession, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_session")
	s := &PahoSession{
		hooks:      hooks,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:    time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if s.backoff <= 0 {
		s.backoff = 100 * time.Millisecond
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		s.restoreSubscriptions()
		if s.hooks.OnConnect != nil {
			s.hooks.OnConnect()
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		if s.hooks.OnConnectionLost != nil {
			s.hooks.OnConnectionLost(err)
		}
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	// Assign before Connect: paho fires OnConnect from its own goroutine, and
	// restoreSubscriptions reads the client under the same lock.
	s.mu.Lock()
	s.cli = c
	s.mu.Unlock()
	token := c.Connect()
	if !token.WaitTimeout(s.timeout) {
		return nil, coremqtt.ErrPublishTimeout
	}
	if token.Error() != nil {
		return nil, token.Error()
	}
	return s, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// Publish sends the payload to the topic, retrying with exponential backoff
// on failure.
func (s *PahoSession) Publish(topic string, payload []byte, qos byte) error {
	var publishErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		token := s.cli.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(s.timeout) {
			publishErr = coremqtt.ErrPublishTimeout
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			return nil
		}
		s.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt == s.maxRetries {
			break
		}
		time.Sleep(s.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// PublishRetained sends a retained message so late subscribers observe the
// last known state.
func (s *PahoSession) PublishRetained(topic string, payload []byte, qos byte) error {
	token := s.cli.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(s.timeout) {
		return coremqtt.ErrPublishTimeout
	}
	return token.Error()
}

// Subscribe registers the handler for the topic filter and waits for the
// broker acknowledgment. The subscription is tracked and restored after a
// reconnect.
func (s *PahoSession) Subscribe(filter string, qos byte, handler coremqtt.MessageHandler) error {
	cb := func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	token := s.cli.Subscribe(filter, qos, cb)
	if !token.WaitTimeout(s.timeout) {
		return coremqtt.ErrSubscribeTimeout
	}
	if token.Error() != nil {
		return token.Error()
	}
	s.mu.Lock()
	s.subs = append(s.subs, subscription{filter: filter, qos: qos, handler: handler})
	s.mu.Unlock()
	if s.hooks.OnSubscribe != nil {
		s.hooks.OnSubscribe(filter)
	}
	return nil
}

// restoreSubscriptions replays tracked subscriptions after a reconnect.
// On the initial connect nothing is tracked yet and this is a no-op.
func (s *PahoSession) restoreSubscriptions() {
	s.mu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	cli := s.cli
	s.mu.Unlock()
	if cli == nil || len(subs) == 0 {
		return
	}
	for _, sub := range subs {
		cb := func(h coremqtt.MessageHandler) paho.MessageHandler {
			return func(_ paho.Client, msg paho.Message) {
				h(msg.Topic(), msg.Payload())
			}
		}(sub.handler)
		if token := cli.Subscribe(sub.filter, sub.qos, cb); token.Wait() && token.Error() != nil {
			s.logger.Errorf("resubscribe %s: %v", sub.filter, token.Error())
		}
	}
}

// QoSFor returns the configured QoS for a purpose key, defaulting to 0.
func (c Config) QoSFor(purpose string) byte {
	if q, ok := c.QoS[purpose]; ok {
		return q
	}
	return 0
}

// Close gracefully disconnects from the MQTT broker.
func (s *PahoSession) Close() {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}
