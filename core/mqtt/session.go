package mqtt

// MessageHandler is invoked for every message delivered on a subscription.
// Handlers run on the client's dispatch goroutines and should not block.
type MessageHandler func(topic string, payload []byte)

// Session represents a connected MQTT session capable of publishing payloads
// and subscribing to topic filters with wildcard support.
type Session interface {
	// Publish sends the payload to the given topic and blocks until the
	// broker acknowledges it at the requested QoS level.
	Publish(topic string, payload []byte, qos byte) error

	// Subscribe registers a handler for the topic filter. The subscription
	// is restored automatically after a reconnect.
	Subscribe(filter string, qos byte, handler MessageHandler) error

	// Close disconnects from the broker.
	Close()
}

// Hooks carries optional session lifecycle callbacks. Each field may be nil.
type Hooks struct {
	// OnConnect fires after the connection is established, including
	// after automatic reconnects.
	OnConnect func()
	// OnSubscribe fires once a subscription has been acknowledged by the
	// broker.
	OnSubscribe func(filter string)
	// OnConnectionLost fires when an established connection drops.
	OnConnectionLost func(err error)
}
