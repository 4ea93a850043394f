package mqtt

import "errors"

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish before the configured timeout.
var ErrPublishTimeout = errors.New("timeout waiting for publish ack")

// ErrSubscribeTimeout is returned when a subscription is not acknowledged
// before the configured timeout.
var ErrSubscribeTimeout = errors.New("timeout waiting for subscribe ack")
