package broker

import "context"

// Producer is the delivery side of the external sink. The dispatcher only
// sees this interface, so tests can substitute an in-memory sink.
type Producer interface {
	Publish(ctx context.Context, topic string, key, payload []byte) error
	Close() error
}
