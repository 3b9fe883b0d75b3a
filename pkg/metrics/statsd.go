package metrics

import (
	"fmt"

	"github.com/cactus/go-statsd-client/v5/statsd"
)

// Statsd mirrors the daemon's key counters to an external statsd collector.
// A nil *Statsd (collector not configured) is valid and does nothing.
type Statsd struct {
	client statsd.Statter
}

func NewStatsd(address, prefix string) (*Statsd, error) {
	if address == "" {
		return nil, nil
	}

	client, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address: address,
		Prefix:  prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return &Statsd{client: client}, nil
}

func (s *Statsd) IncConnections() {
	if s == nil {
		return
	}
	_ = s.client.Inc("connections", 1, 1.0)
}

func (s *Statsd) IncLines() {
	if s == nil {
		return
	}
	_ = s.client.Inc("lines", 1, 1.0)
}

func (s *Statsd) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
