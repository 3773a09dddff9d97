// Package nsq adapts the NSQ message bus for change-notification intake
// and downstream publishing.
package nsq

import (
	"fmt"

	gonsq "github.com/nsqio/go-nsq"
	"github.com/rs/zerolog"
)

// Producer publishes serialized messages to NSQ topics.
type Producer struct {
	producer *gonsq.Producer
	logger   zerolog.Logger
}

// NewProducer creates a producer connected to one nsqd.
func NewProducer(address string, logger zerolog.Logger) (*Producer, error) {
	producer, err := gonsq.NewProducer(address, gonsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("creating nsq producer: %w", err)
	}

	if err := producer.Ping(); err != nil {
		return nil, fmt.Errorf("pinging nsqd at %s: %w", address, err)
	}

	return &Producer{producer: producer, logger: logger}, nil
}

// Publish sends one message to a topic.
func (p *Producer) Publish(topic string, payload []byte) error {
	if err := p.producer.Publish(topic, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("message published")

	return nil
}

// Stop gracefully stops the producer.
func (p *Producer) Stop() {
	p.producer.Stop()
}
