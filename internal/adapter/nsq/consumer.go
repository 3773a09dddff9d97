package nsq

import (
	"fmt"

	gonsq "github.com/nsqio/go-nsq"
	"github.com/rs/zerolog"
)

// MessageHandler processes one raw NSQ message body. A returned error
// requeues the message.
type MessageHandler func(body []byte) error

// Consumer subscribes a handler to one topic/channel pair.
type Consumer struct {
	consumer *gonsq.Consumer
	logger   zerolog.Logger
}

// NewConsumer creates a consumer. Connect it with ConnectToNSQD or
// ConnectToLookupd afterwards.
func NewConsumer(topic, channel string, maxInFlight int, handler MessageHandler, logger zerolog.Logger) (*Consumer, error) {
	cfg := gonsq.NewConfig()
	if maxInFlight > 0 {
		cfg.MaxInFlight = maxInFlight
	}

	consumer, err := gonsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating nsq consumer for %s/%s: %w", topic, channel, err)
	}

	consumer.AddHandler(gonsq.HandlerFunc(func(message *gonsq.Message) error {
		if err := handler(message.Body); err != nil {
			logger.Error().
				Err(err).
				Str("topic", topic).
				Uint16("attempts", message.Attempts).
				Msg("message handling failed, requeueing")

			return err
		}

		return nil
	}))

	return &Consumer{consumer: consumer, logger: logger}, nil
}

// ConnectToNSQD connects directly to one nsqd.
func (c *Consumer) ConnectToNSQD(address string) error {
	if err := c.consumer.ConnectToNSQD(address); err != nil {
		return fmt.Errorf("connecting to nsqd at %s: %w", address, err)
	}

	return nil
}

// ConnectToLookupd connects through nsqlookupd instances.
func (c *Consumer) ConnectToLookupd(addresses []string) error {
	for _, addr := range addresses {
		if err := c.consumer.ConnectToNSQLookupd(addr); err != nil {
			return fmt.Errorf("connecting to nsqlookupd at %s: %w", addr, err)
		}
	}

	return nil
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() {
	c.consumer.Stop()
	<-c.consumer.StopChan
}
