package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/docweave/weave/pkg/eventstream"
	"github.com/docweave/weave/pkg/eventstream/kafka"
	"github.com/docweave/weave/pkg/eventstream/nop"
	"github.com/docweave/weave/pkg/logger"
)

type NewPublisherOpts struct {
	// ProviderType is one of nop or kafka.
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	log := o.Logger
	if log == nil {
		log = logger.Nop()
	}

	switch o.ProviderType {
	case "nop", "":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		}, kafka.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		log.Debug("publishing session events to Kafka", "brokers", o.Brokers, "topic", o.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.ProviderType)
	}
}
