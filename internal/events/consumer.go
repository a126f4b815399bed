package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// ConsumerManager creates durable pull consumers. CreateOrUpdate keeps the
// call idempotent across restarts.
type ConsumerManager struct {
	js jetstream.JetStream
}

func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// EnsureConsumer returns the durable consumer named name on stream, creating
// it if it does not exist yet. Acks are explicit so a failed handler leaves
// the message for redelivery.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, stream, name, filterSubject string) (jetstream.Consumer, error) {
	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on stream %s: %w", name, stream, err)
	}
	return consumer, nil
}
