package eventbus

import (
	"context"
	"fmt"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"

	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
)

// Metadata keys set on every pub/sub message.
const (
	MetadataRoutingKey = "routing_key"
	MetadataMessageID  = "message_id"
)

// PubSubDispatcher publishes through a Go CDK topic, so any driver registered for
// the URL scheme (rabbit://, mem://) can carry outbound events.
type PubSubDispatcher struct {
	topic *pubsub.Topic
}

// OpenPubSubDispatcher opens the topic at url.
func OpenPubSubDispatcher(ctx context.Context, url string) (*PubSubDispatcher, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open topic %s: %w", url, err)
	}
	return NewPubSubDispatcher(topic), nil
}

// NewPubSubDispatcher wraps an already opened topic.
func NewPubSubDispatcher(topic *pubsub.Topic) *PubSubDispatcher {
	return &PubSubDispatcher{topic: topic}
}

// Dispatch sends msg; the routing key and message id travel as metadata.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, msg outboxDomain.Message) error {
	err := d.topic.Send(ctx, &pubsub.Message{
		Body: msg.Payload,
		Metadata: map[string]string{
			MetadataRoutingKey: msg.RoutingKey,
			MetadataMessageID:  msg.ID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message %s: %w", msg.ID, err)
	}
	return nil
}

// Close flushes and shuts the topic down.
func (d *PubSubDispatcher) Close(ctx context.Context) error {
	return d.topic.Shutdown(ctx)
}
