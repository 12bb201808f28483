package outbox

import (
	"fmt"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// TopicResolver maps event types to the Pub/Sub topic they are relayed to.
type TopicResolver struct {
	topics map[enums.OutboxEventType]string
}

func NewTopicResolver(cfg config.PubSubConfig) (*TopicResolver, error) {
	if cfg.VoucherEventsTopic == "" {
		return nil, fmt.Errorf("voucher events topic is required")
	}
	return &TopicResolver{topics: map[enums.OutboxEventType]string{
		enums.EventVoucherIssued:   cfg.VoucherEventsTopic,
		enums.EventVoucherRedeemed: cfg.VoucherEventsTopic,
	}}, nil
}

// Resolve returns the topic for eventType or an error for unmapped types.
func (r *TopicResolver) Resolve(eventType enums.OutboxEventType) (string, error) {
	topic, ok := r.topics[eventType]
	if !ok {
		return "", fmt.Errorf("no topic registered for %s", eventType)
	}
	return topic, nil
}
