package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

const publishTimeout = 10 * time.Second

// Publisher emits funnel events to Pub/Sub. A nil topic disables publishing,
// so environments without GCP credentials still serve traffic.
type Publisher struct {
	topic *gcppubsub.Publisher
	logg  *logger.Logger
}

// NewPublisher builds a funnel event publisher. The topic may be nil.
func NewPublisher(topic *gcppubsub.Publisher, logg *logger.Logger) (*Publisher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Publisher{topic: topic, logg: logg}, nil
}

// Publish sends the event without blocking the caller. Delivery failures are
// logged and dropped; funnel writes never depend on the topic being up.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.topic == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding funnel event: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   event.EventID,
			"event_type": event.Type.String(),
		},
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	result := p.topic.Publish(publishCtx, msg)

	go func() {
		defer cancel()
		if _, err := result.Get(publishCtx); err != nil {
			logCtx := p.logg.WithFields(publishCtx, map[string]any{
				"event_id":   event.EventID,
				"event_type": event.Type.String(),
			})
			p.logg.Error(logCtx, "funnel event publish failed", err)
		}
	}()

	return nil
}
