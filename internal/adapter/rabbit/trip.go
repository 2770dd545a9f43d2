package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/pkg/metrics"
	"github.com/addisride/dispatch/pkg/rabbit"
)

const (
	tripEventsExchange = "trip.events"
	serviceName        = "dispatch"
)

// TripEventPublisher fans trip lifecycle transitions out to the message
// broker for downstream consumers (analytics, passenger notifications).
type TripEventPublisher struct {
	client *rabbit.RabbitMQ
}

func NewTripEventPublisher(client *rabbit.RabbitMQ) (*TripEventPublisher, error) {
	if err := client.DeclareExchange(tripEventsExchange); err != nil {
		return nil, fmt.Errorf("trip publisher: declare exchange: %w", err)
	}
	return &TripEventPublisher{client: client}, nil
}

// PublishStatusChanged publishes a lifecycle transition with routing key
// trip.status.<status>.
func (p *TripEventPublisher) PublishStatusChanged(ctx context.Context, ev models.TripStatusChangedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("trip publisher: marshal: %w", err)
	}

	routingKey := "trip.status." + string(ev.Status)
	err = p.client.Publish(ctx, tripEventsExchange, routingKey, body)
	metrics.RecordRabbitMQPublish(serviceName, tripEventsExchange, err)
	if err != nil {
		return fmt.Errorf("trip publisher: publish: %w", err)
	}

	return nil
}
