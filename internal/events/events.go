// Package events публикует события жизненного цикла заказов.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// EventType определяет тип события.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderCanceled      EventType = "order.canceled"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// DefaultTopic — топик событий заказов по умолчанию.
const DefaultTopic = "sapataria.order.events"

// OrderEvent представляет событие заказа.
type OrderEvent struct {
	EventID        string    `json:"event_id"`
	EventType      EventType `json:"event_type"`
	OrderID        int64     `json:"order_id"`
	OwnerID        int64     `json:"owner_id"`
	ActorID        int64     `json:"actor_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewOrderEvent создаёт событие для заказа o, вызванное actorID.
func NewOrderEvent(eventType EventType, o *model.Order, actorID int64, previous model.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		OrderID:        o.ID,
		OwnerID:        o.OwnerID,
		ActorID:        actorID,
		PreviousStatus: string(previous),
		Status:         string(o.Status),
		OccurredAt:     at.UTC(),
	}
}

// Publisher отправляет события наружу.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher отбрасывает события; используется, когда брокер не настроен.
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }

// Close ничего не делает.
func (NopPublisher) Close() error { return nil }
