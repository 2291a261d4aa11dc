// Package notify consumes order lifecycle events and keeps the per-code
// status cache in Redis warm, so the tracking endpoint can answer without
// hitting the document store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/panzaverde/storefront/internal/kafka"
	"github.com/panzaverde/storefront/internal/orders"
	"github.com/panzaverde/storefront/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent is wired as the consumer handler for the orders topic.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	// dedup by event_id so redelivered messages are no-ops
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cacheStatus(ctx, p.Code, orders.StatusPending, orders.StatusPending.Label(), env); err != nil {
			return err
		}
		log.Printf("order %s placed, total %s", p.Code, p.Total)

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cacheStatus(ctx, p.Code, p.Status, p.Comment, env); err != nil {
			return err
		}
		log.Printf("order %s moved to %s", p.Code, p.Status)

	default:
		// unknown event type, skip
		return nil
	}

	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}

type cachedStatus struct {
	Status    orders.Status `json:"status"`
	Comment   string        `json:"comment,omitempty"`
	UpdatedAt string        `json:"updated_at"`
}

func (s *Service) cacheStatus(ctx context.Context, code string, status orders.Status, comment string, env orders.Envelope) error {
	b, err := json.Marshal(cachedStatus{
		Status:    status,
		Comment:   comment,
		UpdatedAt: env.OccurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, code)
	return s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
