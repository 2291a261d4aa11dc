package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TopicOrders carries every order lifecycle event. Partition key is the
// order code so all events of one order stay ordered.
const TopicOrders = "storefront.orders"

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`                 // e.g. "storefront-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order code
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID string          `json:"order_id"`
	Code    string          `json:"code"`
	Items   []LineItem      `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	Code      string    `json:"code"`
	Status    Status    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

func PartitionKey(code string) []byte { return []byte(code) }
