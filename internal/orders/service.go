package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/panzaverde/storefront/internal/catalog"
	"github.com/panzaverde/storefront/internal/docstore"
	kafkax "github.com/panzaverde/storefront/internal/kafka"
)

// Publisher is the slice of the kafka producer the service needs; nil
// disables event publishing.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	store       docstore.Store
	catalog     *catalog.Service
	producer    Publisher
	serviceName string
}

func NewService(store docstore.Store, cat *catalog.Service, producer Publisher, serviceName string) *Service {
	return &Service{
		store:       store,
		catalog:     cat,
		producer:    producer,
		serviceName: serviceName,
	}
}

// PlaceOrder runs the stock-safe placement sequence: advisory availability
// check, order write with status pending, then the atomic stock decrement.
// The caller-supplied total is trusted (it is only logged when it disagrees
// with the computed sum). There is no dedup: submitting the same cart twice
// creates two orders and decrements stock twice.
func (s *Service) PlaceOrder(ctx context.Context, customer CustomerInfo, items []LineItem, total decimal.Decimal) (Order, error) {
	if len(items) == 0 {
		return Order{}, errors.New("order has no items")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
	}

	avail, err := s.catalog.CheckAvailability(ctx, toItemRequests(items))
	if err != nil {
		return Order{}, fmt.Errorf("catalog.CheckAvailability: %w", err)
	}
	if !avail.HasStock {
		return Order{}, &InsufficientStockError{Shortfalls: avail.Shortfalls}
	}

	if computed := ComputeTotal(items); !computed.Equal(total) {
		log.Printf("order total mismatch: client sent %s, computed %s", total, computed)
	}

	now := time.Now().UTC()
	order := Order{
		Code:         NewCode(),
		CustomerInfo: customer,
		Items:        items,
		Total:        total,
		Status:       StatusPending,
		StatusHistory: []StatusEntry{
			{Status: StatusPending, Date: now, Comment: StatusPending.Label()},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := s.store.Add(ctx, CollectionOrders, order)
	if err != nil {
		return Order{}, fmt.Errorf("store.Add: %w", err)
	}
	order.ID = id

	if err := s.decrementStock(ctx, items); err != nil {
		// the pending order references stock that was never reserved;
		// best-effort compensation keeps the books readable
		if _, cancelErr := s.UpdateStatus(ctx, id, StatusCancelled, "stock could not be reserved"); cancelErr != nil {
			log.Printf("cancel order %s after failed decrement: %v", order.Code, cancelErr)
		}
		return Order{}, err
	}

	s.publishPlaced(order)
	return order, nil
}

// UpdateStatus appends a history entry and moves the order to status. Any
// known status is accepted regardless of the current one; CanTransition is
// not enforced here.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, comment string) (Order, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Order{}, err
	}

	doc, err := s.store.Get(ctx, CollectionOrders, orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("store.Get: %w", err)
	}

	order, err := decodeOrder(doc)
	if err != nil {
		return Order{}, err
	}

	if comment == "" {
		comment = status.Label()
	}
	now := time.Now().UTC()
	order.StatusHistory = append(order.StatusHistory, StatusEntry{
		Status: status, Date: now, Comment: comment,
	})
	order.Status = status
	order.UpdatedAt = now

	if err := s.store.Update(ctx, CollectionOrders, orderID, order); err != nil {
		return Order{}, fmt.Errorf("store.Update: %w", err)
	}

	s.publishStatusChanged(order, comment, now)
	return order, nil
}

// OrderByCode looks an order up by its customer-facing code. A missing code
// is (nil, nil), not an error.
func (s *Service) OrderByCode(ctx context.Context, code string) (*Order, error) {
	docs, err := s.store.Query(ctx, CollectionOrders, docstore.Where{Field: "code", Value: code})
	if err != nil {
		return nil, fmt.Errorf("store.Query: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	order, err := decodeOrder(docs[0])
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Orders lists every order, newest first.
func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	docs, err := s.store.List(ctx, CollectionOrders)
	if err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}
	return decodeOrders(docs)
}

func (s *Service) OrdersByStatus(ctx context.Context, status Status) ([]Order, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	docs, err := s.store.Query(ctx, CollectionOrders, docstore.Where{Field: "status", Value: status})
	if err != nil {
		return nil, fmt.Errorf("store.Query: %w", err)
	}
	return decodeOrders(docs)
}

func (s *Service) publishPlaced(order Order) {
	s.publish(EventOrderPlaced, order.Code, kafkax.MustMarshal(OrderPlacedPayload{
		OrderID: order.ID,
		Code:    order.Code,
		Items:   order.Items,
		Total:   order.Total,
	}))
}

func (s *Service) publishStatusChanged(order Order, comment string, at time.Time) {
	s.publish(EventOrderStatusChanged, order.Code, kafkax.MustMarshal(OrderStatusChangedPayload{
		OrderID:   order.ID,
		Code:      order.Code,
		Status:    order.Status,
		Comment:   comment,
		ChangedAt: at,
	}))
}

func (s *Service) publish(eventType, code string, payload []byte) {
	if s.producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.serviceName,
		CorrelationID: code,
		Payload:       payload,
	}
	s.producer.Publish(PartitionKey(code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func toItemRequests(items []LineItem) []catalog.ItemRequest {
	out := make([]catalog.ItemRequest, 0, len(items))
	for _, it := range items {
		out = append(out, catalog.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func decodeOrder(doc docstore.Document) (Order, error) {
	var o Order
	if err := doc.DataTo(&o); err != nil {
		return Order{}, fmt.Errorf("doc.DataTo: %w", err)
	}
	o.ID = doc.ID
	return o, nil
}

func decodeOrders(docs []docstore.Document) ([]Order, error) {
	out := make([]Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
