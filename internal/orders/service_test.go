package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panzaverde/storefront/internal/catalog"
	"github.com/panzaverde/storefront/internal/docstore"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *capturePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, value)
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

type fixture struct {
	store    *docstore.Memory
	svc      *Service
	events   *capturePublisher
	products map[string]string // name -> id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := docstore.NewMemory()
	events := &capturePublisher{}
	cat := catalog.NewService(store, nil)

	return &fixture{
		store:    store,
		svc:      NewService(store, cat, events, "storefront-test"),
		events:   events,
		products: make(map[string]string),
	}
}

func (f *fixture) seed(t *testing.T, name string, stock int, price int64) string {
	t.Helper()
	now := time.Now().UTC()
	id, err := f.store.Add(context.Background(), catalog.CollectionProducts, catalog.Product{
		Name:        name,
		Price:       decimal.NewFromInt(price),
		Category:    "libreria",
		Stock:       stock,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	f.products[name] = id
	return id
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	doc, err := f.store.Get(context.Background(), catalog.CollectionProducts, id)
	require.NoError(t, err)
	var p catalog.Product
	require.NoError(t, doc.DataTo(&p))
	return p.Stock
}

func randomCustomer() CustomerInfo {
	return CustomerInfo{
		Name:    gofakeit.Name(),
		Email:   gofakeit.Email(),
		Phone:   gofakeit.Phone(),
		Address: gofakeit.Address().Address,
	}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Cuaderno", 5, 850)

	items := []LineItem{{ProductID: id, Quantity: 3, UnitPrice: decimal.NewFromInt(850)}}
	order, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(2550))
	require.NoError(t, err)

	assert.Regexp(t, `^PV-\d{13}-[0-9A-Z]{4}$`, order.Code)
	assert.Equal(t, StatusPending, order.Status)
	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, StatusPending, order.StatusHistory[0].Status)
	assert.Equal(t, "order received", order.StatusHistory[0].Comment)
	assert.NotEmpty(t, order.ID)

	assert.Equal(t, 2, f.stock(t, id))
	assert.Equal(t, 1, f.events.count())

	// the persisted document matches what was returned
	stored, err := f.svc.OrderByCode(ctx, order.Code)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, order.ID, stored.ID)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(2550)))
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Compás", 2, 450)

	items := []LineItem{{ProductID: id, Quantity: 3, UnitPrice: decimal.NewFromInt(450)}}
	_, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(1350))

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortfalls, 1)
	assert.Equal(t, id, insufficient.Shortfalls[0].ProductID)
	assert.Equal(t, 2, insufficient.Shortfalls[0].Available)

	// nothing written: stock untouched, no order documents, no events
	assert.Equal(t, 2, f.stock(t, id))
	docs, err := f.store.List(ctx, CollectionOrders)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, f.events.count())
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	items := []LineItem{{ProductID: "ghost", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}}
	_, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(10))

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortfalls, 1)
	assert.Zero(t, insufficient.Shortfalls[0].Available)
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Goma", 10, 120)

	_, err := f.svc.PlaceOrder(ctx, randomCustomer(), nil, decimal.Zero)
	assert.EqualError(t, err, "order has no items")

	items := []LineItem{{ProductID: id, Quantity: 0, UnitPrice: decimal.NewFromInt(120)}}
	_, err = f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.Zero)
	assert.ErrorContains(t, err, "invalid quantity")
}

// Exactly one of N concurrent orders for the last unit may win; the rest
// fail inside the decrement transaction, never the store.
func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Tijeras", 1, 650)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items := []LineItem{{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(650)}}
			_, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(650))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		// losers fail at the decrement, or already at the pre-check if the
		// winner committed before they looked
		var decrement *StockDecrementError
		var insufficient *InsufficientStockError
		assert.True(t, errors.As(err, &decrement) || errors.As(err, &insufficient), "unexpected error: %v", err)
		lost++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, buyers-1, lost)
	assert.Equal(t, 0, f.stock(t, id))
}

// Two items where only the second would drive stock negative: neither
// product's stock changes.
func TestDecrementStockAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plenty := f.seed(t, "Cuaderno", 5, 850)
	scarce := f.seed(t, "Compás", 2, 450)

	items := []LineItem{
		{ProductID: plenty, Quantity: 1, UnitPrice: decimal.NewFromInt(850)},
		{ProductID: scarce, Quantity: 3, UnitPrice: decimal.NewFromInt(450)},
	}
	err := f.svc.decrementStock(ctx, items)

	var decrement *StockDecrementError
	require.ErrorAs(t, err, &decrement)
	assert.Equal(t, scarce, decrement.ProductID)
	assert.Equal(t, 2, decrement.Available)

	assert.Equal(t, 5, f.stock(t, plenty))
	assert.Equal(t, 2, f.stock(t, scarce))
}

func TestDecrementStockMergesDuplicateLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Lápiz", 10, 180)

	items := []LineItem{
		{ProductID: id, Quantity: 3, UnitPrice: decimal.NewFromInt(180)},
		{ProductID: id, Quantity: 4, UnitPrice: decimal.NewFromInt(180)},
	}
	require.NoError(t, f.svc.decrementStock(ctx, items))
	assert.Equal(t, 3, f.stock(t, id))
}

// The advisory pre-check is per line item, so a cart whose lines are
// individually satisfiable can still fail inside the transaction; the
// pending order is then compensated to cancelled.
func TestPlaceOrderCompensatesOnDecrementFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Marcadores", 5, 890)

	items := []LineItem{
		{ProductID: id, Quantity: 3, UnitPrice: decimal.NewFromInt(890)},
		{ProductID: id, Quantity: 3, UnitPrice: decimal.NewFromInt(890)},
	}
	_, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(5340))

	var decrement *StockDecrementError
	require.ErrorAs(t, err, &decrement)
	assert.Equal(t, 5, decrement.Available)
	assert.Equal(t, 6, decrement.Requested)

	// stock untouched, order left behind as cancelled
	assert.Equal(t, 5, f.stock(t, id))
	docs, err := f.store.List(ctx, CollectionOrders)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	order, err := decodeOrder(docs[0])
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)
	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, "stock could not be reserved", order.StatusHistory[1].Comment)
}

func TestUpdateStatusHistoryMonotonicity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Cuaderno", 5, 850)

	items := []LineItem{{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(850)}}
	placed, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(850))
	require.NoError(t, err)

	prev := len(placed.StatusHistory)
	for _, next := range []Status{StatusConfirmed, StatusPreparing, StatusShipped, StatusDelivered} {
		order, err := f.svc.UpdateStatus(ctx, placed.ID, next, "")
		require.NoError(t, err)

		assert.Equal(t, next, order.Status)
		assert.Greater(t, len(order.StatusHistory), prev)
		assert.Equal(t, next, order.StatusHistory[len(order.StatusHistory)-1].Status)
		assert.Equal(t, next.Label(), order.StatusHistory[len(order.StatusHistory)-1].Comment)
		prev = len(order.StatusHistory)
	}
}

func TestUpdateStatusWithComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Cuaderno", 5, 850)

	items := []LineItem{{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(850)}}
	placed, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(850))
	require.NoError(t, err)

	order, err := f.svc.UpdateStatus(ctx, placed.ID, StatusShipped, "out for delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, order.Status)
	last := order.StatusHistory[len(order.StatusHistory)-1]
	assert.Equal(t, "out for delivery", last.Comment)
}

func TestUpdateStatusErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(ctx, "missing", StatusShipped, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.UpdateStatus(ctx, "missing", Status("lost"), "")
	assert.ErrorContains(t, err, "unknown order status")
}

func TestOrderByCodeUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.svc.OrderByCode(ctx, "PV-0000000000000-XXXX")
	require.NoError(t, err)
	assert.Nil(t, order)
}

// placeOrder is deliberately not idempotent: resubmitting the same cart
// creates a second order and decrements stock again.
func TestPlaceOrderNoDedup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Cuaderno", 5, 850)

	customer := randomCustomer()
	items := []LineItem{{ProductID: id, Quantity: 2, UnitPrice: decimal.NewFromInt(850)}}
	total := decimal.NewFromInt(1700)

	first, err := f.svc.PlaceOrder(ctx, customer, items, total)
	require.NoError(t, err)
	second, err := f.svc.PlaceOrder(ctx, customer, items, total)
	require.NoError(t, err)

	assert.NotEqual(t, first.Code, second.Code)
	assert.Equal(t, 1, f.stock(t, id))
}

func TestOrdersByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.seed(t, "Cuaderno", 10, 850)

	items := []LineItem{{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(850)}}
	first, err := f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(850))
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(850))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, first.ID, StatusConfirmed, "")
	require.NoError(t, err)

	pending, err := f.svc.OrdersByStatus(ctx, StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	confirmed, err := f.svc.OrdersByStatus(ctx, StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	_, err = f.svc.OrdersByStatus(ctx, Status("lost"))
	assert.Error(t, err)

	all, err := f.svc.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPublishIsOptional(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	cat := catalog.NewService(store, nil)
	svc := NewService(store, cat, nil, "storefront-test")

	now := time.Now().UTC()
	id, err := store.Add(ctx, catalog.CollectionProducts, catalog.Product{
		Name: "Regla", Price: decimal.NewFromInt(150), Stock: 3, IsAvailable: true,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	items := []LineItem{{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(150)}}
	_, err = svc.PlaceOrder(ctx, randomCustomer(), items, decimal.NewFromInt(150))
	require.NoError(t, err)
}

func TestOrdersSortedNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// written directly so CreatedAt values are distinct and controlled
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := f.store.Add(ctx, CollectionOrders, Order{
			Code:   NewCode(),
			Status: StatusPending,
			StatusHistory: []StatusEntry{
				{Status: StatusPending, Date: base, Comment: StatusPending.Label()},
			},
			Total:     decimal.Zero,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	all, err := f.svc.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))
}

func TestDecrementStockUnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.decrementStock(ctx, []LineItem{{ProductID: "ghost", Quantity: 1}})
	var decrement *StockDecrementError
	require.ErrorAs(t, err, &decrement)
	assert.Equal(t, "ghost", decrement.ProductID)
	assert.Zero(t, decrement.Available)
}
