package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panzaverde/storefront/internal/catalog"
	"github.com/panzaverde/storefront/internal/docstore"
)

// decrementStock atomically reserves the stock of a finalized item list.
// Every product is re-read inside the transaction (the advisory pre-check
// values are never reused), all reads happen before all writes, and any
// product that would go negative or no longer exists aborts the whole unit
// with no partial writes. Under contention the store retries the callback;
// the loser of a race re-reads the already-decremented stock and fails
// deterministically. Exhausted retries surface docstore.ErrTxConflict.
func (s *Service) decrementStock(ctx context.Context, items []LineItem) error {
	merged := mergeQuantities(items)

	return s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		updates := make([]catalog.Product, 0, len(merged))

		for _, it := range merged {
			doc, err := tx.Get(catalog.CollectionProducts, it.ProductID)
			if errors.Is(err, docstore.ErrNotFound) {
				return &StockDecrementError{ProductID: it.ProductID, Requested: it.Quantity, Available: 0}
			}
			if err != nil {
				return fmt.Errorf("tx.Get: %w", err)
			}

			var p catalog.Product
			if err := doc.DataTo(&p); err != nil {
				return fmt.Errorf("doc.DataTo: %w", err)
			}
			p.ID = doc.ID

			newStock := p.Stock - it.Quantity
			if newStock < 0 {
				return &StockDecrementError{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock}
			}
			p.Stock = newStock
			p.UpdatedAt = time.Now().UTC()
			updates = append(updates, p)
		}

		for _, p := range updates {
			if err := tx.Update(catalog.CollectionProducts, p.ID, p); err != nil {
				return fmt.Errorf("tx.Update: %w", err)
			}
		}
		return nil
	})
}

type stockRequest struct {
	ProductID string
	Quantity  int
}

// mergeQuantities collapses repeated product references into one request so
// a product is read and written at most once per transaction.
func mergeQuantities(items []LineItem) []stockRequest {
	index := make(map[string]int, len(items))
	merged := make([]stockRequest, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, stockRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return merged
}
