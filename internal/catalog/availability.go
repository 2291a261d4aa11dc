package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/panzaverde/storefront/internal/docstore"
)

type ItemRequest struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Shortfall is a requested line item that current stock cannot satisfy.
type Shortfall struct {
	ProductID string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type Availability struct {
	HasStock   bool        `json:"hasStock"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// CheckAvailability reads current stock for each requested line item and
// partitions them into satisfiable and short. A missing product counts as
// zero available stock, not an error. The check is advisory: it runs before
// the placement transaction to fail fast with a friendly message, while the
// transaction itself re-reads stock and makes the authoritative call.
func (s *Service) CheckAvailability(ctx context.Context, items []ItemRequest) (Availability, error) {
	var shortfalls []Shortfall

	for _, it := range items {
		doc, err := s.store.Get(ctx, CollectionProducts, it.ProductID)
		if errors.Is(err, docstore.ErrNotFound) {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: it.ProductID, Requested: it.Quantity, Available: 0,
			})
			continue
		}
		if err != nil {
			return Availability{}, fmt.Errorf("store.Get: %w", err)
		}

		p, err := decodeProduct(doc)
		if err != nil {
			return Availability{}, err
		}
		if it.Quantity > p.Stock {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock,
			})
		}
	}

	return Availability{HasStock: len(shortfalls) == 0, Shortfalls: shortfalls}, nil
}
