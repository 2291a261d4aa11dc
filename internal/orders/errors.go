package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/panzaverde/storefront/internal/catalog"
)

var ErrOrderNotFound = errors.New("order not found")

// InsufficientStockError is the advisory pre-check failure: one or more line
// items exceed available stock. Nothing has been written when it is returned.
type InsufficientStockError struct {
	Shortfalls []catalog.Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("product %s: requested %d, %d available",
			s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// StockDecrementError is the authoritative transaction-time failure: stock
// changed between the pre-check and the decrement, or a product disappeared.
// The whole transaction was aborted, no stock was written.
type StockDecrementError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockDecrementError) Error() string {
	return fmt.Sprintf("stock decrement failed for product %s: requested %d, %d available",
		e.ProductID, e.Requested, e.Available)
}
