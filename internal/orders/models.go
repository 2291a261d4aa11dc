package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionOrders is the document collection orders are persisted in.
const CollectionOrders = "orders"

type CustomerInfo struct {
	Name     string `json:"userName"`
	Email    string `json:"userEmail"`
	Phone    string `json:"userPhone"`
	Address  string `json:"userAddress"`
	Comments string `json:"comments,omitempty"`
}

// LineItem snapshots the unit price at order time; later catalogue price
// changes do not affect placed orders.
type LineItem struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

type StatusEntry struct {
	Status  Status    `json:"status"`
	Date    time.Time `json:"date"`
	Comment string    `json:"comment"`
}

// Order invariants: StatusHistory is append-only and never empty, and its
// last entry always matches Status.
type Order struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code"`
	CustomerInfo
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	StatusHistory []StatusEntry   `json:"statusHistory"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ComputeTotal sums quantity times unit price over the items.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
