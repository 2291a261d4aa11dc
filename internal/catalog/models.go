package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionProducts is the document collection holding the product
// catalogue. Stock is decremented only by the order placement transaction.
const CollectionProducts = "products"

type Product struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"isAvailable"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}
