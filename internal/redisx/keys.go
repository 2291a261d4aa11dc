package redisx

import "time"

const (
	// Full product list cache: catalog:products -> JSON array
	KeyCatalogProducts = "catalog:products"

	// Latest order status by code: order_status:{code} -> {"status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCatalog     = 5 * time.Minute
	TTLStatusCache = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
