package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/panzaverde/storefront/internal/docstore"
	"github.com/panzaverde/storefront/internal/redisx"
)

var ErrProductNotFound = errors.New("product not found")

// Service answers catalogue reads. The full product list is cached in Redis
// under a short TTL; listings may be slightly stale, the order placement
// transaction is the authority on stock.
type Service struct {
	store docstore.Store
	cache *redis.Client
}

func NewService(store docstore.Store, cache *redis.Client) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) Products(ctx context.Context) ([]Product, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, redisx.KeyCatalogProducts).Result(); err == nil && raw != "" {
			var cached []Product
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	docs, err := s.store.List(ctx, CollectionProducts)
	if err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}

	products, err := decodeProducts(docs)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, redisx.KeyCatalogProducts, raw, redisx.TTLCatalog).Err(); err != nil {
				log.Printf("catalog cache set: %v", err)
			}
		}
	}
	return products, nil
}

func (s *Service) ProductByID(ctx context.Context, id string) (Product, error) {
	doc, err := s.store.Get(ctx, CollectionProducts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("store.Get: %w", err)
	}
	return decodeProduct(doc)
}

// ProductsByCategory lists the offered products of one category; products
// with isAvailable=false are excluded from listings.
func (s *Service) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	docs, err := s.store.Query(ctx, CollectionProducts,
		docstore.Where{Field: "category", Value: category},
		docstore.Where{Field: "isAvailable", Value: true},
	)
	if err != nil {
		return nil, fmt.Errorf("store.Query: %w", err)
	}
	return decodeProducts(docs)
}

// Search fetches the whole catalogue and filters by substring on name and
// description; the store has no full-text search.
func (s *Service) Search(ctx context.Context, term string) ([]Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	return lo.Filter(products, func(p Product, _ int) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
	}), nil
}

func decodeProduct(doc docstore.Document) (Product, error) {
	var p Product
	if err := doc.DataTo(&p); err != nil {
		return Product{}, fmt.Errorf("doc.DataTo: %w", err)
	}
	p.ID = doc.ID
	return p, nil
}

func decodeProducts(docs []docstore.Document) ([]Product, error) {
	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
