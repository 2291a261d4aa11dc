package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/panzaverde/storefront/internal/catalog"
	"github.com/panzaverde/storefront/internal/config"
	"github.com/panzaverde/storefront/internal/docstore"
	"github.com/panzaverde/storefront/internal/httpx"
	kafkax "github.com/panzaverde/storefront/internal/kafka"
	"github.com/panzaverde/storefront/internal/orders"
	"github.com/panzaverde/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := docstore.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("docstore connect: %v", err)
	}
	defer store.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrders, 1024)
	prod.Start(ctx)

	catalogSvc := catalog.NewService(store, rdb)
	orderSvc := orders.NewService(store, catalogSvc, prod, cfg.ServiceName)

	router := httpx.NewRouter()
	(&httpx.CatalogHandler{Catalog: catalogSvc}).Register(router)
	(&httpx.OrdersHandler{Orders: orderSvc, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()          // stop the producer loop
	prod.WaitClosed() // flush queued events
}
