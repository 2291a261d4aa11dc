package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/panzaverde/storefront/internal/config"
	kafkax "github.com/panzaverde/storefront/internal/kafka"
	"github.com/panzaverde/storefront/internal/notify"
	"github.com/panzaverde/storefront/internal/orders"
	"github.com/panzaverde/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		ServiceName: "storefront-notifier",
	}

	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, "storefront-notifier", orders.TopicOrders, 4)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("shutting down...")
		cancel()
	}()

	log.Printf("consuming %s", orders.TopicOrders)
	if err := consumer.Start(ctx, svc.HandleOrderEvent); err != nil {
		log.Fatalf("consumer: %v", err)
	}
}
