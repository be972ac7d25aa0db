package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/duo-ledger/internal/config"
	"github.com/richardliu001/duo-ledger/internal/logger"
	"github.com/richardliu001/duo-ledger/internal/metrics"
	"github.com/richardliu001/duo-ledger/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

func main() {
	path := "internal/config/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// payment events are keyed by wallet; Hash keeps a wallet on one partition
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	// the poller never touches conversations, so no redis client
	repo := repo.NewRepository(gdb, nil, kw, log)

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Errorf("metrics listener: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	log.Info("duo-ledger poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info("duo-ledger poller stopped")
			return
		case <-ticker.C:
		}
		events, err := repo.PollOutbox(ctx, batchSize)
		if err != nil {
			log.Errorf("poll outbox: %v", err)
			continue
		}
		for _, evt := range events {
			if err := repo.PublishEvent(ctx, evt); err != nil {
				metrics.OutboxEvents.WithLabelValues("publish_failed").Inc()
				log.Errorf("publish id=%d: %v", evt.ID, err)
				continue
			}
			if err := repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
				metrics.OutboxEvents.WithLabelValues("mark_failed").Inc()
				log.Errorf("mark processed id=%d: %v", evt.ID, err)
			} else {
				metrics.OutboxEvents.WithLabelValues("sent").Inc()
				log.Infow("event sent", "id", evt.ID, "type", evt.EventType, "payment", evt.AggregateID)
			}
		}
	}
}
