package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/duo-ledger/internal/capture"
	"github.com/richardliu001/duo-ledger/internal/config"
	"github.com/richardliu001/duo-ledger/internal/logger"
	"github.com/richardliu001/duo-ledger/internal/repo"
	"github.com/richardliu001/duo-ledger/internal/service"
	httptransport "github.com/richardliu001/duo-ledger/internal/transport/http"

	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}

func main() {
	// 1. load config
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	dir, err := cfg.Roster()
	if err != nil {
		log.Fatalf("build roster: %v", err)
	}

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := repo.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. repo, service, conversations. Events reach kafka through the
	// outbox and cmd/poller, so the server holds no writer.
	repository := repo.NewRepository(gdb, rdb, nil, log).WithRecipient(cfg.Recipient)
	svc := service.NewLedgerService(repository, dir, log)
	machine := capture.NewMachine(dir, svc, log)
	disp := capture.NewDispatcher(machine, repository.Sessions(cfg.Redis.SessionTTL), log)

	// 6. gin router behind CORS
	router := httptransport.NewRouter(svc, disp, cfg, log)
	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", httptransport.ChatIDHeader},
	})(router)

	// 7. serve until signalled
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("duo-ledger listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("duo-ledger stopped")
}
