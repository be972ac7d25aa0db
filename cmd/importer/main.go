// Command importer loads a {"payments":[...]} history file into the ledger,
// reporting every record that could not be stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/richardliu001/duo-ledger/internal/config"
	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/logger"
	"github.com/richardliu001/duo-ledger/internal/repo"
	"github.com/richardliu001/duo-ledger/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	var (
		cfgPath = flag.String("config", "internal/config/config.yaml", "path to config.yaml")
		file    = flag.String("file", "", "history JSON to import")
		dryRun  = flag.Bool("dry-run", false, "validate records without touching the database")
		verbose = flag.Bool("v", false, "debug output")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log, err := logger.NewConsoleLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if *file == "" {
		log.Error("missing -file")
		flag.Usage()
		os.Exit(2)
	}
	code := run(log, *cfgPath, *file, *dryRun)
	_ = log.Sync()
	os.Exit(code)
}

func run(log *zap.SugaredLogger, cfgPath, file string, dryRun bool) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Errorw("load config", "error", err)
		return 1
	}
	dir, err := cfg.Roster()
	if err != nil {
		log.Errorw("build roster", "error", err)
		return 1
	}
	data, err := os.ReadFile(file)
	if err != nil {
		log.Errorw("read history", "file", file, "error", err)
		return 1
	}

	var gw ledger.Gateway = repo.NewMemoryGateway()
	if !dryRun {
		gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
		if err != nil {
			log.Errorw("open postgres", "error", err)
			return 1
		}
		if err := repo.Migrate(gdb); err != nil {
			log.Errorw("auto-migrate", "error", err)
			return 1
		}
		gw = repo.NewRepository(gdb, nil, nil, log).WithRecipient(cfg.Recipient)
	}

	svc := service.NewLedgerService(gw, dir, log)
	results, err := svc.ImportJSON(context.Background(), data)
	if err != nil {
		log.Errorw("import aborted", "file", file, "error", err)
		return 1
	}

	for _, r := range results {
		if r.OK() {
			log.Debugw("imported", "index", r.Index, "payer", r.Record.Payer, "wallet", r.Record.Wallet, "amount", r.Record.Amount)
		}
	}
	failed := service.Failed(results)
	log.Infow("import finished", "file", file, "dry_run", dryRun, "imported", len(results)-len(failed), "failed", len(failed))
	if len(failed) > 0 {
		return 3
	}
	return 0
}
