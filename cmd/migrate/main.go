package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
	"github.com/flexprice/residence-billing/migrations"
	"github.com/pressly/goose/v3"
)

const migrationsTable = "goose_db_version"

func main() {
	command := flag.String("command", "up", "Migration command: up, down, status, version")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall migration timeout")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	goose.SetBaseFS(migrations.Postgres)
	goose.SetLogger(&gooseLogger{logger: logger})
	goose.SetTableName(migrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalw("failed to set goose dialect", "error", err)
	}

	switch *command {
	case "up":
		err = goose.UpContext(ctx, db.DB.DB, migrations.PostgresDir)
	case "down":
		err = goose.DownContext(ctx, db.DB.DB, migrations.PostgresDir)
	case "status":
		err = goose.StatusContext(ctx, db.DB.DB, migrations.PostgresDir)
	case "version":
		err = goose.VersionContext(ctx, db.DB.DB, migrations.PostgresDir)
	default:
		logger.Fatalw("unknown migration command", "command", *command)
	}
	if err != nil {
		logger.Fatalw("migration failed", "command", *command, "error", err)
	}

	logger.Infow("migration completed", "command", *command)
}

// gooseLogger routes goose output through the application logger
type gooseLogger struct {
	logger *logger.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Errorw(fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Infow(fmt.Sprintf(format, v...))
}
