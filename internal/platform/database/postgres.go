package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"code_duel/internal/platform/config"
	"code_duel/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

var DB *sql.DB

func Connect() error {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database %s@%s: %w", config.AppConfig.DBName, config.AppConfig.DBHost, err)
	}

	logger.L().Info("postgres_connected", zap.String("host", config.AppConfig.DBHost), zap.String("db", config.AppConfig.DBName))
	return nil
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.L().Info("schema_applied")
	return nil
}

func Close() {
	if DB != nil {
		_ = DB.Close()
		logger.L().Info("postgres_closed")
	}
}
