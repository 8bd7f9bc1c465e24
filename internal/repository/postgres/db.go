package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/inventory-api/internal/config"
	"github.com/jwalitptl/inventory-api/pkg/retry"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	// The database may still be coming up when the process starts.
	var db *sqlx.DB
	err := retry.Do(connectAttempts, connectDelay, func() error {
		var connErr error
		db, connErr = sqlx.Connect("postgres", dsn)
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return db, nil
}
