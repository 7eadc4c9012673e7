// Package postgres implements the backing-store contract on PostgreSQL
// via pgx, one Store per roster table over a shared connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/store"
)

// DB holds the shared connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates the connection pool and verifies connectivity.
func Connect(cfg *config.PostgresConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Players returns the store for the players table.
func (db *DB) Players() *Store {
	return newStore(db.pool, store.Players, db.logger)
}

// RosterEntries returns the store for the roster_entries table.
func (db *DB) RosterEntries() *Store {
	return newStore(db.pool, store.RosterEntries, db.logger)
}

// RunMigrations executes database migrations. The natural-key unique
// indexes are what closes the cross-process duplicate-create race.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			player_index INT NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			date_of_birth DATE,
			gender VARCHAR(10) NOT NULL DEFAULT 'other',
			medical_conditions TEXT NOT NULL DEFAULT '',
			dietary_needs TEXT NOT NULL DEFAULT '',
			emergency_contact VARCHAR(255) NOT NULL DEFAULT '',
			emergency_phone VARCHAR(50) NOT NULL DEFAULT '',
			national_id VARCHAR(20) NOT NULL DEFAULT '',
			event_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(customer_id, player_index)
		)`,
		`CREATE TABLE IF NOT EXISTS roster_entries (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL,
			order_item_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL DEFAULT 0,
			customer_id BIGINT NOT NULL DEFAULT 0,
			player_index INT NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			date_of_birth DATE,
			gender VARCHAR(10) NOT NULL DEFAULT 'other',
			medical_conditions TEXT NOT NULL DEFAULT '',
			dietary_needs TEXT NOT NULL DEFAULT '',
			activity_type VARCHAR(20) NOT NULL DEFAULT '',
			venue VARCHAR(100) NOT NULL DEFAULT '',
			age_group VARCHAR(50) NOT NULL DEFAULT '',
			start_date DATE,
			end_date DATE,
			booking_type VARCHAR(20) NOT NULL DEFAULT '',
			selected_days VARCHAR(100) NOT NULL DEFAULT '',
			season VARCHAR(50) NOT NULL DEFAULT '',
			region VARCHAR(50) NOT NULL DEFAULT '',
			parent_email VARCHAR(255) NOT NULL DEFAULT '',
			parent_phone VARCHAR(50) NOT NULL DEFAULT '',
			emergency_contact VARCHAR(255) NOT NULL DEFAULT '',
			emergency_phone VARCHAR(50) NOT NULL DEFAULT '',
			order_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			discount_applied BOOLEAN NOT NULL DEFAULT FALSE,
			rebuild_batch VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(order_id, order_item_id, player_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_customer ON players(customer_id, player_index)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_participant ON roster_entries(customer_id, player_index)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_dates ON roster_entries(start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_venue ON roster_entries(venue, season)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_status ON roster_entries(order_status)`,
	}

	for _, migration := range migrations {
		_, err := db.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	db.logger.Info("database migrations completed")
	return nil
}
