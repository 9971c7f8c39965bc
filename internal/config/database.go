package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create models table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			id VARCHAR(36) PRIMARY KEY,
			content_ref TEXT NOT NULL,
			owner VARCHAR(36) NOT NULL,
			for_sale BOOLEAN NOT NULL,
			sale_price BIGINT NOT NULL,
			for_rent BOOLEAN NOT NULL,
			rent_price BIGINT NOT NULL,
			created_by VARCHAR(36) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create user_models table (per-user creation index)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_models (
			user_id VARCHAR(36) NOT NULL,
			model_id VARCHAR(36) NOT NULL REFERENCES models(id),
			position BIGINT NOT NULL,
			PRIMARY KEY (user_id, position)
		)
	`)
	if err != nil {
		return err
	}

	// Create model_renters table (append-only rental record)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS model_renters (
			model_id VARCHAR(36) NOT NULL REFERENCES models(id),
			renter VARCHAR(36) NOT NULL,
			position BIGINT NOT NULL,
			PRIMARY KEY (model_id, position)
		)
	`)
	if err != nil {
		return err
	}

	// Create ratings table (one rating per model per rater)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ratings (
			model_id VARCHAR(36) NOT NULL REFERENCES models(id),
			rater VARCHAR(36) NOT NULL,
			score SMALLINT NOT NULL,
			comment TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (model_id, rater)
		)
	`)
	if err != nil {
		return err
	}

	// Create profiles table (DID directory)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			identity VARCHAR(36) PRIMARY KEY,
			did TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create events table (append-only marketplace log)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(36) PRIMARY KEY,
			type VARCHAR(32) NOT NULL,
			model_id VARCHAR(36) NOT NULL,
			actor VARCHAR(36) NOT NULL,
			amount BIGINT NOT NULL,
			score SMALLINT NOT NULL,
			comment TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create payments table (settlement ledger)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(36) PRIMARY KEY,
			payer VARCHAR(36) NOT NULL,
			recipient VARCHAR(36) NOT NULL,
			amount BIGINT NOT NULL,
			model_id VARCHAR(36) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_user_models_user_id ON user_models(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_model_renters_model_id ON model_renters(model_id)",
		"CREATE INDEX IF NOT EXISTS idx_events_model_id ON events(model_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
