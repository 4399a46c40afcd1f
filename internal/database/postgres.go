package database

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres opens the pool and pings the server.
func ConnectPostgres(postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Println("✅ Connected to PostgreSQL")
	return db, nil
}

// schema holds the credential store and chat transport tables.
var schema = []string{
	// Credential store. Profiles live in MongoDB, keyed by users.id.
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(320) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		display_name VARCHAR(20) NOT NULL DEFAULT '',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	// Chat transport groups. Member ids are opaque transport ids.
	`CREATE TABLE IF NOT EXISTS chat_groups (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS chat_group_members (
		group_id VARCHAR(64) NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
		user_id VARCHAR(64) NOT NULL,
		joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (group_id, user_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email))`,
	`CREATE INDEX IF NOT EXISTS idx_chat_group_members_user_id ON chat_group_members(user_id)`,
}

// InitPostgresTables creates all tables if they don't exist.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	log.Println("✅ PostgreSQL tables initialized")
	return nil
}
