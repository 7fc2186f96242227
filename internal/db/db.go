// Package db is the optional Postgres backing for wallets, selected when
// DATABASE_URL is configured. The schema is one table:
//
//	CREATE TABLE IF NOT EXISTS wallets (
//	    session_id TEXT PRIMARY KEY,
//	    balance    BIGINT NOT NULL CHECK (balance >= 0),
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	return &DB{conn}, nil
}
