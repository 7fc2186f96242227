package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/wallet"
)

// WalletStore implements wallet.Store on Postgres. The debit is a single
// conditional UPDATE so the balance check and decrement cannot race.
type WalletStore struct {
	db *DB
}

var _ wallet.Store = (*WalletStore)(nil)

func NewWalletStore(db *DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, sessionID string, balance int64) error {
	query := `
		INSERT INTO wallets (session_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, balance); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *WalletStore) Balance(ctx context.Context, sessionID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE session_id = $1`, sessionID,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, apperrors.New(apperrors.KindNotFound, "wallet not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *WalletStore) Credit(ctx context.Context, sessionID string, delta int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE session_id = $2
		RETURNING balance
	`, delta, sessionID).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, apperrors.New(apperrors.KindNotFound, "wallet not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return balance, nil
}

func (s *WalletStore) DebitIfEnough(ctx context.Context, sessionID string, amount int64) (int64, bool, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE session_id = $2 AND balance >= $1
		RETURNING balance
	`, amount, sessionID).Scan(&balance)

	if err == nil {
		return balance, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to debit wallet: %w", err)
	}

	// No row updated: either the wallet is missing or the balance was
	// too low. Distinguish so the caller can report correctly.
	balance, lookupErr := s.Balance(ctx, sessionID)
	if lookupErr != nil {
		return 0, false, lookupErr
	}
	return balance, false, nil
}

func (s *WalletStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wallets WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete wallet: %w", err)
	}
	return nil
}
