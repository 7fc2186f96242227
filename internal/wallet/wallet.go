// Package wallet tracks the per-session credit balance that art
// generation debits. Balances live in memory by default; a Postgres store
// can be plugged in for deployments that survive restarts.
package wallet

import (
	"context"
	"sync"

	"github.com/padhai-labs/guru/internal/apperrors"
)

// Store persists balances keyed by session ID.
type Store interface {
	Create(ctx context.Context, sessionID string, balance int64) error
	Balance(ctx context.Context, sessionID string) (int64, error)
	// Credit adds delta and returns the new balance.
	Credit(ctx context.Context, sessionID string, delta int64) (int64, error)
	// DebitIfEnough atomically subtracts amount when the balance covers
	// it. ok=false means the balance was too low and nothing changed.
	DebitIfEnough(ctx context.Context, sessionID string, amount int64) (balance int64, ok bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

// Service owns the balance invariants: never negative, one debit per
// successful art result.
type Service struct {
	store           Store
	startingBalance int64
	unitPrice       int64
}

func NewService(store Store, startingBalance, unitPrice int64) *Service {
	return &Service{store: store, startingBalance: startingBalance, unitPrice: unitPrice}
}

func (s *Service) UnitPrice() int64 {
	return s.unitPrice
}

func (s *Service) Open(ctx context.Context, sessionID string) error {
	return s.store.Create(ctx, sessionID, s.startingBalance)
}

func (s *Service) Close(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

func (s *Service) Balance(ctx context.Context, sessionID string) (int64, error) {
	return s.store.Balance(ctx, sessionID)
}

// CheckFunds rejects before any remote call is issued when the balance
// cannot cover one art generation.
func (s *Service) CheckFunds(ctx context.Context, sessionID string) error {
	balance, err := s.store.Balance(ctx, sessionID)
	if err != nil {
		return err
	}
	if balance < s.unitPrice {
		return apperrors.Newf(apperrors.KindInsufficientBalance,
			"not enough credits: have %d, need %d", balance, s.unitPrice)
	}
	return nil
}

// DebitArt charges one unit price. Called only after a successful result.
func (s *Service) DebitArt(ctx context.Context, sessionID string) (int64, error) {
	balance, ok, err := s.store.DebitIfEnough(ctx, sessionID, s.unitPrice)
	if err != nil {
		return 0, err
	}
	if !ok {
		return balance, apperrors.Newf(apperrors.KindInsufficientBalance,
			"not enough credits: have %d, need %d", balance, s.unitPrice)
	}
	return balance, nil
}

func (s *Service) TopUp(ctx context.Context, sessionID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.New(apperrors.KindValidation, "top-up amount must be positive")
	}
	return s.store.Credit(ctx, sessionID, amount)
}

// MemoryStore is the default zero-infrastructure store.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]int64)}
}

func (m *MemoryStore) Create(_ context.Context, sessionID string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[sessionID] = balance
	return nil
}

func (m *MemoryStore) Balance(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[sessionID]
	if !ok {
		return 0, apperrors.New(apperrors.KindNotFound, "wallet not found")
	}
	return balance, nil
}

func (m *MemoryStore) Credit(_ context.Context, sessionID string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[sessionID]
	if !ok {
		return 0, apperrors.New(apperrors.KindNotFound, "wallet not found")
	}
	balance += delta
	m.balances[sessionID] = balance
	return balance, nil
}

func (m *MemoryStore) DebitIfEnough(_ context.Context, sessionID string, amount int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[sessionID]
	if !ok {
		return 0, false, apperrors.New(apperrors.KindNotFound, "wallet not found")
	}
	if balance < amount {
		return balance, false, nil
	}
	balance -= amount
	m.balances[sessionID] = balance
	return balance, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.balances, sessionID)
	return nil
}
