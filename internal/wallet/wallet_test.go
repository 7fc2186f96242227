package wallet

import (
	"context"
	"testing"

	"github.com/padhai-labs/guru/internal/apperrors"
)

func newTestService(t *testing.T, starting, price int64) (*Service, string) {
	t.Helper()
	svc := NewService(NewMemoryStore(), starting, price)
	if err := svc.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return svc, "s1"
}

func TestCheckFundsRejectsBelowPrice(t *testing.T) {
	svc, id := newTestService(t, 5, 10)
	ctx := context.Background()

	err := svc.CheckFunds(ctx, id)
	if !apperrors.Is(err, apperrors.KindInsufficientBalance) {
		t.Fatalf("CheckFunds() = %v, want insufficient_balance", err)
	}

	// Rejection must leave the balance untouched.
	balance, err := svc.Balance(ctx, id)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance != 5 {
		t.Errorf("balance after rejection = %d, want 5", balance)
	}
}

func TestDebitExactlyOnce(t *testing.T) {
	svc, id := newTestService(t, 25, 10)
	ctx := context.Background()

	balance, err := svc.DebitArt(ctx, id)
	if err != nil {
		t.Fatalf("DebitArt() error: %v", err)
	}
	if balance != 15 {
		t.Errorf("balance after one debit = %d, want 15", balance)
	}

	if _, err := svc.DebitArt(ctx, id); err != nil {
		t.Fatalf("second DebitArt() error: %v", err)
	}
	// Third debit would go negative and must be refused.
	_, err = svc.DebitArt(ctx, id)
	if !apperrors.Is(err, apperrors.KindInsufficientBalance) {
		t.Fatalf("DebitArt() below price = %v, want insufficient_balance", err)
	}

	balance, _ = svc.Balance(ctx, id)
	if balance != 5 {
		t.Errorf("final balance = %d, want 5 (never negative)", balance)
	}
}

func TestDebitExactBalance(t *testing.T) {
	svc, id := newTestService(t, 10, 10)

	balance, err := svc.DebitArt(context.Background(), id)
	if err != nil {
		t.Fatalf("DebitArt() with exact balance error: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestTopUp(t *testing.T) {
	svc, id := newTestService(t, 0, 10)
	ctx := context.Background()

	balance, err := svc.TopUp(ctx, id, 30)
	if err != nil {
		t.Fatalf("TopUp() error: %v", err)
	}
	if balance != 30 {
		t.Errorf("balance after top-up = %d, want 30", balance)
	}

	if _, err := svc.TopUp(ctx, id, 0); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("TopUp(0) = %v, want validation error", err)
	}
	if _, err := svc.TopUp(ctx, id, -5); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("TopUp(-5) = %v, want validation error", err)
	}
}

func TestUnknownWallet(t *testing.T) {
	svc := NewService(NewMemoryStore(), 100, 10)
	ctx := context.Background()

	if _, err := svc.Balance(ctx, "ghost"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("Balance(ghost) = %v, want not_found", err)
	}
	if _, err := svc.DebitArt(ctx, "ghost"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("DebitArt(ghost) = %v, want not_found", err)
	}
}
