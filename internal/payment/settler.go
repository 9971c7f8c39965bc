package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexml/marketplace-server/internal/models"
)

// Settler is the payment-settlement collaborator. A transfer either fully
// succeeds before the marketplace commits the operation, or its error
// aborts the whole operation. No partial-payment states exist.
type Settler interface {
	Transfer(ctx context.Context, payer, recipient string, amount int64, modelID string) error
}

// LedgerSettler records settled transfers in the payments table
type LedgerSettler struct {
	db *sqlx.DB
}

// NewLedgerSettler creates a settler backed by the given database
func NewLedgerSettler(db *sqlx.DB) *LedgerSettler {
	return &LedgerSettler{
		db: db,
	}
}

func (s *LedgerSettler) Transfer(ctx context.Context, payer, recipient string, amount int64, modelID string) error {
	query := `
		INSERT INTO payments (id, payer, recipient, amount, model_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), payer, recipient, amount, modelID, time.Now().UTC())

	return err
}

// MemorySettler records transfers in memory; the test suites use it to
// assert on settlement effects.
type MemorySettler struct {
	mu        sync.Mutex
	transfers []models.Payment
}

// NewMemorySettler creates an empty in-memory settler
func NewMemorySettler() *MemorySettler {
	return &MemorySettler{}
}

func (s *MemorySettler) Transfer(ctx context.Context, payer, recipient string, amount int64, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfers = append(s.transfers, models.Payment{
		ID:        uuid.New().String(),
		Payer:     payer,
		Recipient: recipient,
		Amount:    amount,
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
	})

	return nil
}

// Transfers returns a snapshot of all recorded transfers
func (s *MemorySettler) Transfers() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Payment, len(s.transfers))
	copy(out, s.transfers)

	return out
}
