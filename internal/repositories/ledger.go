package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/escrowpay/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrEscrowNotFound       = errors.New("escrow not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrDuplicateDelivery    = errors.New("webhook delivery already recorded")
	// ErrLockTimeout means another request held the escrow row longer than
	// the configured lock wait; the whole unit rolled back and the caller
	// may retry.
	ErrLockTimeout = errors.New("escrow lock wait timed out")
)

// Ledger is the storage contract for escrows, their transaction ledger and
// webhook delivery dedup records. Implementations must make WithEscrowLock
// a single atomic unit: either every write inside it persists or none do.
type Ledger interface {
	CreateEscrow(ctx context.Context, e *models.Escrow) error
	GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	ListEscrows(ctx context.Context, f EscrowFilter) ([]models.Escrow, error)
	ListTransactions(ctx context.Context, escrowID uuid.UUID) ([]models.Transaction, error)

	// ListEscrowsInStatusOlderThan returns escrows that have sat in the
	// given status without an update for at least age. Used by the worker
	// sweeps.
	ListEscrowsInStatusOlderThan(ctx context.Context, status string, age time.Duration, limit int) ([]models.Escrow, error)

	// InsertWebhookDelivery returns ErrDuplicateDelivery if the
	// (provider, event_id) pair was already recorded.
	InsertWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error

	// WithEscrowLock runs fn while holding an exclusive row lock on the
	// escrow. Callers for the same escrow id serialize; different ids do
	// not block each other. Returns ErrEscrowNotFound if the id is
	// unknown and ErrLockTimeout if the lock could not be acquired in
	// time. Any error from fn rolls back every write made through unit.
	WithEscrowLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, esc *models.Escrow, unit EscrowUnit) error) error
}

// EscrowUnit exposes the writes permitted inside one locked, atomic unit.
type EscrowUnit interface {
	UpdateStatus(ctx context.Context, escrowID uuid.UUID, status string) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	HasTransaction(ctx context.Context, kind, providerRef string) (bool, error)
}

type EscrowFilter struct {
	Status  *string
	BuyerID *string
	Limit   int
	Offset  int
}
