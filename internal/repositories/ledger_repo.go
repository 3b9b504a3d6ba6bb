package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/escrowpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

type LedgerRepo struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewLedgerRepo(pool *pgxpool.Pool, lockTimeout time.Duration) *LedgerRepo {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &LedgerRepo{pool: pool, lockTimeout: lockTimeout}
}

const escrowColumns = `id, title, amount, currency, buyer_id, seller_id, status, funding_ref, metadata, created_at, updated_at`

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.Title, &e.Amount, &e.Currency, &e.BuyerID, &e.SellerID,
		&e.Status, &e.FundingRef, &e.Metadata, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) CreateEscrow(ctx context.Context, e *models.Escrow) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrows (id, title, amount, currency, buyer_id, seller_id, status, funding_ref, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, e.ID, e.Title, e.Amount, e.Currency, e.BuyerID, e.SellerID, e.Status, e.FundingRef, e.Metadata).
		Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *LedgerRepo) GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	e, err := scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEscrowNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *LedgerRepo) ListEscrows(ctx context.Context, f EscrowFilter) ([]models.Escrow, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR buyer_id = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, f.Status, f.BuyerID, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

func (r *LedgerRepo) ListEscrowsInStatusOlderThan(ctx context.Context, status string, age time.Duration, limit int) ([]models.Escrow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE status = $1 AND updated_at < now() - $2::interval
		ORDER BY updated_at ASC LIMIT $3
	`, status, fmt.Sprintf("%d seconds", int(age.Seconds())), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

func (r *LedgerRepo) ListTransactions(ctx context.Context, escrowID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, escrow_id, kind, provider, provider_ref, amount, created_at
		FROM transactions WHERE escrow_id = $1
		ORDER BY created_at ASC
	`, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.EscrowID, &t.Kind, &t.Provider, &t.ProviderRef, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *LedgerRepo) InsertWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (provider, event_id, signature)
		VALUES ($1, $2, $3)
		RETURNING received_at
	`, d.Provider, d.EventID, d.Signature).Scan(&d.ReceivedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateDelivery
	}
	return err
}

func (r *LedgerRepo) WithEscrowLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, esc *models.Escrow, unit EscrowUnit) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin escrow unit: %w", err)
	}
	defer tx.Rollback(ctx)

	// lock_timeout is transaction-local: a lock wait beyond it aborts the
	// unit instead of blocking the caller indefinitely.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	esc, err := scanEscrow(tx.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEscrowNotFound
	}
	if isLockTimeout(err) {
		return ErrLockTimeout
	}
	if err != nil {
		return fmt.Errorf("lock escrow %s: %w", id, err)
	}

	if err := fn(ctx, esc, &escrowUnit{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// escrowUnit binds the in-unit writes to the locking transaction.
type escrowUnit struct {
	tx pgx.Tx
}

func (u *escrowUnit) UpdateStatus(ctx context.Context, escrowID uuid.UUID, status string) error {
	_, err := u.tx.Exec(ctx, `
		UPDATE escrows SET status = $1, updated_at = now() WHERE id = $2
	`, status, escrowID)
	return err
}

func (u *escrowUnit) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	err := u.tx.QueryRow(ctx, `
		INSERT INTO transactions (id, escrow_id, kind, provider, provider_ref, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.EscrowID, t.Kind, t.Provider, t.ProviderRef, t.Amount).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTransaction
	}
	return err
}

func (u *escrowUnit) HasTransaction(ctx context.Context, kind, providerRef string) (bool, error) {
	var exists bool
	err := u.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE kind = $1 AND provider_ref = $2)
	`, kind, providerRef).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}
