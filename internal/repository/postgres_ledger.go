package repository

import (
	"context"
	"errors"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedgerRepository owns all balance writes. Each mutating method takes
// a row lock on the user's balance before re-validating, so concurrent
// operations for the same user serialize at the database.
type PostgresLedgerRepository struct {
	db *pgxpool.Pool
}

func NewPostgresLedgerRepository(db *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{
		db: db,
	}
}

func (p *PostgresLedgerRepository) ApplyDelta(ctx context.Context, entry *domain.LedgerEntry) (int, error) {
	var newBalance int

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var balance int

		err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, entry.UserID).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		// Sufficiency is re-checked here, under the lock, not only at the
		// earlier CheckSufficientCredits call.
		if balance+entry.Amount < 0 {
			return domain.ErrInsufficientCredits
		}

		err = tx.QueryRow(ctx, `
			UPDATE users
			SET credits = credits + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING credits
		`, entry.Amount, entry.UserID).Scan(&newBalance)
		if err != nil {
			return err
		}

		return insertEntry(ctx, tx, entry)
	})

	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

func (p *PostgresLedgerRepository) CreatePendingPurchase(ctx context.Context, entry *domain.LedgerEntry) error {
	return insertEntryDB(ctx, p.db, entry)
}

func (p *PostgresLedgerRepository) CompletePurchase(ctx context.Context, paymentID string) (*domain.LedgerEntry, int, error) {
	var entry *domain.LedgerEntry
	var newBalance int

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var err error

		entry, err = lockPurchaseEntry(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		switch *entry.PaymentStatus {
		case domain.PaymentStatusPending:
			// fall through to the transition
		case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
			return domain.ErrAlreadyProcessed
		default:
			return domain.ErrInvalidStatusTransition
		}

		err = tx.QueryRow(ctx, `
			UPDATE users
			SET credits = credits + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING credits
		`, entry.Amount, entry.UserID).Scan(&newBalance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE ledger_entries SET payment_status = $1 WHERE id = $2`,
			domain.PaymentStatusCompleted, entry.ID)
		if err != nil {
			return err
		}

		completed := domain.PaymentStatusCompleted
		entry.PaymentStatus = &completed

		return nil
	})

	if err != nil {
		return nil, 0, err
	}

	return entry, newBalance, nil
}

func (p *PostgresLedgerRepository) FailPurchase(ctx context.Context, paymentID string) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		entry, err := lockPurchaseEntry(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		switch *entry.PaymentStatus {
		case domain.PaymentStatusPending:
		case domain.PaymentStatusFailed:
			return domain.ErrAlreadyProcessed
		default:
			return domain.ErrInvalidStatusTransition
		}

		_, err = tx.Exec(ctx,
			`UPDATE ledger_entries SET payment_status = $1 WHERE id = $2`,
			domain.PaymentStatusFailed, entry.ID)

		return err
	})
}

func (p *PostgresLedgerRepository) RefundPurchase(ctx context.Context, paymentID string) (*domain.RefundedPurchase, error) {
	var refunded domain.RefundedPurchase

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		entry, err := lockPurchaseEntry(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		switch *entry.PaymentStatus {
		case domain.PaymentStatusCompleted:
		case domain.PaymentStatusRefunded:
			return domain.ErrAlreadyRefunded
		default:
			return domain.ErrPaymentNotCompleted
		}

		var balance int

		err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, entry.UserID).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		// The decrement proceeds even when the credits were already spent, but
		// the balance clamps at zero rather than going negative.
		newBalance := balance - entry.Amount
		clamped := false
		if newBalance < 0 {
			newBalance = 0
			clamped = true
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET credits = $1, updated_at = NOW() WHERE id = $2`,
			newBalance, entry.UserID)
		if err != nil {
			return err
		}

		refundEntry := &domain.LedgerEntry{
			ID:              uuid.New(),
			UserID:          entry.UserID,
			Type:            domain.TransactionRefund,
			Amount:          -entry.Amount,
			Description:     "Refund of purchase " + paymentID,
			PaymentProvider: entry.PaymentProvider,
			RefEntryID:      &entry.ID,
		}

		err = insertEntry(ctx, tx, refundEntry)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE ledger_entries SET payment_status = $1 WHERE id = $2`,
			domain.PaymentStatusRefunded, entry.ID)
		if err != nil {
			return err
		}

		status := domain.PaymentStatusRefunded
		entry.PaymentStatus = &status

		refunded = domain.RefundedPurchase{
			Original:   entry,
			Refund:     refundEntry,
			NewBalance: newBalance,
			Clamped:    clamped,
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &refunded, nil
}

func (p *PostgresLedgerRepository) GetEntryById(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := entrySelect + ` WHERE id = $1`

	return scanEntryRow(p.db.QueryRow(ctx, query, id))
}

func (p *PostgresLedgerRepository) GetEntryByPaymentId(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	query := entrySelect + ` WHERE payment_id = $1 AND type = 'PURCHASE'`

	return scanEntryRow(p.db.QueryRow(ctx, query, paymentID))
}

func (p *PostgresLedgerRepository) GetEntriesByUserId(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.LedgerEntry, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			id, user_id, type, amount, description,
			payment_provider, payment_id, payment_status, package_id, ref_entry_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	totalRecords := 0

	for rows.Next() {
		var entry domain.LedgerEntry

		err := rows.Scan(
			&totalRecords,
			&entry.ID,
			&entry.UserID,
			&entry.Type,
			&entry.Amount,
			&entry.Description,
			&entry.PaymentProvider,
			&entry.PaymentID,
			&entry.PaymentStatus,
			&entry.PackageID,
			&entry.RefEntryID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, nil, err
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return entries, metadata, nil
}

func (p *PostgresLedgerRepository) SumEntriesByUserId(ctx context.Context, userID int) (int, error) {
	// PENDING and FAILED purchases have not affected the balance yet, so they
	// are excluded from the consistency sum.
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1
		  AND (payment_status IS NULL OR payment_status IN ('COMPLETED', 'REFUNDED'))
	`

	var sum int

	err := p.db.QueryRow(ctx, query, userID).Scan(&sum)
	if err != nil {
		return 0, err
	}

	return sum, nil
}

const entrySelect = `
	SELECT id, user_id, type, amount, description,
		payment_provider, payment_id, payment_status, package_id, ref_entry_id, created_at
	FROM ledger_entries`

func scanEntryRow(row pgx.Row) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Type,
		&entry.Amount,
		&entry.Description,
		&entry.PaymentProvider,
		&entry.PaymentID,
		&entry.PaymentStatus,
		&entry.PackageID,
		&entry.RefEntryID,
		&entry.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &entry, nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertEntry(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	return insertEntryQ(ctx, tx, entry)
}

func insertEntryDB(ctx context.Context, db *pgxpool.Pool, entry *domain.LedgerEntry) error {
	return insertEntryQ(ctx, db, entry)
}

func insertEntryQ(ctx context.Context, q execQuerier, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			id, user_id, type, amount, description,
			payment_provider, payment_id, payment_status, package_id, ref_entry_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.Amount,
		entry.Description,
		entry.PaymentProvider,
		entry.PaymentID,
		entry.PaymentStatus,
		entry.PackageID,
		entry.RefEntryID,
	).Scan(&entry.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "ux_ledger_refund_ref":
				return domain.ErrAlreadyRefunded
			case "ux_ledger_purchase_payment":
				return domain.ErrAlreadyProcessed
			}

			return domain.ErrEditConflict
		}

		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return domain.ErrRecordNotFound
		}

		return err
	}

	return nil
}

func lockPurchaseEntry(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.LedgerEntry, error) {
	query := entrySelect + ` WHERE payment_id = $1 AND type = 'PURCHASE' FOR UPDATE`

	return scanEntryRow(tx.QueryRow(ctx, query, paymentID))
}
