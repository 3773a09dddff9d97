package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, owner_id, amount, currency, bank_code, external_id,
	reconciliation_key, reference, credit, state, failure, completed_at,
	origin_events, detail, created_at, updated_at`

// Create inserts a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	return r.create(ctx, txQuerier(tx), t)
}

func (r *TransactionRepository) create(ctx context.Context, q querier, t *domain.Transaction) error {
	detail, originEvents, err := marshalTransactionJSON(t)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`, invoice_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.ID, t.OwnerID, decimalToNumeric(t.Amount), t.Currency, t.BankCode, t.ExternalID,
		t.ReconciliationKey, t.Reference, t.Credit, string(t.State), t.Failure,
		timePtrToPgTimestamptz(t.CompletedAt), originEvents, detail,
		timeToPgTimestamptz(t.CreatedAt), timeToPgTimestamptz(t.UpdatedAt),
		invoiceIDOf(t),
	)

	return err
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a transaction by ID with a FOR UPDATE lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, txQuerier(tx), `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

// GetByInvoiceID retrieves the transaction created for an invoice.
func (r *TransactionRepository) GetByInvoiceID(ctx context.Context, ownerID, invoiceID string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = $1 AND invoice_id = $2`,
		ownerID, invoiceID)
}

// GetByInvoiceIDForUpdate retrieves an invoice's transaction with a FOR
// UPDATE lock.
func (r *TransactionRepository) GetByInvoiceIDForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, invoiceID string) (*domain.Transaction, error) {
	return r.getOne(ctx, txQuerier(tx),
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = $1 AND invoice_id = $2 FOR UPDATE`,
		ownerID, invoiceID)
}

// GetByReconciliationKey retrieves the transaction matching an external
// reconciliation key.
func (r *TransactionRepository) GetByReconciliationKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool,
		`SELECT `+transactionColumns+` FROM transactions WHERE reconciliation_key = $1 ORDER BY created_at LIMIT 1`,
		key)
}

// Update persists all mutable fields of a transaction.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	detail, originEvents, err := marshalTransactionJSON(t)
	if err != nil {
		return err
	}

	_, err = txQuerier(tx).Exec(ctx, `
		UPDATE transactions SET
			amount = $2, currency = $3, bank_code = $4, external_id = $5,
			reference = $6, credit = $7, state = $8, failure = $9,
			completed_at = $10, origin_events = $11, detail = $12, updated_at = $13
		WHERE id = $1`,
		t.ID, decimalToNumeric(t.Amount), t.Currency, t.BankCode, t.ExternalID,
		t.Reference, t.Credit, string(t.State), t.Failure,
		timePtrToPgTimestamptz(t.CompletedAt), originEvents, detail,
		timeToPgTimestamptz(t.UpdatedAt),
	)

	return err
}

// Delete removes a transaction.
func (r *TransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	_, err := txQuerier(tx).Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

// List lists an owner's transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

func (r *TransactionRepository) getOne(ctx context.Context, q querier, sql string, args ...any) (*domain.Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t            domain.Transaction
		amount       pgtype.Numeric
		state        string
		completedAt  pgtype.Timestamptz
		originEvents []byte
		detail       []byte
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&t.ID, &t.OwnerID, &amount, &t.Currency, &t.BankCode, &t.ExternalID,
		&t.ReconciliationKey, &t.Reference, &t.Credit, &state, &t.Failure,
		&completedAt, &originEvents, &detail, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount = numericToDecimal(amount)
	t.State = domain.TransactionState(state)
	t.CompletedAt = pgTimestamptzToTimePtr(completedAt)
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time

	if len(originEvents) > 0 {
		if err := json.Unmarshal(originEvents, &t.OriginEvents); err != nil {
			return nil, fmt.Errorf("decoding origin events for %s: %w", t.ID, err)
		}
	}

	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &t.Detail); err != nil {
			return nil, fmt.Errorf("decoding detail for %s: %w", t.ID, err)
		}
	}

	return &t, nil
}

func marshalTransactionJSON(t *domain.Transaction) (detail, originEvents []byte, err error) {
	detail, err = json.Marshal(t.Detail)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding detail for %s: %w", t.ID, err)
	}

	if t.OriginEvents == nil {
		originEvents = []byte("[]")
	} else {
		originEvents, err = json.Marshal(t.OriginEvents)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding origin events for %s: %w", t.ID, err)
		}
	}

	return detail, originEvents, nil
}

func invoiceIDOf(t *domain.Transaction) *string {
	if t.Detail.Invoice == nil || t.Detail.Invoice.InvoiceID == "" {
		return nil
	}

	id := t.Detail.Invoice.InvoiceID
	return &id
}

// txQuerier unwraps the pgx transaction behind the usecase.Transaction
// interface.
func txQuerier(tx usecase.Transaction) querier {
	return tx.(*Tx).PgxTx()
}
