package ordersdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bapflow/internal/protocol"
)

// ErrOrderNotFound signals no order exists for a transaction id.
var ErrOrderNotFound = errors.New("order not found")

// Record is the persisted order state for one transaction. PaymentStatus
// is nil until the order has been confirmed.
type Record struct {
	TransactionID string
	BppID         string
	MessageID     string
	ParentOrderID string
	PaymentStatus *string
	Order         *protocol.Order
}

// Store persists order records in Postgres keyed by transaction id.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store backed by Postgres.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the orders table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			transaction_id TEXT PRIMARY KEY,
			bpp_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			parent_order_id TEXT NOT NULL DEFAULT '',
			payment_status TEXT,
			order_doc JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// GetByTransactionID fetches the record for a transaction id.
func (s *Store) GetByTransactionID(ctx context.Context, transactionID string) (Record, error) {
	if transactionID == "" {
		return Record{}, fmt.Errorf("transaction id required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, bpp_id, message_id, parent_order_id, payment_status, order_doc
		FROM orders
		WHERE transaction_id = $1`,
		transactionID,
	)

	var record Record
	var orderDoc []byte
	err := row.Scan(
		&record.TransactionID,
		&record.BppID,
		&record.MessageID,
		&record.ParentOrderID,
		&record.PaymentStatus,
		&orderDoc,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrOrderNotFound
	}
	if err != nil {
		return Record{}, err
	}

	if len(orderDoc) > 0 {
		record.Order = &protocol.Order{}
		if err := json.Unmarshal(orderDoc, record.Order); err != nil {
			return Record{}, fmt.Errorf("order %s: decode order_doc: %w", transactionID, err)
		}
	}
	return record, nil
}

// Upsert writes the record for a transaction id, last-writer-wins.
func (s *Store) Upsert(ctx context.Context, transactionID string, record Record) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id required")
	}

	var orderDoc []byte
	if record.Order != nil {
		var err error
		if orderDoc, err = json.Marshal(record.Order); err != nil {
			return fmt.Errorf("order %s: encode order_doc: %w", transactionID, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (transaction_id, bpp_id, message_id, parent_order_id, payment_status, order_doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO UPDATE SET
			bpp_id = EXCLUDED.bpp_id,
			message_id = EXCLUDED.message_id,
			parent_order_id = EXCLUDED.parent_order_id,
			payment_status = EXCLUDED.payment_status,
			order_doc = EXCLUDED.order_doc,
			updated_at = NOW()`,
		transactionID,
		record.BppID,
		record.MessageID,
		record.ParentOrderID,
		record.PaymentStatus,
		orderDoc,
	)
	return err
}
