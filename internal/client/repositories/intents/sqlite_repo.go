package intents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/common"
	"github.com/vroomly/rentclient/internal/dbx"
)

const selectColumns = `id, booking_id, amount, created_at, expires_at, status,
	provider_reference, message, qr_code_url, payment_url, description, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *models.PaymentIntent) error {
	query := `INSERT INTO payment_intents (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.BookingID, p.Amount,
		p.CreatedAt.UnixMilli(), p.ExpiresAt.UnixMilli(), string(p.Status),
		p.ProviderReference, p.Message, p.QRCodeURL, p.PaymentURL, p.Description,
		p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment intent: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, p *models.PaymentIntent, from models.PaymentStatus) error {
	query := `UPDATE payment_intents
		SET status = ?, provider_reference = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, query,
		string(p.Status), p.ProviderReference, p.Message, p.UpdatedAt.UnixMilli(),
		p.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return ErrStatusConflict
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM payment_intents WHERE id = ?`, id)
	return scanIntent(row)
}

func (r *SQLiteRepository) LatestByBooking(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM payment_intents
		WHERE booking_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, bookingID)
	return scanIntent(row)
}

func scanIntent(row *sql.Row) (*models.PaymentIntent, error) {
	var (
		p                               models.PaymentIntent
		status                          string
		createdAt, expiresAt, updatedAt int64
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &createdAt, &expiresAt, &status,
		&p.ProviderReference, &p.Message, &p.QRCodeURL, &p.PaymentURL, &p.Description, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment intent: %w", err)
	}
	p.Status = models.PaymentStatus(status)
	p.CreatedAt = time.UnixMilli(createdAt)
	p.ExpiresAt = time.UnixMilli(expiresAt)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	return &p, nil
}
