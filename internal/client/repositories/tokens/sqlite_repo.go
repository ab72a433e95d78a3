package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/vroomly/rentclient/internal/dbx"
)

// SQLiteRepository stores tokens in the tokens table. Replace is only
// atomic when the repository is built on a transaction (see dbx.WithTx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Replace(ctx context.Context, rows []Row) error {
	if err := r.Clear(ctx); err != nil {
		return err
	}
	for _, row := range rows {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO tokens (kind, value, expires_at) VALUES (?, ?, ?)`,
			string(row.Kind), row.Value, row.ExpiresAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert %s token: %w", row.Kind, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, value, expires_at FROM tokens`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var (
			kind      string
			row       Row
			expiresAt int64
		)
		if err := rows.Scan(&kind, &row.Value, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		row.Kind = Kind(kind)
		row.ExpiresAt = time.UnixMilli(expiresAt)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate token rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
