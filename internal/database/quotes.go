package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// UpsertQuote inserts or refreshes the latest quote for a symbol
func (db *DB) UpsertQuote(q *models.Quote) error {
	query := `
		INSERT INTO quotes (symbol, price, quoted_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			quoted_at = EXCLUDED.quoted_at
		RETURNING id
	`
	err := db.conn.QueryRow(query, q.Symbol, q.Price, q.QuotedAt, time.Now()).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert quote: %w", err)
	}
	return nil
}

// GetQuote retrieves the latest stored quote for a symbol
func (db *DB) GetQuote(symbol string) (*models.Quote, error) {
	query := `
		SELECT id, symbol, price, quoted_at, created_at
		FROM quotes
		WHERE symbol = $1
	`
	var q models.Quote
	err := db.conn.QueryRow(query, symbol).Scan(&q.ID, &q.Symbol, &q.Price, &q.QuotedAt, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quote not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return &q, nil
}
