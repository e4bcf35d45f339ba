package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// ReplaceAllPositions atomically replaces an account's derived positions and
// marks the corporate events consumed by the rebuild as applied. Either
// every derived position is written or none are; readers never observe a
// partially rebuilt account.
func (db *DB) ReplaceAllPositions(accountID string, positions []*models.Position, appliedEventIDs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete existing positions: %w", err)
	}

	query := `
		INSERT INTO positions (
			account_id, symbol, quantity, average_price, invested_value,
			realized_profit, current_price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	for _, p := range positions {
		err := tx.QueryRow(query,
			accountID, p.Symbol, p.Quantity, p.AveragePrice, p.InvestedValue,
			p.RealizedProfit, p.CurrentPrice, now, now,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert position for %s: %w", p.Symbol, err)
		}
		p.AccountID = accountID
		p.CreatedAt = now
		p.UpdatedAt = now
	}

	if err := markEventsAppliedTx(tx, appliedEventIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPositionsByAccount retrieves an account's current derived positions
func (db *DB) GetPositionsByAccount(accountID string) ([]*models.Position, error) {
	query := `
		SELECT id, account_id, symbol, quantity, average_price, invested_value,
		       realized_profit, current_price, created_at, updated_at
		FROM positions
		WHERE account_id = $1
		ORDER BY symbol ASC
	`
	return db.scanPositions(db.conn.Query(query, accountID))
}

// GetPositionBySymbol retrieves one of an account's positions
func (db *DB) GetPositionBySymbol(accountID, symbol string) (*models.Position, error) {
	query := `
		SELECT id, account_id, symbol, quantity, average_price, invested_value,
		       realized_profit, current_price, created_at, updated_at
		FROM positions
		WHERE account_id = $1 AND symbol = $2
	`
	row := db.conn.QueryRow(query, accountID, symbol)

	var p models.Position
	var currentPrice sql.NullString
	err := row.Scan(
		&p.ID, &p.AccountID, &p.Symbol, &p.Quantity, &p.AveragePrice,
		&p.InvestedValue, &p.RealizedProfit, &currentPrice, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if currentPrice.Valid {
		p.CurrentPrice, _ = decimal.NewFromString(currentPrice.String)
	}
	return &p, nil
}

func (db *DB) scanPositions(rows *sql.Rows, err error) ([]*models.Position, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		var currentPrice sql.NullString

		err := rows.Scan(
			&p.ID, &p.AccountID, &p.Symbol, &p.Quantity, &p.AveragePrice,
			&p.InvestedValue, &p.RealizedProfit, &currentPrice, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		if currentPrice.Valid {
			p.CurrentPrice, _ = decimal.NewFromString(currentPrice.String)
		}

		positions = append(positions, &p)
	}

	return positions, nil
}
