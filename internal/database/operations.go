package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// CreateOperation inserts a new operation record
func (db *DB) CreateOperation(o *models.Operation) error {
	query := `
		INSERT INTO operations (
			account_id, order_id, source, symbol, side, quantity, price,
			trade_date, sequence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()

	err := db.conn.QueryRow(query,
		o.AccountID, o.OrderID, o.Source, o.Symbol, o.Side, o.Quantity, o.Price,
		nullableTime(o.TradeDate), o.Sequence, now,
	).Scan(&o.ID)

	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	o.CreatedAt = now
	return nil
}

// OperationExistsByOrderID checks if an operation with the given order_id and source already exists
func (db *DB) OperationExistsByOrderID(orderID, source string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM operations WHERE order_id = $1 AND source = $2)`
	var exists bool
	err := db.conn.QueryRow(query, orderID, source).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check operation existence: %w", err)
	}
	return exists, nil
}

// ListOperations retrieves every operation for an account in replay order
func (db *DB) ListOperations(accountID string) ([]models.Operation, error) {
	query := `
		SELECT id, account_id, order_id, source, symbol, side, quantity, price,
		       trade_date, sequence, created_at
		FROM operations
		WHERE account_id = $1
		ORDER BY trade_date ASC NULLS LAST, sequence ASC, id ASC
	`
	return db.scanOperations(db.conn.Query(query, accountID))
}

// ListOperationsBySymbol retrieves an account's operations for one symbol in replay order
func (db *DB) ListOperationsBySymbol(accountID, symbol string) ([]models.Operation, error) {
	query := `
		SELECT id, account_id, order_id, source, symbol, side, quantity, price,
		       trade_date, sequence, created_at
		FROM operations
		WHERE account_id = $1 AND symbol = $2
		ORDER BY trade_date ASC NULLS LAST, sequence ASC, id ASC
	`
	return db.scanOperations(db.conn.Query(query, accountID, symbol))
}

// RelabelOperations moves an account's historical operations from one symbol
// to another. Used when a ticker-change event is committed so replays of the
// rewritten history already reflect the rename.
func (db *DB) RelabelOperations(accountID, oldSymbol, newSymbol string) error {
	query := `UPDATE operations SET symbol = $3 WHERE account_id = $1 AND symbol = $2`
	_, err := db.conn.Exec(query, accountID, oldSymbol, newSymbol)
	if err != nil {
		return fmt.Errorf("failed to relabel operations from %s to %s: %w", oldSymbol, newSymbol, err)
	}
	return nil
}

func (db *DB) scanOperations(rows *sql.Rows, err error) ([]models.Operation, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var o models.Operation
		var tradeDate sql.NullTime
		var quantity, price sql.NullString

		err := rows.Scan(
			&o.ID, &o.AccountID, &o.OrderID, &o.Source, &o.Symbol, &o.Side,
			&quantity, &price, &tradeDate, &o.Sequence, &o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		if quantity.Valid {
			o.Quantity, _ = decimal.NewFromString(quantity.String)
		}
		if price.Valid {
			o.Price, _ = decimal.NewFromString(price.String)
		}
		if tradeDate.Valid {
			o.TradeDate = tradeDate.Time
		}

		ops = append(ops, o)
	}

	return ops, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
