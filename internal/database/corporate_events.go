package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// CreateCorporateEvent inserts a validated corporate event. Malformed events
// are rejected here, at registration time, never during replay.
func (db *DB) CreateCorporateEvent(e *models.CorporateEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid corporate event: %w", err)
	}

	query := `
		INSERT INTO corporate_events (
			event_id, account_id, symbol, kind, ex_date, ratio_numerator,
			ratio_denominator, previous_symbol, unit_value, applied, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id
	`
	now := time.Now()

	var prev sql.NullString
	if e.PreviousSymbol != "" {
		prev = sql.NullString{String: e.PreviousSymbol, Valid: true}
	}

	err := db.conn.QueryRow(query,
		e.EventID, e.AccountID, e.Symbol, e.Kind, e.ExDate, e.RatioNumerator,
		e.RatioDenominator, prev, e.UnitValue, e.Applied, now,
	).Scan(&e.ID)

	if err == sql.ErrNoRows {
		// Conflict on event_id: already registered, idempotent no-op.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create corporate event: %w", err)
	}
	e.CreatedAt = now
	return nil
}

// ListEvents retrieves every corporate event for an account ordered by ex-date
func (db *DB) ListEvents(accountID string) ([]models.CorporateEvent, error) {
	query := `
		SELECT id, event_id, account_id, symbol, kind, ex_date, ratio_numerator,
		       ratio_denominator, previous_symbol, unit_value, applied, created_at
		FROM corporate_events
		WHERE account_id = $1
		ORDER BY ex_date ASC, id ASC
	`
	return db.scanEvents(db.conn.Query(query, accountID))
}

// ListEventsBySymbol retrieves an account's corporate events for one symbol
func (db *DB) ListEventsBySymbol(accountID, symbol string) ([]models.CorporateEvent, error) {
	query := `
		SELECT id, event_id, account_id, symbol, kind, ex_date, ratio_numerator,
		       ratio_denominator, previous_symbol, unit_value, applied, created_at
		FROM corporate_events
		WHERE account_id = $1 AND (symbol = $2 OR previous_symbol = $2)
		ORDER BY ex_date ASC, id ASC
	`
	return db.scanEvents(db.conn.Query(query, accountID, symbol))
}

// markEventsAppliedTx flags the given event IDs as consumed by a committed
// rebuild. It only runs inside the ReplaceAllPositions transaction so the
// flags and the derived positions commit together.
func markEventsAppliedTx(tx *sql.Tx, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `UPDATE corporate_events SET applied = TRUE WHERE event_id = ANY($1)`
	if _, err := tx.Exec(query, pq.Array(eventIDs)); err != nil {
		return fmt.Errorf("failed to mark events applied: %w", err)
	}
	return nil
}

func (db *DB) scanEvents(rows *sql.Rows, err error) ([]models.CorporateEvent, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query corporate events: %w", err)
	}
	defer rows.Close()

	var events []models.CorporateEvent
	for rows.Next() {
		var e models.CorporateEvent
		var prev sql.NullString
		var unitValue sql.NullString

		err := rows.Scan(
			&e.ID, &e.EventID, &e.AccountID, &e.Symbol, &e.Kind, &e.ExDate,
			&e.RatioNumerator, &e.RatioDenominator, &prev, &unitValue,
			&e.Applied, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan corporate event: %w", err)
		}

		if prev.Valid {
			e.PreviousSymbol = prev.String
		}
		if unitValue.Valid {
			e.UnitValue, _ = decimal.NewFromString(unitValue.String)
		}

		events = append(events, e)
	}

	return events, nil
}
