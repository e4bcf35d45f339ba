package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// ReplaceRankedUniverse atomically replaces a strategy's ranking universe.
// The ranking feed refreshes wholesale, so the previous universe is dropped
// in the same transaction.
func (db *DB) ReplaceRankedUniverse(strategyID string, candidates []*models.RankedCandidate) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ranked_universe WHERE strategy_id = $1`, strategyID); err != nil {
		return fmt.Errorf("failed to delete existing universe: %w", err)
	}

	query := `
		INSERT INTO ranked_universe (strategy_id, symbol, rank, name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	now := time.Now()
	for _, c := range candidates {
		err := tx.QueryRow(query, strategyID, c.Symbol, c.Rank, c.Name, now).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.Symbol, err)
		}
		c.StrategyID = strategyID
		c.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CurrentUniverse retrieves a strategy's ranking universe ordered by rank
func (db *DB) CurrentUniverse(strategyID string) ([]models.RankedCandidate, error) {
	query := `
		SELECT id, strategy_id, symbol, rank, name, updated_at
		FROM ranked_universe
		WHERE strategy_id = $1
		ORDER BY rank ASC
	`
	rows, err := db.conn.Query(query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked universe: %w", err)
	}
	defer rows.Close()

	var candidates []models.RankedCandidate
	for rows.Next() {
		var c models.RankedCandidate
		var name sql.NullString
		if err := rows.Scan(&c.ID, &c.StrategyID, &c.Symbol, &c.Rank, &name, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if name.Valid {
			c.Name = name.String
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}
