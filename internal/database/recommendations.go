package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// SaveRecommendation persists an assembled recommendation. Actions are
// stored as a jsonb document; they are read back whole, never queried
// individually.
func (db *DB) SaveRecommendation(r *models.Recommendation) error {
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO recommendations (
			account_id, date, status, actions, total_sales_value,
			sales_limit_reached, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	if r.Status == "" {
		r.Status = models.RecommendationPending
	}

	err = db.conn.QueryRow(query,
		r.AccountID, r.Date, r.Status, actions, r.TotalSalesValue,
		r.SalesLimitReached, now,
	).Scan(&r.ID)

	if err != nil {
		return fmt.Errorf("failed to create recommendation: %w", err)
	}
	r.CreatedAt = now
	return nil
}

// GetRecommendationByID retrieves a recommendation by ID
func (db *DB) GetRecommendationByID(id int) (*models.Recommendation, error) {
	query := `
		SELECT id, account_id, date, status, actions, total_sales_value,
		       sales_limit_reached, created_at
		FROM recommendations
		WHERE id = $1
	`
	return db.scanSingleRecommendation(db.conn.QueryRow(query, id))
}

// GetRecommendationsByAccount retrieves an account's recommendations, newest first
func (db *DB) GetRecommendationsByAccount(accountID string, limit int) ([]*models.Recommendation, error) {
	query := `
		SELECT id, account_id, date, status, actions, total_sales_value,
		       sales_limit_reached, created_at
		FROM recommendations
		WHERE account_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		r, err := scanRecommendationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// UpdateRecommendationStatus transitions a recommendation between
// pending, applied and dismissed
func (db *DB) UpdateRecommendationStatus(id int, status string) error {
	switch status {
	case models.RecommendationPending, models.RecommendationApplied, models.RecommendationDismissed:
	default:
		return fmt.Errorf("invalid recommendation status: %q", status)
	}
	query := `UPDATE recommendations SET status = $2 WHERE id = $1`
	result, err := db.conn.Exec(query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update recommendation status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("recommendation not found: %d", id)
	}
	return nil
}

// MonthSalesTotal sums the committed sale value of an account's
// recommendations dated inside the given month. Dismissed recommendations
// do not count against the monthly ceiling.
func (db *DB) MonthSalesTotal(accountID string, month time.Time) (decimal.Decimal, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT COALESCE(SUM(total_sales_value), 0)
		FROM recommendations
		WHERE account_id = $1 AND date >= $2 AND date < $3 AND status != $4
	`
	var total decimal.Decimal
	err := db.conn.QueryRow(query, accountID, start, end, models.RecommendationDismissed).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum month sales: %w", err)
	}
	return total, nil
}

func (db *DB) scanSingleRecommendation(row *sql.Row) (*models.Recommendation, error) {
	r, err := scanRecommendationRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation not found")
	}
	return r, err
}

func scanRecommendationRow(scan func(dest ...interface{}) error) (*models.Recommendation, error) {
	var r models.Recommendation
	var actions []byte

	err := scan(
		&r.ID, &r.AccountID, &r.Date, &r.Status, &actions,
		&r.TotalSalesValue, &r.SalesLimitReached, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}

	return &r, nil
}
