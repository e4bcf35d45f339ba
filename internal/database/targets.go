package database

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// TargetTree retrieves an account's target-allocation tree. Rows are stored
// flat with a parent reference and reassembled here; a missing strategy is
// an empty tree, not an error.
func (db *DB) TargetTree(accountID string) ([]*models.AllocationNode, error) {
	query := `
		SELECT id, account_id, level, name, symbol, target_percent, parent_id
		FROM allocation_targets
		WHERE account_id = $1
		ORDER BY id ASC
	`
	rows, err := db.conn.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation targets: %w", err)
	}
	defer rows.Close()

	byID := make(map[int]*models.AllocationNode)
	parentOf := make(map[int]int)
	var order []int

	for rows.Next() {
		var n models.AllocationNode
		var symbol sql.NullString
		var targetPercent sql.NullString
		var parentID sql.NullInt64

		if err := rows.Scan(&n.ID, &n.AccountID, &n.Level, &n.Name, &symbol, &targetPercent, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan allocation target: %w", err)
		}
		if symbol.Valid {
			n.Symbol = symbol.String
		}
		if targetPercent.Valid {
			n.TargetPercent, _ = decimal.NewFromString(targetPercent.String)
		}
		byID[n.ID] = &n
		order = append(order, n.ID)
		if parentID.Valid {
			parentOf[n.ID] = int(parentID.Int64)
		}
	}

	var roots []*models.AllocationNode
	for _, id := range order {
		node := byID[id]
		if pid, ok := parentOf[id]; ok {
			if parent, ok := byID[pid]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots, nil
}

// SaveTargetNode inserts or updates one allocation-target node
func (db *DB) SaveTargetNode(accountID string, node *models.AllocationNode, parentID *int) error {
	query := `
		INSERT INTO allocation_targets (account_id, level, name, symbol, target_percent, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, level, name) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			target_percent = EXCLUDED.target_percent,
			parent_id = EXCLUDED.parent_id
		RETURNING id
	`
	var symbol sql.NullString
	if node.Symbol != "" {
		symbol = sql.NullString{String: node.Symbol, Valid: true}
	}
	err := db.conn.QueryRow(query, accountID, node.Level, node.Name, symbol, node.TargetPercent, parentID).Scan(&node.ID)
	if err != nil {
		return fmt.Errorf("failed to save allocation target: %w", err)
	}
	node.AccountID = accountID
	return nil
}
