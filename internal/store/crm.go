package store

import (
	"context"
	"fmt"

	"skycrm/internal/domain"
)

// SeedBusiness creates a prospect together with a default first interaction,
// an initiated deal and a pending payment, all in one transaction. Either the
// whole bundle lands or none of it does.
func (s *Store) SeedBusiness(ctx context.Context, ownerID int64, seed domain.BusinessSeed) (domain.BusinessIDs, error) {
	var ids domain.BusinessIDs

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return ids, fmt.Errorf("seed business: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`INSERT INTO prospects (user_id, name, website, email, phone, pain, pain_score, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, seed.Name, seed.Website, seed.Email, seed.Phone, seed.Pain, seed.PainScore, seed.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return ids, domain.ErrConflict("a prospect with email %q already exists", seed.Email)
		}
		return ids, fmt.Errorf("seed business: prospect: %w", err)
	}
	if ids.ProspectID, err = result.LastInsertId(); err != nil {
		return ids, fmt.Errorf("seed business: prospect id: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (user_id, prospect_id, channel, type, attempt_number, content, success)
		 VALUES (?, ?, 'email', 'outbound', 0, 'Initial outreach', 0)`,
		ownerID, ids.ProspectID)
	if err != nil {
		return ids, fmt.Errorf("seed business: interaction: %w", err)
	}
	if ids.InteractionID, err = result.LastInsertId(); err != nil {
		return ids, fmt.Errorf("seed business: interaction id: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO deals (user_id, prospect_id, deal_value, stage, stage_reason)
		 VALUES (?, ?, 0, 'initiated', 'New business created')`,
		ownerID, ids.ProspectID)
	if err != nil {
		return ids, fmt.Errorf("seed business: deal: %w", err)
	}
	if ids.DealID, err = result.LastInsertId(); err != nil {
		return ids, fmt.Errorf("seed business: deal id: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO payments (user_id, deal_id, amount, method, status)
		 VALUES (?, ?, 0, 'manual', 'pending')`,
		ownerID, ids.DealID)
	if err != nil {
		return ids, fmt.Errorf("seed business: payment: %w", err)
	}
	if ids.PaymentID, err = result.LastInsertId(); err != nil {
		return ids, fmt.Errorf("seed business: payment id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ids, fmt.Errorf("seed business: commit: %w", err)
	}
	return ids, nil
}

// DashboardCounts is the aggregate block of the dashboard: how many
// prospects exist, how much outreach was actually attempted, and the
// completed revenue. An interaction or deal counts as attempted only when
// outreach happened (attempt_number > 0).
type DashboardCounts struct {
	Prospects             int64   `json:"prospects"`
	InteractionsAttempted int64   `json:"interactions_attempted"`
	DealsAttempted        int64   `json:"deals_attempted"`
	PaymentsTotal         float64 `json:"payments_total"`
}

// DashboardData carries the aggregate counts plus the owner's most recent
// prospects.
type DashboardData struct {
	Counts          DashboardCounts  `json:"counts"`
	RecentProspects []map[string]any `json:"recent_prospects"`
}

// Dashboard returns the owner's aggregate counts and the count most recent
// prospects (newest first).
func (s *Store) Dashboard(ctx context.Context, ownerID int64, count int) (*DashboardData, error) {
	data := &DashboardData{RecentProspects: []map[string]any{}}

	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM prospects WHERE user_id = ?",
		ownerID).Scan(&data.Counts.Prospects); err != nil {
		return nil, fmt.Errorf("dashboard prospects: %w", err)
	}

	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM interactions WHERE user_id = ? AND attempt_number > 0",
		ownerID).Scan(&data.Counts.InteractionsAttempted); err != nil {
		return nil, fmt.Errorf("dashboard interactions: %w", err)
	}

	if err := s.readDB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT d.id) FROM deals d
		 JOIN interactions i ON i.prospect_id = d.prospect_id AND i.user_id = d.user_id
		 WHERE d.user_id = ? AND i.attempt_number > 0`,
		ownerID).Scan(&data.Counts.DealsAttempted); err != nil {
		return nil, fmt.Errorf("dashboard deals: %w", err)
	}

	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE user_id = ? AND status = 'completed'",
		ownerID).Scan(&data.Counts.PaymentsTotal); err != nil {
		return nil, fmt.Errorf("dashboard payments: %w", err)
	}

	rows, err := s.readDB.QueryContext(ctx,
		"SELECT * FROM prospects WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		ownerID, count)
	if err != nil {
		return nil, fmt.Errorf("dashboard recent prospects: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dashboard recent prospects: %w", err)
		}
		data.RecentProspects = append(data.RecentProspects, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard recent prospects: %w", err)
	}

	return data, nil
}
