// Package store implements tenant-scoped persistence for registered resource
// kinds. Statement text only ever contains identifiers taken from the frozen
// schema registry; every value, including the owner ID, is bound.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"skycrm/internal/domain"
	"skycrm/internal/schema"
)

// Store executes registry-driven SQL against the write/read pool pair.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
	reg     *schema.Registry
}

// New creates a Store over the pool pair and the frozen registry.
func New(writeDB, readDB *sql.DB, reg *schema.Registry) *Store {
	return &Store{writeDB: writeDB, readDB: readDB, reg: reg}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a validated payload for the owner and returns the stored row.
// Unknown payload fields are dropped; the validator has already rejected them
// by the time a payload reaches the store.
func (s *Store) Create(ctx context.Context, ownerID int64, kind string, payload map[string]any) (map[string]any, error) {
	res, ok := s.reg.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	cols := []string{schema.OwnerKey}
	args := []any{ownerID}
	for _, field := range res.FieldOrder {
		value, present := payload[field]
		if !present {
			continue
		}
		cols = append(cols, field)
		args = append(args, schema.BindValue(res.Fields[field], value))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind, strings.Join(cols, ", "), placeholders(len(cols)))

	result, err := s.writeDB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict("duplicate value violates a uniqueness constraint on %s", kind)
		}
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: last insert id: %w", kind, err)
	}

	return s.get(ctx, s.writeDB, ownerID, kind, id)
}

// List returns every row of kind belonging to the owner, oldest first.
func (s *Store) List(ctx context.Context, ownerID int64, kind string) ([]map[string]any, error) {
	if _, ok := s.reg.Get(kind); !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY id", kind, schema.OwnerKey)
	rows, err := s.readDB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close() //nolint:errcheck

	out := []map[string]any{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

// Get returns one owned row by ID. A row that exists under another tenant is
// reported as not found.
func (s *Store) Get(ctx context.Context, ownerID int64, kind string, id int64) (map[string]any, error) {
	if _, ok := s.reg.Get(kind); !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return s.get(ctx, s.readDB, ownerID, kind, id)
}

// Update applies a validated partial payload to an owned row and returns the
// row as stored afterwards.
func (s *Store) Update(ctx context.Context, ownerID int64, kind string, id int64, payload map[string]any) (map[string]any, error) {
	res, ok := s.reg.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	var sets []string
	var args []any
	for _, field := range res.FieldOrder {
		value, present := payload[field]
		if !present {
			continue
		}
		sets = append(sets, field+" = ?")
		args = append(args, schema.BindValue(res.Fields[field], value))
	}
	if len(sets) == 0 {
		return nil, domain.ErrValidation("empty update payload")
	}
	args = append(args, id, ownerID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND %s = ?",
		kind, strings.Join(sets, ", "), schema.OwnerKey)

	result, err := s.writeDB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict("duplicate value violates a uniqueness constraint on %s", kind)
		}
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s: rows affected: %w", kind, err)
	}
	if affected == 0 {
		return nil, domain.ErrNotFound("%s %d not found", kind, id)
	}

	return s.get(ctx, s.writeDB, ownerID, kind, id)
}

// Delete removes an owned row and its dependents in one transaction.
//
// Cascade policy: deleting a prospect removes its interactions, its deals and
// those deals' payments; deleting a deal removes its payments; deleting an
// interaction or a payment removes only that row.
func (s *Store) Delete(ctx context.Context, ownerID int64, kind string, id int64) error {
	if _, ok := s.reg.Get(kind); !ok {
		return fmt.Errorf("unknown resource kind %q", kind)
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s: begin: %w", kind, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var one int
	probe := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ? AND %s = ?", kind, schema.OwnerKey)
	if err := tx.QueryRowContext(ctx, probe, id, ownerID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("%s %d not found", kind, id)
		}
		return fmt.Errorf("delete %s: probe: %w", kind, err)
	}

	switch kind {
	case schema.KindProspects:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM payments WHERE user_id = ? AND deal_id IN
			     (SELECT id FROM deals WHERE user_id = ? AND prospect_id = ?)`,
			ownerID, ownerID, id)
		if err == nil {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM deals WHERE user_id = ? AND prospect_id = ?", ownerID, id)
		}
		if err == nil {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM interactions WHERE user_id = ? AND prospect_id = ?", ownerID, id)
		}
	case schema.KindDeals:
		_, err = tx.ExecContext(ctx,
			"DELETE FROM payments WHERE user_id = ? AND deal_id = ?", ownerID, id)
	}
	if err != nil {
		return fmt.Errorf("delete %s: cascade: %w", kind, err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND %s = ?", kind, schema.OwnerKey)
	if _, err := tx.ExecContext(ctx, query, id, ownerID); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %s: commit: %w", kind, err)
	}
	return nil
}

// RefExists reports whether table.column = value exists for the owner. The
// table name is accepted only if it is a registered kind.
func (s *Store) RefExists(ctx context.Context, ownerID int64, table, column string, value any) (bool, error) {
	if _, ok := s.reg.Get(table); !ok {
		return false, fmt.Errorf("foreign key target %q is not a registered kind", table)
	}

	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? AND %s = ?", table, column, schema.OwnerKey)
	err := s.readDB.QueryRowContext(ctx, query, value, ownerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ref probe %s.%s: %w", table, column, err)
	}
	return true, nil
}

// ValueTaken reports whether another owned row of kind already holds value in
// field. excludeID > 0 exempts the row being updated.
func (s *Store) ValueTaken(ctx context.Context, ownerID int64, kind, field string, value any, excludeID int64) (bool, error) {
	if _, ok := s.reg.Get(kind); !ok {
		return false, fmt.Errorf("unknown resource kind %q", kind)
	}

	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? AND %s = ?", kind, field, schema.OwnerKey)
	args := []any{value, ownerID}
	if excludeID > 0 {
		query += " AND id != ?"
		args = append(args, excludeID)
	}

	var one int
	err := s.readDB.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("uniqueness probe %s.%s: %w", kind, field, err)
	}
	return true, nil
}

func (s *Store) get(ctx context.Context, q querier, ownerID int64, kind string, id int64) (map[string]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ? AND %s = ?", kind, schema.OwnerKey)
	rows, err := q.QueryContext(ctx, query, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	defer rows.Close() //nolint:errcheck

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get %s: %w", kind, err)
		}
		return nil, domain.ErrNotFound("%s %d not found", kind, id)
	}
	record, err := scanRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return record, nil
}

// scanRecord reads the current row into a column-keyed map. TEXT columns come
// back as []byte from the driver and are converted to string.
func scanRecord(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	record := make(map[string]any, len(cols))
	for i, col := range cols {
		switch v := values[i].(type) {
		case []byte:
			record[col] = string(v)
		default:
			record[col] = v
		}
	}
	return record, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
