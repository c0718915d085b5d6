package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// ErrDuplicateKey is returned when a snapshot carries two definitions
// with the same (group, region, type) key. The check treats a NULL
// region or type as a normal key value, which the engine's native
// NULL-distinctness would not.
var ErrDuplicateKey = errors.New("duplicate table key")

// TableRepository provides roll-table persistence operations. It
// implements tables.Store.
type TableRepository struct {
	db *pgxpool.Pool
}

// NewTableRepository creates a TableRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTableRepository(db *pgxpool.Pool) *TableRepository {
	return &TableRepository{db: db}
}

// defKey renders a definition's selector with NULL as a normal value,
// for application-layer uniqueness enforcement.
func defKey(d tables.Definition) string {
	region := "-"
	if d.RegionID != nil {
		region = fmt.Sprintf("%d", *d.RegionID)
	}
	typ := "-"
	if d.TypeKey != nil {
		typ = *d.TypeKey
	}
	return fmt.Sprintf("%s|%s|%s", d.Group, region, typ)
}

// ReplaceTenant atomically replaces the tenant's regions, table
// definitions, and entries with the snapshot.
//
// Precondition: snap must come from a fully validated import.
// Postcondition: Either all prior rows for the tenant are replaced by
// the snapshot, or (on any error) the stored state is unchanged.
func (r *TableRepository) ReplaceTenant(ctx context.Context, tenantID int64, snap tables.Snapshot) error {
	seen := make(map[string]bool, len(snap.Definitions))
	for _, d := range snap.Definitions {
		key := defKey(d)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		seen[key] = true
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updatedAt := time.Now().UTC()

	if _, err := tx.Exec(ctx,
		`INSERT INTO tenant_config (tenant_id, updated_at)
		 VALUES ($1, $2)
		 ON CONFLICT (tenant_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		tenantID, updatedAt,
	); err != nil {
		return fmt.Errorf("upserting tenant config: %w", err)
	}

	// table_entry rows cascade with their table_def.
	if _, err := tx.Exec(ctx, `DELETE FROM table_def WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting table definitions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM region WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting regions: %w", err)
	}

	for i, reg := range snap.Regions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO region (tenant_id, region_id, region_name, sort_order)
			 VALUES ($1, $2, $3, $4)`,
			tenantID, reg.ID, reg.Name, i,
		); err != nil {
			return fmt.Errorf("inserting region %d: %w", reg.ID, err)
		}
	}

	for _, def := range snap.Definitions {
		var tableID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO table_def (tenant_id, group_key, region_id, type_key, roll_mode, max_roll, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			tenantID, string(def.Group), def.RegionID, def.TypeKey, string(def.Mode), def.MaxRoll, updatedAt,
		).Scan(&tableID)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, defKey(def))
			}
			return fmt.Errorf("inserting table %s: %w", defKey(def), err)
		}

		for j, e := range def.Entries {
			if _, err := tx.Exec(ctx,
				`INSERT INTO table_entry (table_id, min_roll, max_roll, weight, result, sort_order)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				tableID, e.Min, e.Max, e.Weight, e.Result, j,
			); err != nil {
				return fmt.Errorf("inserting entry %d of table %s: %w", j, defKey(def), err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}

// Definition fetches the single table matching the selector exactly,
// with entries in sort order.
//
// Postcondition: Returns the Definition or tables.ErrTableNotFound.
// A nil regionID or typeKey matches only the stored NULL.
func (r *TableRepository) Definition(ctx context.Context, tenantID int64, group tables.Group, regionID *int, typeKey *string) (tables.Definition, error) {
	var (
		tableID int64
		def     tables.Definition
	)
	def.Group = group
	def.RegionID = regionID
	def.TypeKey = typeKey

	err := r.db.QueryRow(ctx,
		`SELECT id, roll_mode, max_roll
		 FROM table_def
		 WHERE tenant_id = $1
		   AND group_key = $2
		   AND region_id IS NOT DISTINCT FROM $3
		   AND type_key IS NOT DISTINCT FROM $4`,
		tenantID, string(group), regionID, typeKey,
	).Scan(&tableID, &def.Mode, &def.MaxRoll)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tables.Definition{}, tables.ErrTableNotFound
		}
		return tables.Definition{}, fmt.Errorf("querying table definition: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT min_roll, max_roll, weight, result, sort_order
		 FROM table_entry
		 WHERE table_id = $1
		 ORDER BY sort_order ASC`,
		tableID,
	)
	if err != nil {
		return tables.Definition{}, fmt.Errorf("querying table entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e tables.Entry
		if err := rows.Scan(&e.Min, &e.Max, &e.Weight, &e.Result, &e.SortOrder); err != nil {
			return tables.Definition{}, fmt.Errorf("scanning table entry: %w", err)
		}
		def.Entries = append(def.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return tables.Definition{}, fmt.Errorf("reading table entries: %w", err)
	}

	return def, nil
}

// Regions lists the tenant's regions in display order.
func (r *TableRepository) Regions(ctx context.Context, tenantID int64) ([]tables.Region, error) {
	rows, err := r.db.Query(ctx,
		`SELECT region_id, region_name, sort_order
		 FROM region
		 WHERE tenant_id = $1
		 ORDER BY sort_order ASC, region_id ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying regions: %w", err)
	}
	defer rows.Close()

	var regions []tables.Region
	for rows.Next() {
		var reg tables.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning region: %w", err)
		}
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading regions: %w", err)
	}
	return regions, nil
}

// RegionName resolves a region id to its display name.
//
// Postcondition: Returns the name or tables.ErrRegionNotFound.
func (r *TableRepository) RegionName(ctx context.Context, tenantID int64, regionID int) (string, error) {
	var name string
	err := r.db.QueryRow(ctx,
		`SELECT region_name FROM region WHERE tenant_id = $1 AND region_id = $2`,
		tenantID, regionID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", tables.ErrRegionNotFound
		}
		return "", fmt.Errorf("querying region name: %w", err)
	}
	return name, nil
}

// HasTables reports whether the tenant has any stored definitions.
func (r *TableRepository) HasTables(ctx context.Context, tenantID int64) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx,
		`SELECT 1 FROM table_def WHERE tenant_id = $1 LIMIT 1`,
		tenantID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying table presence: %w", err)
	}
	return true, nil
}

// DeleteTenant removes all stored data for the tenant in one
// transaction. Used by the irreversible-delete command.
//
// Postcondition: Either every region, definition, entry, and config
// row for the tenant is gone, or the stored state is unchanged.
func (r *TableRepository) DeleteTenant(ctx context.Context, tenantID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM region WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting regions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM table_def WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting table definitions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tenant_config WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting tenant config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
