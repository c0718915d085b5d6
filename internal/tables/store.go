package tables

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned when no definition matches a selector.
var ErrTableNotFound = errors.New("table not found")

// ErrRegionNotFound is returned when a region id has no stored row.
var ErrRegionNotFound = errors.New("region not found")

// ErrNoData is returned when an export is requested for a tenant with
// no stored definitions. Callers substitute the blank template.
var ErrNoData = errors.New("no imported data")

// Store is the persistence contract for roll tables. Implemented by
// the Postgres repository; consumed by the importer, exporter, roller,
// and command layer.
//
// All methods are safe for concurrent use. ReplaceTenant and
// DeleteTenant are atomic: they either apply completely or leave the
// stored state untouched.
type Store interface {
	// ReplaceTenant atomically replaces the tenant's regions,
	// definitions, and entries with the snapshot.
	ReplaceTenant(ctx context.Context, tenantID int64, snap Snapshot) error

	// Definition fetches the single table matching the selector
	// exactly (nil matches only the stored NULL), entries in
	// sort order. Returns ErrTableNotFound when absent.
	Definition(ctx context.Context, tenantID int64, group Group, regionID *int, typeKey *string) (Definition, error)

	// Regions lists the tenant's regions in display order. An empty
	// slice means the tenant is in default mode.
	Regions(ctx context.Context, tenantID int64) ([]Region, error)

	// RegionName resolves a region id to its display name.
	// Returns ErrRegionNotFound when absent.
	RegionName(ctx context.Context, tenantID int64, regionID int) (string, error)

	// HasTables reports whether the tenant has any stored definitions.
	HasTables(ctx context.Context, tenantID int64) (bool, error)

	// DeleteTenant removes all stored data for the tenant.
	DeleteTenant(ctx context.Context, tenantID int64) error
}
