// Package exporter reconstructs an XLSX workbook from a tenant's
// stored roll tables, the exact inverse of the importer's sheet-naming
// convention. An import followed by an export reproduces the same
// regions, types, and entries, in the same order.
package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// Exporter builds workbooks from a Store.
type Exporter struct {
	store tables.Store
	log   *zap.Logger
}

// New constructs an Exporter.
//
// Precondition: store must be non-nil; log may be nil for a no-op logger.
func New(store tables.Store, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{store: store, log: log}
}

// Export serialises the tenant's stored tables to workbook bytes.
//
// Postcondition: Returns tables.ErrNoData when the tenant has no
// stored definitions (callers substitute the blank template); a type
// present in a types table but missing its stored encounter or reward
// half is silently skipped for that half.
func (e *Exporter) Export(ctx context.Context, tenantID int64) ([]byte, error) {
	has, err := e.store.HasTables(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("checking table presence: %w", err)
	}
	if !has {
		return nil, tables.ErrNoData
	}

	regions, err := e.store.Regions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if len(regions) > 0 {
		if err := addRegionsSheet(f, regions); err != nil {
			return nil, err
		}
		for i := range regions {
			if err := e.addRegionTables(ctx, f, tenantID, &regions[i].ID); err != nil {
				return nil, err
			}
		}
	} else {
		if err := e.addRegionTables(ctx, f, tenantID, nil); err != nil {
			return nil, err
		}
	}

	// Drop the workbook's default sheet; every real sheet is named.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialising workbook: %w", err)
	}
	e.log.Debug("export built", zap.Int64("tenant_id", tenantID), zap.Int("regions", len(regions)))
	return buf.Bytes(), nil
}

// addRegionTables emits the types sheet and then, in stored type
// order, the encounter and reward sheets for one region (or for the
// single default pass when regionID is nil).
func (e *Exporter) addRegionTables(ctx context.Context, f *excelize.File, tenantID int64, regionID *int) error {
	typeDef, err := e.store.Definition(ctx, tenantID, tables.GroupEncounterType, regionID, nil)
	if err != nil {
		if errors.Is(err, tables.ErrTableNotFound) {
			if regionID == nil {
				return tables.ErrNoData
			}
			// Regional gap; should not occur given import atomicity.
			return nil
		}
		return fmt.Errorf("fetching types table: %w", err)
	}

	if err := addTableSheet(f, tables.TypesSheet(regionID), tables.ColType, typeDef); err != nil {
		return err
	}

	for _, entry := range typeDef.Entries {
		t := entry.Result
		if t == "" {
			continue
		}

		encDef, err := e.store.Definition(ctx, tenantID, tables.GroupEncounter, regionID, &t)
		switch {
		case err == nil:
			if err := addTableSheet(f, tables.EncounterSheet(regionID, t), tables.ColResult, encDef); err != nil {
				return err
			}
		case !errors.Is(err, tables.ErrTableNotFound):
			return fmt.Errorf("fetching encounter table for %q: %w", t, err)
		}

		rewDef, err := e.store.Definition(ctx, tenantID, tables.GroupReward, regionID, &t)
		switch {
		case err == nil:
			if err := addTableSheet(f, tables.RewardSheet(regionID, t), tables.ColResult, rewDef); err != nil {
				return err
			}
		case !errors.Is(err, tables.ErrTableNotFound):
			return fmt.Errorf("fetching reward table for %q: %w", t, err)
		}
	}
	return nil
}

// addTableSheet writes one table as a sheet. Headers depend on the
// roll mode: range -> [min max kind], weight -> [weight kind],
// uniform -> [kind], where kind is "type" or "result".
func addTableSheet(f *excelize.File, title, kind string, def tables.Definition) error {
	if _, err := f.NewSheet(title); err != nil {
		return fmt.Errorf("creating sheet %q: %w", title, err)
	}

	var header []interface{}
	switch def.Mode {
	case tables.ModeRange:
		header = []interface{}{tables.ColMin, tables.ColMax, kind}
	case tables.ModeWeight:
		header = []interface{}{tables.ColWeight, kind}
	default:
		header = []interface{}{kind}
	}
	if err := f.SetSheetRow(title, "A1", &header); err != nil {
		return fmt.Errorf("writing header of %q: %w", title, err)
	}

	for i, entry := range def.Entries {
		var row []interface{}
		switch def.Mode {
		case tables.ModeRange:
			row = []interface{}{intCell(entry.Min), intCell(entry.Max), entry.Result}
		case tables.ModeWeight:
			row = []interface{}{intCell(entry.Weight), entry.Result}
		default:
			row = []interface{}{entry.Result}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d of %q: %w", i+2, title, err)
		}
		if err := f.SetSheetRow(title, cell, &row); err != nil {
			return fmt.Errorf("writing row %d of %q: %w", i+2, title, err)
		}
	}
	return nil
}

// intCell renders a nullable integer as a cell value, blank when nil.
func intCell(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// addRegionsSheet writes the Regions sheet in stored order.
func addRegionsSheet(f *excelize.File, regions []tables.Region) error {
	if _, err := f.NewSheet(tables.RegionsSheet); err != nil {
		return fmt.Errorf("creating Regions sheet: %w", err)
	}
	header := []interface{}{tables.ColRegionID, tables.ColRegionName}
	if err := f.SetSheetRow(tables.RegionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing Regions header: %w", err)
	}
	for i, reg := range regions {
		row := []interface{}{reg.ID, reg.Name}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing Regions row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(tables.RegionsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing Regions row %d: %w", i+2, err)
		}
	}
	return nil
}
