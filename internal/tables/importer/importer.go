// Package importer parses XLSX workbooks into validated roll-table
// snapshots and atomically replaces a tenant's stored table set.
//
// Import is strictly two-phase: every relevant sheet is parsed and
// validated with no storage mutation, and only a workbook with zero
// accumulated errors is committed, in a single transaction. Partial
// success is never reported.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// ErrStorage is returned when the phase-2 atomic replace fails. The
// stored state is unchanged; the cause is wrapped.
var ErrStorage = errors.New("storage failure during import")

// Importer runs workbook imports against a Store.
type Importer struct {
	store tables.Store
	log   *zap.Logger
}

// New constructs an Importer.
//
// Precondition: store must be non-nil; log may be nil for a no-op logger.
func New(store tables.Store, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, log: log}
}

// parsedRegion is one region's fully validated table set, staged for
// the atomic replace.
type parsedRegion struct {
	regionID  *int
	typeMode  tables.RollMode
	typeMax   *int
	typeOrder []string
	// typeEntries are the types sheet's own rows (a types sheet may
	// itself be weighted or ranged).
	typeEntries []tables.Entry
	encounters  map[string]parsedSheet
	rewards     map[string]parsedSheet
}

type parsedSheet struct {
	mode    tables.RollMode
	maxRoll *int
	entries []tables.Entry
}

// Import parses the workbook, validates every sheet, and on a clean
// pass atomically replaces the tenant's regions and tables.
//
// Postcondition: Returns a Report carrying either success Counts or
// the full ordered error list, with stored state untouched on any
// validation failure. A phase-2 failure returns an error wrapping
// ErrStorage and leaves stored state unchanged (transaction rollback).
func (imp *Importer) Import(ctx context.Context, tenantID int64, workbook []byte) (tables.Report, error) {
	importID := uuid.New().String()
	log := imp.log.With(zap.String("import_id", importID), zap.Int64("tenant_id", tenantID))

	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return tables.Report{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}

	var errs []tables.SheetError

	regions, regionErrs, err := parseRegionsSheet(f, sheets)
	if err != nil {
		return tables.Report{}, err
	}
	errs = append(errs, regionErrs...)

	regionalMode := sheets[tables.RegionsSheet]

	var regionIDs []*int
	if regionalMode {
		if len(regionErrs) > 0 {
			return tables.Report{Errors: errs}, nil
		}
		if len(regions) == 0 {
			return tables.Report{Errors: []tables.SheetError{{
				Sheet:   tables.RegionsSheet,
				Message: "Regions tab is present but has no valid rows.",
			}}}, nil
		}
		for i := range regions {
			regionIDs = append(regionIDs, &regions[i].ID)
		}
	} else {
		regionIDs = []*int{nil}
	}

	// Phase 1: parse and validate everything, no storage mutation.
	var (
		parsed     []parsedRegion
		totalTypes int
		totalEnc   int
		totalRew   int
	)

	for _, regionID := range regionIDs {
		typeSheet := tables.TypesSheet(regionID)
		pt, typeErrs, err := parseTypeSheet(f, sheets, typeSheet)
		if err != nil {
			return tables.Report{}, err
		}
		errs = append(errs, typeErrs...)
		if len(typeErrs) > 0 {
			continue
		}

		for _, t := range pt.typeOrder {
			encSheet := tables.EncounterSheet(regionID, t)
			rewSheet := tables.RewardSheet(regionID, t)
			if !sheets[encSheet] {
				errs = append(errs, tables.SheetError{Sheet: encSheet,
					Message: fmt.Sprintf("Missing tab for encounter type '%s'.", t)})
			}
			if !sheets[rewSheet] {
				errs = append(errs, tables.SheetError{Sheet: rewSheet,
					Message: fmt.Sprintf("Missing tab for reward type '%s'.", t)})
			}
		}
		if len(errs) > 0 {
			continue
		}

		pr := parsedRegion{
			regionID:    regionID,
			typeMode:    pt.mode,
			typeMax:     pt.maxRoll,
			typeOrder:   pt.typeOrder,
			typeEntries: pt.entries,
			encounters:  make(map[string]parsedSheet, len(pt.typeOrder)),
			rewards:     make(map[string]parsedSheet, len(pt.typeOrder)),
		}

		for _, t := range pt.typeOrder {
			ps, sheetErrs, err := parseResultSheet(f, sheets, tables.EncounterSheet(regionID, t))
			if err != nil {
				return tables.Report{}, err
			}
			errs = append(errs, sheetErrs...)
			pr.encounters[t] = ps
		}
		for _, t := range pt.typeOrder {
			ps, sheetErrs, err := parseResultSheet(f, sheets, tables.RewardSheet(regionID, t))
			if err != nil {
				return tables.Report{}, err
			}
			errs = append(errs, sheetErrs...)
			pr.rewards[t] = ps
		}
		if len(errs) > 0 {
			continue
		}

		parsed = append(parsed, pr)
		totalTypes += len(pt.typeOrder)
		for _, t := range pt.typeOrder {
			totalEnc += len(pr.encounters[t].entries)
			totalRew += len(pr.rewards[t].entries)
		}
	}

	if len(errs) > 0 {
		log.Warn("import rejected", zap.Int("errors", len(errs)))
		return tables.Report{Errors: errs}, nil
	}

	// Phase 2: atomic replace.
	snap := tables.Snapshot{Regional: regionalMode}
	if regionalMode {
		snap.Regions = regions
	}
	for _, pr := range parsed {
		snap.Definitions = append(snap.Definitions, tables.Definition{
			Group:    tables.GroupEncounterType,
			RegionID: pr.regionID,
			Mode:     pr.typeMode,
			MaxRoll:  pr.typeMax,
			Entries:  pr.typeEntries,
		})
		for _, t := range pr.typeOrder {
			t := t
			enc := pr.encounters[t]
			snap.Definitions = append(snap.Definitions, tables.Definition{
				Group:    tables.GroupEncounter,
				RegionID: pr.regionID,
				TypeKey:  &t,
				Mode:     enc.mode,
				MaxRoll:  enc.maxRoll,
				Entries:  enc.entries,
			})
			rew := pr.rewards[t]
			snap.Definitions = append(snap.Definitions, tables.Definition{
				Group:    tables.GroupReward,
				RegionID: pr.regionID,
				TypeKey:  &t,
				Mode:     rew.mode,
				MaxRoll:  rew.maxRoll,
				Entries:  rew.entries,
			})
		}
	}

	if err := imp.store.ReplaceTenant(ctx, tenantID, snap); err != nil {
		log.Error("import replace failed", zap.Error(err))
		return tables.Report{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	counts := tables.Counts{
		Regions:          len(snap.Regions),
		EncounterTypes:   totalTypes,
		EncounterEntries: totalEnc,
		// Reward tables are keyed off the encounter type list.
		RewardTypes:   totalTypes,
		RewardEntries: totalRew,
	}
	log.Info("import committed",
		zap.Int("regions", counts.Regions),
		zap.Int("encounter_types", counts.EncounterTypes),
		zap.Int("encounter_entries", counts.EncounterEntries),
		zap.Int("reward_entries", counts.RewardEntries))
	return tables.Report{Counts: counts}, nil
}

// parsedTypes is the outcome of parsing a types sheet.
type parsedTypes struct {
	mode      tables.RollMode
	maxRoll   *int
	typeOrder []string
	entries   []tables.Entry
}

// parseTypeSheet reads a types sheet. The required column is 'type';
// optional min/max or weight columns make the types table itself
// ranged or weighted. The type list preserves first-seen order and
// drops exact duplicates; entries keep every surviving row.
func parseTypeSheet(f *excelize.File, sheets map[string]bool, name string) (parsedTypes, []tables.SheetError, error) {
	if !sheets[name] {
		return parsedTypes{}, []tables.SheetError{{Sheet: name, Message: "Missing required tab."}}, nil
	}

	sd, err := readSheet(f, name)
	if err != nil {
		return parsedTypes{}, nil, err
	}
	if !sd.has(tables.ColType) {
		return parsedTypes{}, []tables.SheetError{{Sheet: name, Message: "Missing required column 'type'."}}, nil
	}

	mode, errs := detectMode(name, sd)
	pt := parsedTypes{mode: mode}

	switch mode {
	case tables.ModeRange:
		errs = append(errs, validateRanges(name, sd)...)
		maxSeen := 0
		for _, r := range sd.rows {
			t := sd.cell(r, tables.ColType)
			if t == "" {
				continue
			}
			mi := sd.cellInt(r, tables.ColMin)
			ma := sd.cellInt(r, tables.ColMax)
			if mi == nil || ma == nil {
				continue
			}
			if *ma > maxSeen {
				maxSeen = *ma
			}
			pt.typeOrder = append(pt.typeOrder, t)
			pt.entries = append(pt.entries, tables.Entry{Min: mi, Max: ma, Result: t})
		}
		if maxSeen > 0 {
			pt.maxRoll = &maxSeen
		}

	case tables.ModeWeight:
		for _, r := range sd.rows {
			t := sd.cell(r, tables.ColType)
			if t == "" {
				continue
			}
			w := sd.cellInt(r, tables.ColWeight)
			if w == nil || *w <= 0 {
				continue
			}
			pt.typeOrder = append(pt.typeOrder, t)
			pt.entries = append(pt.entries, tables.Entry{Weight: w, Result: t})
		}

	default:
		for _, r := range sd.rows {
			t := sd.cell(r, tables.ColType)
			if t == "" {
				continue
			}
			pt.typeOrder = append(pt.typeOrder, t)
			pt.entries = append(pt.entries, tables.Entry{Result: t})
		}
	}

	pt.typeOrder = dedupe(pt.typeOrder)
	if len(pt.typeOrder) == 0 {
		errs = append(errs, tables.SheetError{Sheet: name, Message: "No types found."})
	}
	return pt, errs, nil
}

// parseResultSheet reads an encounter or reward sheet. The required
// column is 'result'; rows with invalid min/max or weight are excluded
// from the result set rather than failing the sheet.
func parseResultSheet(f *excelize.File, sheets map[string]bool, name string) (parsedSheet, []tables.SheetError, error) {
	if !sheets[name] {
		return parsedSheet{}, []tables.SheetError{{Sheet: name, Message: "Missing required tab."}}, nil
	}

	sd, err := readSheet(f, name)
	if err != nil {
		return parsedSheet{}, nil, err
	}
	if !sd.has(tables.ColResult) {
		return parsedSheet{}, []tables.SheetError{{Sheet: name, Message: "Missing required column 'result'."}}, nil
	}

	mode, errs := detectMode(name, sd)
	ps := parsedSheet{mode: mode}

	switch mode {
	case tables.ModeRange:
		errs = append(errs, validateRanges(name, sd)...)
		maxSeen := 0
		for _, r := range sd.rows {
			result := sd.cell(r, tables.ColResult)
			if result == "" {
				continue
			}
			mi := sd.cellInt(r, tables.ColMin)
			ma := sd.cellInt(r, tables.ColMax)
			if mi == nil || ma == nil {
				continue
			}
			if *ma > maxSeen {
				maxSeen = *ma
			}
			ps.entries = append(ps.entries, tables.Entry{Min: mi, Max: ma, Result: result})
		}
		if maxSeen > 0 {
			ps.maxRoll = &maxSeen
		}

	case tables.ModeWeight:
		for _, r := range sd.rows {
			result := sd.cell(r, tables.ColResult)
			if result == "" {
				continue
			}
			w := sd.cellInt(r, tables.ColWeight)
			if w == nil || *w <= 0 {
				continue
			}
			ps.entries = append(ps.entries, tables.Entry{Weight: w, Result: result})
		}

	default:
		for _, r := range sd.rows {
			result := sd.cell(r, tables.ColResult)
			if result == "" {
				continue
			}
			ps.entries = append(ps.entries, tables.Entry{Result: result})
		}
	}

	if len(ps.entries) == 0 {
		errs = append(errs, tables.SheetError{Sheet: name, Message: "No results found."})
	}
	return ps, errs, nil
}

// parseRegionsSheet reads the Regions sheet when present. Rows with a
// missing, non-positive, or duplicate region_id, or a blank
// region_name, are per-row errors and excluded.
func parseRegionsSheet(f *excelize.File, sheets map[string]bool) ([]tables.Region, []tables.SheetError, error) {
	if !sheets[tables.RegionsSheet] {
		return nil, nil, nil
	}

	sd, err := readSheet(f, tables.RegionsSheet)
	if err != nil {
		return nil, nil, err
	}
	if !sd.has(tables.ColRegionID) || !sd.has(tables.ColRegionName) {
		return nil, []tables.SheetError{{Sheet: tables.RegionsSheet,
			Message: "Regions tab must have columns: region_id, region_name."}}, nil
	}

	var (
		regions []tables.Region
		errs    []tables.SheetError
		seen    = make(map[int]bool)
	)
	for _, r := range sd.rows {
		rid := sd.cellInt(r, tables.ColRegionID)
		name := sd.cell(r, tables.ColRegionName)

		switch {
		case rid == nil:
			errs = append(errs, tables.SheetError{Sheet: tables.RegionsSheet, Row: r.num,
				Message: "region_id must be an integer."})
		case *rid <= 0:
			errs = append(errs, tables.SheetError{Sheet: tables.RegionsSheet, Row: r.num,
				Message: "region_id must be a positive integer."})
		case name == "":
			errs = append(errs, tables.SheetError{Sheet: tables.RegionsSheet, Row: r.num,
				Message: "region_name is required."})
		case seen[*rid]:
			errs = append(errs, tables.SheetError{Sheet: tables.RegionsSheet, Row: r.num,
				Message: fmt.Sprintf("Duplicate region_id %d.", *rid)})
		default:
			seen[*rid] = true
			regions = append(regions, tables.Region{ID: *rid, Name: name, SortOrder: len(regions)})
		}
	}
	return regions, errs, nil
}

// dedupe drops exact duplicates preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
