package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"pgregory.net/rapid"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// fakeStore records ReplaceTenant calls; the read methods are unused
// by imports.
type fakeStore struct {
	replaced   []tables.Snapshot
	replaceErr error
}

func (s *fakeStore) ReplaceTenant(_ context.Context, _ int64, snap tables.Snapshot) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = append(s.replaced, snap)
	return nil
}

func (s *fakeStore) Definition(context.Context, int64, tables.Group, *int, *string) (tables.Definition, error) {
	return tables.Definition{}, tables.ErrTableNotFound
}

func (s *fakeStore) Regions(context.Context, int64) ([]tables.Region, error) { return nil, nil }

func (s *fakeStore) RegionName(context.Context, int64, int) (string, error) {
	return "", tables.ErrRegionNotFound
}

func (s *fakeStore) HasTables(context.Context, int64) (bool, error) { return false, nil }

func (s *fakeStore) DeleteTenant(context.Context, int64) error { return nil }

type sheet struct {
	name string
	rows [][]interface{}
}

func buildWorkbook(t rapid.TB, sheets []sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	for _, s := range sheets {
		_, err := f.NewSheet(s.name)
		require.NoError(t, err)
		for i, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func defaultWorkbook(t testing.TB) []byte {
	return buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"}, {"Social"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"result"}, {"Goblin ambush"}, {"Bandit patrol"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
		{name: "Encounter - Social", rows: [][]interface{}{
			{"result"}, {"Travelling merchant"},
		}},
		{name: "Reward - Social", rows: [][]interface{}{
			{"result"}, {"A favor"}, {"A rumor"},
		}},
	})
}

func TestImport_DefaultModeSuccess(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	report, err := imp.Import(context.Background(), 42, defaultWorkbook(t))
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected errors: %v", report.Errors)

	assert.Equal(t, 0, report.Counts.Regions)
	assert.Equal(t, 2, report.Counts.EncounterTypes)
	assert.Equal(t, 3, report.Counts.EncounterEntries)
	assert.Equal(t, 2, report.Counts.RewardTypes)
	assert.Equal(t, 3, report.Counts.RewardEntries)

	require.Len(t, store.replaced, 1)
	snap := store.replaced[0]
	assert.False(t, snap.Regional)
	assert.Empty(t, snap.Regions)

	// Types table first, then encounter/reward pairs in type order.
	require.Len(t, snap.Definitions, 5)
	assert.Equal(t, tables.GroupEncounterType, snap.Definitions[0].Group)
	assert.Equal(t, tables.ModeUniform, snap.Definitions[0].Mode)
	assert.Nil(t, snap.Definitions[0].RegionID)
	assert.Nil(t, snap.Definitions[0].TypeKey)

	assert.Equal(t, tables.GroupEncounter, snap.Definitions[1].Group)
	assert.Equal(t, "Combat", *snap.Definitions[1].TypeKey)
	assert.Equal(t, tables.GroupReward, snap.Definitions[2].Group)
	assert.Equal(t, "Combat", *snap.Definitions[2].TypeKey)
	assert.Equal(t, tables.GroupEncounter, snap.Definitions[3].Group)
	assert.Equal(t, "Social", *snap.Definitions[3].TypeKey)
	assert.Equal(t, tables.GroupReward, snap.Definitions[4].Group)
	assert.Equal(t, "Social", *snap.Definitions[4].TypeKey)
}

func TestImport_WeightedSheet(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type", "weight"}, {"Combat", 3}, {"Social", 1},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"result", "weight"}, {"Goblins", 5}, {"Bandits", 1},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
		{name: "Encounter - Social", rows: [][]interface{}{
			{"result"}, {"Merchant"},
		}},
		{name: "Reward - Social", rows: [][]interface{}{
			{"result"}, {"A favor"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected errors: %v", report.Errors)

	snap := store.replaced[0]
	assert.Equal(t, tables.ModeWeight, snap.Definitions[0].Mode)
	require.Len(t, snap.Definitions[0].Entries, 2)
	assert.Equal(t, 3, *snap.Definitions[0].Entries[0].Weight)

	combat := snap.Definitions[1]
	assert.Equal(t, tables.ModeWeight, combat.Mode)
	assert.Equal(t, 5, *combat.Entries[0].Weight)
}

func TestImport_RangedSheet(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"min", "max", "result"}, {1, 10, "Goblins"}, {11, 20, "Bandits"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected errors: %v", report.Errors)

	combat := store.replaced[0].Definitions[1]
	assert.Equal(t, tables.ModeRange, combat.Mode)
	require.NotNil(t, combat.MaxRoll)
	assert.Equal(t, 20, *combat.MaxRoll)
	require.Len(t, combat.Entries, 2)
	assert.Equal(t, 1, *combat.Entries[0].Min)
	assert.Equal(t, 10, *combat.Entries[0].Max)
}

func TestImport_OverlappingRanges(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"min", "max", "result"}, {1, 5, "Goblins"}, {4, 8, "Bandits"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Empty(t, store.replaced, "no storage mutation on validation failure")

	found := false
	for _, e := range report.Errors {
		if e.Sheet == "Encounter - Combat" && e.Row == 3 {
			assert.Equal(t, "Overlapping ranges with row 2: 1-5 overlaps 4-8.", e.Message)
			found = true
		}
	}
	assert.True(t, found, "expected overlap error, got %v", report.Errors)
}

func TestImport_LoneMinColumn(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"min", "result"}, {1, "Goblins"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "Range mode requires both 'min' and 'max' columns.")
}

func TestImport_MinGreaterThanMax(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"min", "max", "result"}, {10, 5, "Goblins"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "Invalid range: min 10 is greater than max 5.")
}

func TestImport_NonPositiveWeight(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type", "weight"}, {"Combat", 0},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"result"}, {"Goblins"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "Invalid weight 0. Must be a positive integer.")
}

func TestImport_MissingEncounterTab(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Empty(t, store.replaced)
	assert.Contains(t, errorMessages(report), "Missing tab for encounter type 'Combat'.")
}

func TestImport_EmptyTypesSheet(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "No types found.")
}

func TestImport_MissingTypesSheet(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"result"}, {"Goblins"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, "Encounter Types", report.Errors[0].Sheet)
	assert.Equal(t, "Missing required tab.", report.Errors[0].Message)
}

func TestImport_RegionalSuccess(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Regions", rows: [][]interface{}{
			{"region_id", "region_name"}, {1, "Coast"}, {2, "Highlands"},
		}},
		{name: "Encounter Types - 1", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - 1 - Combat", rows: [][]interface{}{
			{"result"}, {"Pirates"},
		}},
		{name: "Reward - 1 - Combat", rows: [][]interface{}{
			{"result"}, {"Sea charts"},
		}},
		{name: "Encounter Types - 2", rows: [][]interface{}{
			{"type"}, {"Combat"},
		}},
		{name: "Encounter - 2 - Combat", rows: [][]interface{}{
			{"result"}, {"Wolves"}, {"Ogres"},
		}},
		{name: "Reward - 2 - Combat", rows: [][]interface{}{
			{"result"}, {"Furs"},
		}},
	})

	report, err := imp.Import(context.Background(), 7, workbook)
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected errors: %v", report.Errors)

	assert.Equal(t, 2, report.Counts.Regions)
	assert.Equal(t, 2, report.Counts.EncounterTypes)
	assert.Equal(t, 3, report.Counts.EncounterEntries)
	assert.Equal(t, 2, report.Counts.RewardEntries)

	snap := store.replaced[0]
	assert.True(t, snap.Regional)
	require.Len(t, snap.Regions, 2)
	assert.Equal(t, "Coast", snap.Regions[0].Name)
	assert.Equal(t, 0, snap.Regions[0].SortOrder)
	assert.Equal(t, "Highlands", snap.Regions[1].Name)

	require.Len(t, snap.Definitions, 6)
	assert.Equal(t, 1, *snap.Definitions[0].RegionID)
	assert.Equal(t, 2, *snap.Definitions[3].RegionID)
}

func TestImport_DuplicateRegionID(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Regions", rows: [][]interface{}{
			{"region_id", "region_name"}, {3, "Coast"}, {3, "Highlands"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "Duplicate region_id 3.")
}

func TestImport_RegionsSheetWithNoRows(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Regions", rows: [][]interface{}{
			{"region_id", "region_name"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Contains(t, errorMessages(report), "Regions tab is present but has no valid rows.")
}

func TestImport_DuplicateTypesCollapse(t *testing.T) {
	store := &fakeStore{}
	imp := New(store, nil)

	workbook := buildWorkbook(t, []sheet{
		{name: "Encounter Types", rows: [][]interface{}{
			{"type"}, {"Combat"}, {"Combat"},
		}},
		{name: "Encounter - Combat", rows: [][]interface{}{
			{"result"}, {"Goblins"},
		}},
		{name: "Reward - Combat", rows: [][]interface{}{
			{"result"}, {"10 gp"},
		}},
	})

	report, err := imp.Import(context.Background(), 1, workbook)
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected errors: %v", report.Errors)

	// The type list collapses; the types table keeps both rows.
	assert.Equal(t, 1, report.Counts.EncounterTypes)
	assert.Len(t, store.replaced[0].Definitions[0].Entries, 2)
}

func TestImport_StorageFailure(t *testing.T) {
	store := &fakeStore{replaceErr: errors.New("connection reset")}
	imp := New(store, nil)

	_, err := imp.Import(context.Background(), 1, defaultWorkbook(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestImport_MalformedWorkbook(t *testing.T) {
	imp := New(&fakeStore{}, nil)
	_, err := imp.Import(context.Background(), 1, []byte("not a zip archive"))
	assert.Error(t, err)
}

func errorMessages(report tables.Report) []string {
	msgs := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Property: a uniform workbook with arbitrary type and result names
// always imports cleanly, with counts matching the generated rows and
// definitions in types-then-pairs order.
func TestPropertyUniformImport(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Sheet titles are case-insensitive in XLSX, so type names must
		// be distinct after folding.
		typeNames := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,12}[A-Za-z0-9]`),
			1, 4, strings.ToLower,
		).Draw(t, "types")

		sheets := []sheet{{name: "Encounter Types", rows: typeRows(typeNames)}}
		wantEnc, wantRew := 0, 0
		for i, name := range typeNames {
			encCount := rapid.IntRange(1, 5).Draw(t, fmt.Sprintf("enc%d", i))
			rewCount := rapid.IntRange(1, 5).Draw(t, fmt.Sprintf("rew%d", i))
			wantEnc += encCount
			wantRew += rewCount
			sheets = append(sheets,
				sheet{name: "Encounter - " + name, rows: resultRows(encCount)},
				sheet{name: "Reward - " + name, rows: resultRows(rewCount)},
			)
		}

		store := &fakeStore{}
		imp := New(store, nil)
		report, err := imp.Import(context.Background(), 1, buildWorkbook(t, sheets))
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if !report.OK() {
			t.Fatalf("unexpected validation errors: %v", report.Errors)
		}
		if report.Counts.EncounterTypes != len(typeNames) {
			t.Fatalf("got %d types, want %d", report.Counts.EncounterTypes, len(typeNames))
		}
		if report.Counts.EncounterEntries != wantEnc || report.Counts.RewardEntries != wantRew {
			t.Fatalf("got %d/%d entries, want %d/%d",
				report.Counts.EncounterEntries, report.Counts.RewardEntries, wantEnc, wantRew)
		}
		if len(store.replaced[0].Definitions) != 1+2*len(typeNames) {
			t.Fatalf("got %d definitions, want %d", len(store.replaced[0].Definitions), 1+2*len(typeNames))
		}
	})
}

func typeRows(names []string) [][]interface{} {
	rows := [][]interface{}{{"type"}}
	for _, n := range names {
		rows = append(rows, []interface{}{n})
	}
	return rows
}

func resultRows(n int) [][]interface{} {
	rows := [][]interface{}{{"result"}}
	for i := 0; i < n; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("entry %d", i+1)})
	}
	return rows
}
