// Package tables defines the roll-table domain model shared by the
// importer, exporter, roller, and storage layers.
package tables

// Group identifies which kind of table a definition belongs to.
type Group string

// Table groups. Reward tables are keyed off the encounter type list;
// there is no independently rolled reward type.
const (
	GroupEncounterType Group = "encounter_type"
	GroupEncounter     Group = "encounter"
	GroupReward        Group = "reward"
)

// ValidGroup reports whether g is a recognised table group.
func ValidGroup(g Group) bool {
	switch g {
	case GroupEncounterType, GroupEncounter, GroupReward:
		return true
	}
	return false
}

// RollMode determines the sampling algorithm for a table.
type RollMode string

// Roll modes, in detection precedence order: range (min/max columns),
// weight (weight column), uniform (neither).
const (
	ModeUniform RollMode = "uniform"
	ModeWeight  RollMode = "weight"
	ModeRange   RollMode = "range"
)

// Region maps a tenant-scoped region identifier to a display name.
//
// Invariant: (tenant, ID) is unique; SortOrder defines display and
// export order.
type Region struct {
	ID        int
	Name      string
	SortOrder int
}

// Entry is a single row of a roll table.
//
// Invariant: Min and Max are both set iff the owning table's mode is
// ModeRange, with *Min <= *Max. Weight is set iff the mode is
// ModeWeight, and is positive. Result is never empty.
type Entry struct {
	Min       *int
	Max       *int
	Weight    *int
	Result    string
	SortOrder int
}

// Definition is one roll table: its selector key, mode, and entries.
//
// Invariant: (tenant, Group, RegionID, TypeKey) is unique, treating a
// nil RegionID or TypeKey as a normal key value. TypeKey is nil only
// for GroupEncounterType. MaxRoll is set only for ModeRange and equals
// the maximum upper bound across Entries.
type Definition struct {
	Group    Group
	RegionID *int
	TypeKey  *string
	Mode     RollMode
	MaxRoll  *int
	Entries  []Entry
}

// Snapshot is a fully validated table set for one tenant, ready to
// replace everything the tenant had stored. It is only ever produced
// by the importer after all sheets validated cleanly.
type Snapshot struct {
	// Regional is true when the workbook carried a Regions sheet.
	Regional bool
	// Regions in sheet order. Empty in default mode.
	Regions []Region
	// Definitions in insertion order: per region (or the single
	// default pass), the encounter_type table, then per discovered
	// type the encounter and reward tables.
	Definitions []Definition
}

// Counts summarises a successful import.
type Counts struct {
	Regions          int
	EncounterTypes   int
	EncounterEntries int
	RewardTypes      int
	RewardEntries    int
}

// SheetError is one validation failure, located by sheet and
// optionally by spreadsheet row number (0 means the whole sheet).
type SheetError struct {
	Sheet   string
	Row     int
	Message string
}

// Report is the outcome of an import: either Counts (success) or a
// non-empty ordered Errors list. Never both.
type Report struct {
	Counts Counts
	Errors []SheetError
}

// OK reports whether the import succeeded.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}
