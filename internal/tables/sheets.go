package tables

import "fmt"

// Sheet and column names shared by the importer and exporter. Sheet
// title matching is case- and whitespace-exact; column header matching
// is trimmed and lowercased.
const (
	RegionsSheet = "Regions"

	ColType       = "type"
	ColResult     = "result"
	ColMin        = "min"
	ColMax        = "max"
	ColWeight     = "weight"
	ColRegionID   = "region_id"
	ColRegionName = "region_name"
)

// TypesSheet returns the encounter-types sheet title for a region.
// A nil region means default (non-regional) mode.
func TypesSheet(regionID *int) string {
	if regionID == nil {
		return "Encounter Types"
	}
	return fmt.Sprintf("Encounter Types - %d", *regionID)
}

// EncounterSheet returns the encounter sheet title for a region and type.
func EncounterSheet(regionID *int, typeKey string) string {
	if regionID == nil {
		return fmt.Sprintf("Encounter - %s", typeKey)
	}
	return fmt.Sprintf("Encounter - %d - %s", *regionID, typeKey)
}

// RewardSheet returns the reward sheet title for a region and type.
func RewardSheet(regionID *int, typeKey string) string {
	if regionID == nil {
		return fmt.Sprintf("Reward - %s", typeKey)
	}
	return fmt.Sprintf("Reward - %d - %s", *regionID, typeKey)
}
