package travel

import (
	"fmt"
	"math"
)

// Vessel identifies a sea-travel vessel class.
type Vessel string

// Known vessels.
const (
	VesselSailboat Vessel = "sailboat"
	VesselRowboat  Vessel = "rowboat"
)

// Hexes per day by vessel and water conditions.
const (
	sailboatHexPerDay     = 16 // calm or rough
	rowboatCalmHexPerDay  = 4  // 8 hours of rowing
	rowboatRoughHexPerDay = 2  // heavily penalized
)

// SeaEstimate is the outcome of a sea travel calculation.
type SeaEstimate struct {
	TravelDays           int
	RationsPerCharacter  int
	EncounterProbability float64
}

// EstimateSea computes sea travel time, ration usage, and encounter
// probability. Unexplored hexes beyond the route total are clamped.
//
// Encounter risk is 10% per explored hex and 25% per unexplored hex,
// combined as independent checks.
func EstimateSea(vessel Vessel, calmHexes, roughHexes, unexploredHexes int) (SeaEstimate, error) {
	totalHexes := calmHexes + roughHexes
	if unexploredHexes > totalHexes {
		unexploredHexes = totalHexes
	}

	var calmDays, roughDays float64
	switch vessel {
	case VesselSailboat:
		calmDays = float64(calmHexes) / sailboatHexPerDay
		roughDays = float64(roughHexes) / sailboatHexPerDay
	case VesselRowboat:
		calmDays = float64(calmHexes) / rowboatCalmHexPerDay
		roughDays = float64(roughHexes) / rowboatRoughHexPerDay
	default:
		return SeaEstimate{}, fmt.Errorf("unknown vessel type %q", vessel)
	}

	travelDays := int(math.Ceil(calmDays + roughDays))

	exploredHexes := totalHexes - unexploredHexes
	noEncounter := math.Pow(0.9, float64(exploredHexes)) * math.Pow(0.75, float64(unexploredHexes))

	return SeaEstimate{
		TravelDays:           travelDays,
		RationsPerCharacter:  travelDays,
		EncounterProbability: 1 - noEncounter,
	}, nil
}
