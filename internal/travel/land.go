// Package travel provides closed-form travel-time and encounter-risk
// estimators for overland and sea journeys. The estimators are pure
// functions with no dependency on the table engine.
package travel

import (
	"fmt"
	"math"
	"sort"
)

// Terrain identifies a hex terrain class with its own travel speed.
type Terrain string

// Known terrains.
const (
	TerrainRoad       Terrain = "road"
	TerrainPlains     Terrain = "plains"
	TerrainForest     Terrain = "forest"
	TerrainJungle     Terrain = "jungle"
	TerrainSand       Terrain = "sand"
	TerrainSwamp      Terrain = "swamp"
	TerrainSnow       Terrain = "snow"
	TerrainMountains  Terrain = "mountains"
	TerrainCalmWater  Terrain = "calm_water"
	TerrainRoughWater Terrain = "rough_water"
)

// hexesPerDay is the normal daily travel distance per terrain.
var hexesPerDay = map[Terrain]int{
	TerrainRoad:       8,
	TerrainPlains:     6,
	TerrainForest:     4,
	TerrainJungle:     4,
	TerrainSand:       4,
	TerrainSwamp:      3,
	TerrainSnow:       3,
	TerrainMountains:  2,
	TerrainCalmWater:  24,
	TerrainRoughWater: 12,
}

const (
	hoursPerDay     = 8
	encounterChance = 0.25
)

// LandEstimate is the outcome of a land travel calculation.
type LandEstimate struct {
	TravelDays           int
	ForcedHexesGained    int
	RationsPerCharacter  int
	EncounterChecks      int
	EncounterProbability float64
	// ForcedMarchSaves lists the CON save DCs, one per forced hour.
	ForcedMarchSaves []int
}

// EstimateLand computes travel time, forced-march gains, ration usage,
// and encounter risk for an overland route.
//
// hexCounts maps terrain to hexes travelled; unexploredHexes is the
// total unexplored hexes on the route (assumed off-road);
// exploredRoadHexes is the explored road portion; forcedHours is extra
// travel beyond the normal eight-hour day.
//
// Postcondition: TravelDays >= 1 for any non-empty route; encounter
// checks are capped at one per travel day.
func EstimateLand(hexCounts map[Terrain]int, unexploredHexes, exploredRoadHexes, forcedHours int) (LandEstimate, error) {
	for terrain := range hexCounts {
		if _, ok := hexesPerDay[terrain]; !ok {
			return LandEstimate{}, fmt.Errorf("unknown terrain %q", terrain)
		}
	}

	normalDays := 0.0
	for terrain, hexes := range hexCounts {
		if hexes <= 0 {
			continue
		}
		normalDays += float64(hexes) / float64(hexesPerDay[terrain])
	}
	totalDays := int(math.Ceil(normalDays))

	// Forced march applied conservatively: slowest terrain first.
	terrains := make([]Terrain, 0, len(hexCounts))
	for terrain := range hexCounts {
		terrains = append(terrains, terrain)
	}
	sort.Slice(terrains, func(i, j int) bool {
		si, sj := hexesPerDay[terrains[i]], hexesPerDay[terrains[j]]
		if si != sj {
			return si < sj
		}
		return terrains[i] < terrains[j]
	})

	forcedHexes := 0.0
	remainingHours := float64(forcedHours)
	for _, terrain := range terrains {
		if remainingHours <= 0 {
			break
		}
		hexes := hexCounts[terrain]
		hexesPerHour := float64(hexesPerDay[terrain]) / hoursPerDay
		possible := hexesPerHour * remainingHours
		used := math.Min(float64(hexes), possible)

		forcedHexes += used
		remainingHours -= used / hexesPerHour
	}

	totalHexes := 0
	for _, hexes := range hexCounts {
		totalHexes += hexes
	}
	roadHexes := hexCounts[TerrainRoad]
	offRoadHexes := totalHexes - roadHexes

	// Unexplored hexes are assumed off-road.
	exploredOffRoad := offRoadHexes - unexploredHexes
	if exploredOffRoad < 0 {
		exploredOffRoad = 0
	}
	roadChecks := exploredRoadHexes / 3

	totalChecks := unexploredHexes + exploredOffRoad + roadChecks

	effectiveChecks := totalChecks
	if effectiveChecks > totalDays {
		effectiveChecks = totalDays
	}
	probability := 1 - math.Pow(1-encounterChance, float64(effectiveChecks))

	saves := make([]int, 0, forcedHours)
	for hour := 1; hour <= forcedHours; hour++ {
		saves = append(saves, 10+hour)
	}

	return LandEstimate{
		TravelDays:           totalDays,
		ForcedHexesGained:    int(math.Floor(forcedHexes)),
		RationsPerCharacter:  totalDays,
		EncounterChecks:      totalChecks,
		EncounterProbability: math.Round(probability*10000) / 10000,
		ForcedMarchSaves:     saves,
	}, nil
}
