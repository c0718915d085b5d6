package travel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimateLand_MixedTerrain(t *testing.T) {
	est, err := EstimateLand(map[Terrain]int{
		TerrainRoad:      5,
		TerrainPlains:    3,
		TerrainForest:    4,
		TerrainMountains: 2,
	}, 3, 2, 2)
	require.NoError(t, err)

	// 5/8 + 3/6 + 4/4 + 2/2 = 3.125 days, rounded up.
	assert.Equal(t, 4, est.TravelDays)
	assert.Equal(t, 4, est.RationsPerCharacter)

	// Two forced hours in mountains cover half a hex.
	assert.Equal(t, 0, est.ForcedHexesGained)
	assert.Equal(t, []int{11, 12}, est.ForcedMarchSaves)

	// 3 unexplored + 6 explored off-road + 0 road checks, capped at
	// one check per day: 1 - 0.75^4.
	assert.Equal(t, 9, est.EncounterChecks)
	assert.InDelta(t, 0.6836, est.EncounterProbability, 1e-9)
}

func TestEstimateLand_AllRoad(t *testing.T) {
	est, err := EstimateLand(map[Terrain]int{TerrainRoad: 8}, 0, 8, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, est.TravelDays)
	assert.Equal(t, 0, est.ForcedHexesGained)
	assert.Empty(t, est.ForcedMarchSaves)

	// 8 explored road hexes: one check per 3, capped at one per day.
	assert.Equal(t, 2, est.EncounterChecks)
	assert.InDelta(t, 0.25, est.EncounterProbability, 1e-9)
}

func TestEstimateLand_ForcedMarchGainsHexes(t *testing.T) {
	est, err := EstimateLand(map[Terrain]int{TerrainRoad: 16}, 0, 16, 3)
	require.NoError(t, err)

	// Road covers one hex per forced hour.
	assert.Equal(t, 3, est.ForcedHexesGained)
	assert.Equal(t, []int{11, 12, 13}, est.ForcedMarchSaves)
}

func TestEstimateLand_UnknownTerrain(t *testing.T) {
	_, err := EstimateLand(map[Terrain]int{Terrain("lava"): 3}, 0, 0, 0)
	assert.Error(t, err)
}

func TestEstimateLand_EmptyRoute(t *testing.T) {
	est, err := EstimateLand(map[Terrain]int{}, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, est.TravelDays)
	assert.Equal(t, 0.0, est.EncounterProbability)
}

func TestEstimateSea_Sailboat(t *testing.T) {
	est, err := EstimateSea(VesselSailboat, 20, 12, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, est.TravelDays)
	assert.Equal(t, 2, est.RationsPerCharacter)
}

func TestEstimateSea_RowboatPenalisedInRoughWater(t *testing.T) {
	est, err := EstimateSea(VesselRowboat, 4, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, est.TravelDays)
}

func TestEstimateSea_EncounterProbability(t *testing.T) {
	est, err := EstimateSea(VesselSailboat, 8, 0, 2)
	require.NoError(t, err)

	want := 1 - math.Pow(0.9, 6)*math.Pow(0.75, 2)
	assert.InDelta(t, want, est.EncounterProbability, 1e-9)
}

func TestEstimateSea_ClampsUnexplored(t *testing.T) {
	a, err := EstimateSea(VesselSailboat, 2, 0, 10)
	require.NoError(t, err)
	b, err := EstimateSea(VesselSailboat, 2, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, b.EncounterProbability, a.EncounterProbability)
}

func TestEstimateSea_UnknownVessel(t *testing.T) {
	_, err := EstimateSea(Vessel("canoe"), 1, 1, 0)
	assert.Error(t, err)
}

// Property: land estimates are internally consistent for any route:
// probability stays in [0, 1], rations equal travel days, and one save
// per forced hour.
func TestPropertyLandEstimate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hexes := map[Terrain]int{
			TerrainRoad:   rapid.IntRange(0, 50).Draw(t, "road"),
			TerrainPlains: rapid.IntRange(0, 50).Draw(t, "plains"),
			TerrainSwamp:  rapid.IntRange(0, 50).Draw(t, "swamp"),
		}
		unexplored := rapid.IntRange(0, 50).Draw(t, "unexplored")
		forced := rapid.IntRange(0, 8).Draw(t, "forced")

		est, err := EstimateLand(hexes, unexplored, hexes[TerrainRoad], forced)
		if err != nil {
			t.Fatalf("estimate failed: %v", err)
		}
		if est.EncounterProbability < 0 || est.EncounterProbability > 1 {
			t.Fatalf("probability out of range: %v", est.EncounterProbability)
		}
		if est.RationsPerCharacter != est.TravelDays {
			t.Fatalf("rations %d != days %d", est.RationsPerCharacter, est.TravelDays)
		}
		if len(est.ForcedMarchSaves) != forced {
			t.Fatalf("got %d saves, want %d", len(est.ForcedMarchSaves), forced)
		}
	})
}

// Property: more unexplored water never lowers the sea encounter risk.
func TestPropertySeaRiskMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		calm := rapid.IntRange(1, 40).Draw(t, "calm")
		rough := rapid.IntRange(0, 40).Draw(t, "rough")
		unexplored := rapid.IntRange(0, calm+rough-1).Draw(t, "unexplored")

		a, err := EstimateSea(VesselSailboat, calm, rough, unexplored)
		if err != nil {
			t.Fatalf("estimate failed: %v", err)
		}
		b, err := EstimateSea(VesselSailboat, calm, rough, unexplored+1)
		if err != nil {
			t.Fatalf("estimate failed: %v", err)
		}
		if b.EncounterProbability < a.EncounterProbability {
			t.Fatalf("risk decreased: %v -> %v", a.EncounterProbability, b.EncounterProbability)
		}
	})
}
