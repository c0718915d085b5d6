package bot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gm-tools/encounterbot/internal/tables"
)

func TestFormatImportSuccess(t *testing.T) {
	msg := formatImportSuccess(tables.Counts{
		Regions:          2,
		EncounterTypes:   3,
		EncounterEntries: 12,
		RewardTypes:      3,
		RewardEntries:    9,
	})
	assert.Contains(t, msg, "Import succeeded")
	assert.Contains(t, msg, "Regions: 2")
	assert.Contains(t, msg, "Encounter types: 3")
	assert.Contains(t, msg, "Encounter entries: 12")
	assert.Contains(t, msg, "Reward entries: 9")
}

func TestFormatImportSuccess_NoRegions(t *testing.T) {
	msg := formatImportSuccess(tables.Counts{EncounterTypes: 1})
	assert.Contains(t, msg, "Regions: 0 (default tables)")
}

func TestFormatImportFailure(t *testing.T) {
	errs := []tables.SheetError{
		{Sheet: "Regions", Row: 3, Message: "Duplicate region_id 3."},
		{Sheet: "Encounter Types", Message: "Missing required tab."},
	}
	msg := formatImportFailure(errs, "https://example.com/README.md")

	assert.Contains(t, msg, "Import failed. No changes were made.")
	assert.Contains(t, msg, "- Regions row 3: Duplicate region_id 3.")
	assert.Contains(t, msg, "- Encounter Types: Missing required tab.")
	assert.Contains(t, msg, "https://example.com/README.md")
}

func TestFormatImportFailure_CapsErrorList(t *testing.T) {
	var errs []tables.SheetError
	for i := 0; i < maxReportedErrors+7; i++ {
		errs = append(errs, tables.SheetError{
			Sheet:   "Encounter - Combat",
			Row:     i + 2,
			Message: fmt.Sprintf("error %d", i),
		})
	}
	msg := formatImportFailure(errs, "")

	assert.Equal(t, maxReportedErrors, strings.Count(msg, "- Encounter - Combat row"))
	assert.Contains(t, msg, "plus 7 more")
}

func regionList(n int) []tables.Region {
	regions := make([]tables.Region, n)
	for i := range regions {
		regions[i] = tables.Region{ID: i + 1, Name: fmt.Sprintf("Region %d", i+1), SortOrder: i}
	}
	return regions
}

func TestRegionComponents_ButtonsForSmallSets(t *testing.T) {
	components := regionComponents(regionList(3))
	require.Len(t, components, 1)

	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 3)

	button, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "Region 1", button.Label)
	assert.Equal(t, "enc_region:1", button.CustomID)
}

func TestRegionComponents_DropdownForLargeSets(t *testing.T) {
	components := regionComponents(regionList(6))
	require.Len(t, components, 1)

	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)

	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.Len(t, menu.Options, 6)
	assert.Equal(t, "1", menu.Options[0].Value)
}

// Property: the button/dropdown switch happens exactly past five
// regions.
func TestPropertyRegionComponentShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 25).Draw(t, "regions")
		components := regionComponents(regionList(n))

		row := components[0].(discordgo.ActionsRow)
		if n <= maxRegionButtons {
			if len(row.Components) != n {
				t.Fatalf("got %d buttons for %d regions", len(row.Components), n)
			}
			return
		}
		menu, ok := row.Components[0].(discordgo.SelectMenu)
		if !ok || len(menu.Options) != n {
			t.Fatalf("expected a %d-option dropdown", n)
		}
	})
}

func TestPickedRegionID_Button(t *testing.T) {
	id, err := pickedRegionID(discordgo.MessageComponentInteractionData{
		CustomID: "enc_region:7",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestPickedRegionID_Dropdown(t *testing.T) {
	id, err := pickedRegionID(discordgo.MessageComponentInteractionData{
		CustomID: "enc_region:select",
		Values:   []string{"12"},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, id)
}

func TestPickedRegionID_Malformed(t *testing.T) {
	_, err := pickedRegionID(discordgo.MessageComponentInteractionData{CustomID: "enc_region:abc"})
	assert.Error(t, err)

	_, err = pickedRegionID(discordgo.MessageComponentInteractionData{CustomID: "enc_region:select"})
	assert.Error(t, err)
}

func TestDeleteCustomIDRoundTrip(t *testing.T) {
	for _, action := range []deleteAction{deleteConfirmStage1, deleteConfirmStage2, deleteCancel} {
		id := deleteCustomID(action, "12345")
		got, requester, err := parseDeleteCustomID(id)
		require.NoError(t, err)
		assert.Equal(t, action, got)
		assert.Equal(t, "12345", requester)
	}
}

func TestParseDeleteCustomID_Malformed(t *testing.T) {
	for _, id := range []string{"del:", "del:confirm1", "del:nuke:123", "enc_region:1"} {
		_, _, err := parseDeleteCustomID(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestDeleteComponents_StageArming(t *testing.T) {
	buttons := func(armed bool) []discordgo.Button {
		components := deleteComponents("9", armed)
		row := components[0].(discordgo.ActionsRow)
		out := make([]discordgo.Button, len(row.Components))
		for i, c := range row.Components {
			out[i] = c.(discordgo.Button)
		}
		return out
	}

	stage1 := buttons(false)
	assert.False(t, stage1[0].Disabled, "acknowledge button starts enabled")
	assert.True(t, stage1[1].Disabled, "final delete starts disabled")
	assert.False(t, stage1[2].Disabled)

	stage2 := buttons(true)
	assert.True(t, stage2[0].Disabled)
	assert.False(t, stage2[1].Disabled, "final delete armed after acknowledgement")
	assert.False(t, stage2[2].Disabled)
}

func TestLandRouteEncodeDecode(t *testing.T) {
	route := landRoute{Vessel: "foot", Total: 14, Road: 5, Unexplored: 3}
	got, err := decodeLandRoute(route.encode())
	require.NoError(t, err)
	assert.Equal(t, route, got)
}

func TestDecodeLandRoute_Malformed(t *testing.T) {
	for _, suffix := range []string{"", "foot:1:2", "foot:a:2:3", "foot:1:b:3", "foot:1:2:c"} {
		_, err := decodeLandRoute(suffix)
		assert.Error(t, err, "suffix %q", suffix)
	}
}

func TestTravelCustomIDRoundTrip(t *testing.T) {
	action, suffix, err := parseTravelCustomID(travelCustomID(travelOffRoad, "foot:14:5:3"))
	require.NoError(t, err)
	assert.Equal(t, travelOffRoad, action)
	assert.Equal(t, "foot:14:5:3", suffix)

	action, suffix, err = parseTravelCustomID(travelCustomID(travelRoll, ""))
	require.NoError(t, err)
	assert.Equal(t, travelRoll, action)
	assert.Empty(t, suffix)
}

func TestHexValue(t *testing.T) {
	n, err := hexValue(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = hexValue("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = hexValue("-1")
	assert.Error(t, err)

	_, err = hexValue("abc")
	assert.Error(t, err)
}

func TestVesselLabels(t *testing.T) {
	assert.Equal(t, "On Foot", landVesselLabel("foot"))
	assert.Equal(t, "Mounted", landVesselLabel("mount"))
	assert.Equal(t, "Sailboat", seaVesselLabel("sailboat"))
	assert.Equal(t, "Rowboat", seaVesselLabel("rowboat"))
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "total", Value: "14"},
			}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "road", Value: "5"},
			}},
		},
	}
	values := modalValues(data)
	assert.Equal(t, map[string]string{"total": "14", "road": "5"}, values)
}

func TestHelpEmbed(t *testing.T) {
	embed := helpEmbed("https://example.com/README.md")
	assert.Equal(t, "Encounter Bot Help", embed.Title)

	var names []string
	for _, f := range embed.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Quick Start")
	assert.Contains(t, names, "More Detailed Help")

	// Without a README URL the link field is omitted.
	embed = helpEmbed("")
	for _, f := range embed.Fields {
		assert.NotEqual(t, "More Detailed Help", f.Name)
	}
}
