package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/travel"
)

// The travel flow collects route data through modals. Land travel runs
// in two steps when the route leaves the road: a route modal (total,
// road, unexplored hexes) and an off-road terrain allocation modal. The
// route carried between steps is encoded in component custom IDs.

const travelPrefix = "travel:"

// Component and modal actions under travelPrefix.
const (
	travelLandVessel  = "land_vessel"  // button: pick foot or mount
	travelLandRoute   = "land_route"   // modal: total/road/unexplored
	travelOffRoad     = "offroad"      // button: open the terrain modal
	travelOffRoadForm = "offroad_form" // modal: plains/rough/harsh split
	travelSeaVessel   = "sea_vessel"   // button: pick sailboat or rowboat
	travelSeaForm     = "sea_form"     // modal: calm/rough/unexplored
	travelRoll        = "roll"         // button: roll against the risk
)

// landRoute is the state carried between the two land modals.
type landRoute struct {
	Vessel     string
	Total      int
	Road       int
	Unexplored int
}

// offRoadRequired is the hex count the terrain modal must allocate.
func (r landRoute) offRoadRequired() int {
	return r.Total - r.Road
}

// encode packs the route into a custom ID suffix.
func (r landRoute) encode() string {
	return fmt.Sprintf("%s:%d:%d:%d", r.Vessel, r.Total, r.Road, r.Unexplored)
}

// decodeLandRoute is the inverse of landRoute.encode.
func decodeLandRoute(suffix string) (landRoute, error) {
	parts := strings.Split(suffix, ":")
	if len(parts) != 4 {
		return landRoute{}, fmt.Errorf("malformed route state %q", suffix)
	}
	route := landRoute{Vessel: parts[0]}
	var err error
	if route.Total, err = strconv.Atoi(parts[1]); err != nil {
		return landRoute{}, fmt.Errorf("malformed route total %q", parts[1])
	}
	if route.Road, err = strconv.Atoi(parts[2]); err != nil {
		return landRoute{}, fmt.Errorf("malformed route road %q", parts[2])
	}
	if route.Unexplored, err = strconv.Atoi(parts[3]); err != nil {
		return landRoute{}, fmt.Errorf("malformed route unexplored %q", parts[3])
	}
	return route, nil
}

// travelCustomID builds "travel:<action>:<suffix>".
func travelCustomID(action, suffix string) string {
	if suffix == "" {
		return travelPrefix + action
	}
	return travelPrefix + action + ":" + suffix
}

// parseTravelCustomID splits a travel custom ID into action and suffix.
func parseTravelCustomID(customID string) (string, string, error) {
	rest, ok := strings.CutPrefix(customID, travelPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a travel component: %q", customID)
	}
	action, suffix, _ := strings.Cut(rest, ":")
	return action, suffix, nil
}

// handleTravel opens the land vessel choice.
func (b *Bot) handleTravel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Choose travel method:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "🚶 On Foot",
							Style:    discordgo.PrimaryButton,
							CustomID: travelCustomID(travelLandVessel, "foot"),
						},
						discordgo.Button{
							Label:    "🐎 Mounted",
							Style:    discordgo.SecondaryButton,
							CustomID: travelCustomID(travelLandVessel, "mount"),
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Error("sending travel prompt", zap.Error(err))
	}
}

// handleSeaTravel opens the sea vessel choice.
func (b *Bot) handleSeaTravel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Choose vessel type:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "⛵ Sailboat",
							Style:    discordgo.PrimaryButton,
							CustomID: travelCustomID(travelSeaVessel, string(travel.VesselSailboat)),
						},
						discordgo.Button{
							Label:    "🚣 Rowboat",
							Style:    discordgo.SecondaryButton,
							CustomID: travelCustomID(travelSeaVessel, string(travel.VesselRowboat)),
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Error("sending sea travel prompt", zap.Error(err))
	}
}

// handleTravelComponent routes travel button clicks.
func (b *Bot) handleTravelComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, suffix, err := parseTravelCustomID(i.MessageComponentData().CustomID)
	if err != nil {
		b.log.Warn("bad travel component", zap.Error(err))
		return
	}

	switch action {
	case travelLandVessel:
		b.openModal(s, i, landRouteModal(suffix))

	case travelSeaVessel:
		b.openModal(s, i, seaTravelModal(suffix))

	case travelOffRoad:
		route, err := decodeLandRoute(suffix)
		if err != nil {
			b.log.Warn("bad off-road state", zap.Error(err))
			return
		}
		b.openModal(s, i, offRoadModal(route))

	case travelRoll:
		b.handleEncounterRoll(s, i, suffix)

	default:
		b.log.Warn("unknown travel action", zap.String("action", action))
	}
}

// handleTravelModal routes travel modal submissions.
func (b *Bot) handleTravelModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	action, suffix, err := parseTravelCustomID(data.CustomID)
	if err != nil {
		b.log.Warn("bad travel modal", zap.Error(err))
		return
	}

	switch action {
	case travelLandRoute:
		b.handleLandRouteSubmit(s, i, suffix, modalValues(data))
	case travelOffRoadForm:
		b.handleOffRoadSubmit(s, i, suffix, modalValues(data))
	case travelSeaForm:
		b.handleSeaSubmit(s, i, suffix, modalValues(data))
	default:
		b.log.Warn("unknown travel modal action", zap.String("action", action))
	}
}

// handleLandRouteSubmit computes all-road routes directly and otherwise
// asks for the off-road terrain split.
func (b *Bot) handleLandRouteSubmit(s *discordgo.Session, i *discordgo.InteractionCreate, vessel string, values map[string]string) {
	total, err1 := hexValue(values["total"])
	road, err2 := hexValue(values["road"])
	unexplored, err3 := hexValue(values["unexplored"])
	if err := firstError(err1, err2, err3); err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Invalid input: %v", err))
		return
	}
	if road > total {
		b.respondEphemeral(s, i, fmt.Sprintf("Road hexes (%d) cannot exceed total hexes (%d).", road, total))
		return
	}

	route := landRoute{Vessel: vessel, Total: total, Road: road, Unexplored: unexplored}

	if route.offRoadRequired() == 0 {
		estimate, err := travel.EstimateLand(map[travel.Terrain]int{travel.TerrainRoad: road}, unexplored, road, 0)
		if err != nil {
			b.respondEphemeral(s, i, fmt.Sprintf("Travel estimate failed: %v", err))
			return
		}
		b.respondTravelEstimate(s, i, vessel, estimate)
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf(
				"**Route Summary**\n"+
					"- Travel method: **%s**\n"+
					"- Total hexes: **%d**\n"+
					"- Road hexes: **%d**\n"+
					"- Off-road hexes to allocate: **%d**\n\n"+
					"Continue to off-road terrain:",
				landVesselLabel(vessel), total, road, route.offRoadRequired()),
			Flags: discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Continue to Off-Road Terrain",
							Style:    discordgo.PrimaryButton,
							CustomID: travelCustomID(travelOffRoad, route.encode()),
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Error("sending route summary", zap.Error(err))
	}
}

// handleOffRoadSubmit validates the terrain allocation and computes the
// estimate. A wrong total gets a retry button that reopens the form.
func (b *Bot) handleOffRoadSubmit(s *discordgo.Session, i *discordgo.InteractionCreate, suffix string, values map[string]string) {
	route, err := decodeLandRoute(suffix)
	if err != nil {
		b.log.Warn("bad off-road form state", zap.Error(err))
		return
	}

	plains, err1 := hexValue(values["plains"])
	rough, err2 := hexValue(values["rough"])
	harsh, err3 := hexValue(values["harsh"])
	if err := firstError(err1, err2, err3); err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Invalid input: %v", err))
		return
	}

	entered := plains + rough + harsh
	if entered != route.offRoadRequired() {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: fmt.Sprintf(
					"❌ **Invalid terrain breakdown**\n\n"+
						"You must allocate exactly **%d** off-road hexes.\n"+
						"You entered **%d**.\n\n"+
						"Click below to reopen the off-road terrain form.",
					route.offRoadRequired(), entered),
				Flags: discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.Button{
								Label:    "Reopen Off-Road Terrain",
								Style:    discordgo.PrimaryButton,
								CustomID: travelCustomID(travelOffRoad, route.encode()),
							},
						},
					},
				},
			},
		})
		if err != nil {
			b.log.Error("sending terrain retry", zap.Error(err))
		}
		return
	}

	hexCounts := map[travel.Terrain]int{
		travel.TerrainRoad:      route.Road,
		travel.TerrainPlains:    plains,
		travel.TerrainForest:    rough,
		travel.TerrainMountains: harsh,
	}
	estimate, err := travel.EstimateLand(hexCounts, route.Unexplored, route.Road, 0)
	if err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Travel estimate failed: %v", err))
		return
	}
	b.respondTravelEstimate(s, i, route.Vessel, estimate)
}

// handleSeaSubmit computes a sea estimate from the modal values.
func (b *Bot) handleSeaSubmit(s *discordgo.Session, i *discordgo.InteractionCreate, vessel string, values map[string]string) {
	calm, err1 := hexValue(values["calm"])
	rough, err2 := hexValue(values["rough"])
	unexplored, err3 := hexValue(values["unexplored"])
	if err := firstError(err1, err2, err3); err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Invalid input: %v", err))
		return
	}

	estimate, err := travel.EstimateSea(travel.Vessel(vessel), calm, rough, unexplored)
	if err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Travel estimate failed: %v", err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Sea Travel Estimate",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Travel Time", Value: fmt.Sprintf("%d day(s)", estimate.TravelDays), Inline: true},
			{Name: "Rations", Value: fmt.Sprintf("%d per character", estimate.RationsPerCharacter), Inline: true},
			{Name: "Encounter Risk", Value: fmt.Sprintf("%d%% chance", int(estimate.EncounterProbability*100))},
		},
	}
	b.respondEstimateEmbed(s, i, embed, estimate.EncounterProbability)
}

// respondTravelEstimate renders a land estimate with the roll button.
func (b *Bot) respondTravelEstimate(s *discordgo.Session, i *discordgo.InteractionCreate, vessel string, estimate travel.LandEstimate) {
	embed := &discordgo.MessageEmbed{
		Title: "Travel Estimate",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Travel Method", Value: landVesselLabel(vessel), Inline: true},
			{Name: "Travel Time", Value: fmt.Sprintf("%d day(s)", estimate.TravelDays), Inline: true},
			{Name: "Rations", Value: fmt.Sprintf("%d per character", estimate.RationsPerCharacter), Inline: true},
		},
	}
	if len(estimate.ForcedMarchSaves) > 0 {
		saves := make([]string, len(estimate.ForcedMarchSaves))
		for idx, dc := range estimate.ForcedMarchSaves {
			saves[idx] = strconv.Itoa(dc)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Forced March",
			Value: fmt.Sprintf("Extra hexes: %d\nCON saves: %s", estimate.ForcedHexesGained, strings.Join(saves, ", ")),
		})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Encounter Risk",
		Value: fmt.Sprintf("%d%% chance", int(estimate.EncounterProbability*100)),
	})
	b.respondEstimateEmbed(s, i, embed, estimate.EncounterProbability)
}

// respondEstimateEmbed sends an estimate with a one-shot risk roll
// button. The probability rides along in the custom ID as basis points.
func (b *Bot) respondEstimateEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, probability float64) {
	bps := int(probability * 10000)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Roll for Random Encounter",
							Emoji:    &discordgo.ComponentEmoji{Name: "🎲"},
							Style:    discordgo.DangerButton,
							CustomID: travelCustomID(travelRoll, strconv.Itoa(bps)),
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Error("sending travel estimate", zap.Error(err))
	}
}

// handleEncounterRoll rolls against the estimate's probability and
// disarms the button.
func (b *Bot) handleEncounterRoll(s *discordgo.Session, i *discordgo.InteractionCreate, suffix string) {
	bps, err := strconv.Atoi(suffix)
	if err != nil || bps < 0 || bps > 10000 {
		b.log.Warn("bad roll probability", zap.String("suffix", suffix))
		return
	}

	hit := bps > 0 && b.rand.Intn(10000) < bps
	msg := "🎲 **No random encounters occur during the journey.**"
	if hit {
		msg = "🎲 **A random encounter occurs during the journey!**\n" +
			"Use `/encounter` to determine what happens."
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    msg,
			Embeds:     i.Message.Embeds,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.log.Error("sending roll result", zap.Error(err))
	}
}

// openModal responds with a modal form.
func (b *Bot) openModal(s *discordgo.Session, i *discordgo.InteractionCreate, modal *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: modal,
	})
	if err != nil {
		b.log.Error("opening modal", zap.Error(err))
	}
}

// landRouteModal is the first land form: route totals.
func landRouteModal(vessel string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: travelCustomID(travelLandRoute, vessel),
		Title:    "Land Travel (1/2): Route",
		Components: []discordgo.MessageComponent{
			textInputRow("total", "Total hexes", "0"),
			textInputRow("road", "Road hexes", "0"),
			textInputRow("unexplored", "Unexplored hexes", "0"),
		},
	}
}

// offRoadModal is the second land form: terrain allocation.
func offRoadModal(route landRoute) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: travelCustomID(travelOffRoadForm, route.encode()),
		Title:    fmt.Sprintf("Assign %d Off-Road Hexes", route.offRoadRequired()),
		Components: []discordgo.MessageComponent{
			textInputRow("plains", "Plains (easy terrain)", "0"),
			textInputRow("rough", "Forest / Jungle / Sand (rough terrain)", "0"),
			textInputRow("harsh", "Mountains / Swamp / Snow (harsh terrain)", "0"),
		},
	}
}

// seaTravelModal is the single sea form.
func seaTravelModal(vessel string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: travelCustomID(travelSeaForm, vessel),
		Title:    fmt.Sprintf("Sea Travel (%s)", seaVesselLabel(vessel)),
		Components: []discordgo.MessageComponent{
			textInputRow("calm", "Calm sea hexes", "0"),
			textInputRow("rough", "Rough sea hexes", "0"),
			textInputRow("unexplored", "Unexplored sea hexes", "0"),
		},
	}
}

// textInputRow wraps a short text input in its own action row.
func textInputRow(id, label, value string) discordgo.MessageComponent {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID: id,
				Label:    label,
				Style:    discordgo.TextInputShort,
				Value:    value,
				Required: true,
			},
		},
	}
}

// modalValues flattens a modal submission into customID -> value.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// hexValue parses a non-negative hex count, treating blank as zero.
func hexValue(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("hex counts cannot be negative, got %d", n)
	}
	return n, nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// landVesselLabel renders the vessel choice for display.
func landVesselLabel(vessel string) string {
	if vessel == "mount" {
		return "Mounted"
	}
	return "On Foot"
}

// seaVesselLabel renders the sea vessel choice for display.
func seaVesselLabel(vessel string) string {
	if vessel == string(travel.VesselRowboat) {
		return "Rowboat"
	}
	return "Sailboat"
}
