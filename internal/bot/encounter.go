package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/tables"
)

const regionPickPrefix = "enc_region:"

// maxRegionButtons is the largest region count rendered as buttons;
// larger sets get a dropdown.
const maxRegionButtons = 5

// handleEncounter rolls an encounter, prompting for a region first when
// the tenant has more than one.
//
// Region policy: no regions rolls the default tables directly, a single
// region is picked automatically, up to maxRegionButtons regions render
// as buttons, more render as a dropdown.
func (b *Bot) handleEncounter(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	tenant, err := tenantID(i)
	if err != nil {
		b.respondEphemeral(s, i, "This command must be used in a server.")
		return
	}

	regions, err := b.store.Regions(ctx, tenant)
	if err != nil {
		b.log.Error("listing regions", zap.Int64("tenant_id", tenant), zap.Error(err))
		b.respondEphemeral(s, i, "Something went wrong listing regions.")
		return
	}

	if len(regions) <= 1 {
		var regionID *int
		if len(regions) == 1 {
			regionID = &regions[0].ID
		}
		b.respondEncounter(ctx, s, i, tenant, regionID)
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Pick a region:",
			Components: regionComponents(regions),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("sending region prompt", zap.Error(err))
	}
}

// handleRegionPick resolves a region button or dropdown selection and
// replaces the prompt with the rolled encounter.
func (b *Bot) handleRegionPick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	tenant, err := tenantID(i)
	if err != nil {
		b.respondEphemeral(s, i, "This command must be used in a server.")
		return
	}

	regionID, err := pickedRegionID(i.MessageComponentData())
	if err != nil {
		b.log.Warn("bad region pick", zap.Error(err))
		b.respondEphemeral(s, i, "Something went wrong picking that region.")
		return
	}

	embed, err := b.encounterEmbed(ctx, tenant, &regionID)
	if err != nil {
		b.respondEphemeral(s, i, encounterErrorMessage(err))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "",
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.log.Error("updating region prompt", zap.Error(err))
	}
}

// respondEncounter rolls and replies directly, without a region prompt.
func (b *Bot) respondEncounter(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, tenant int64, regionID *int) {
	embed, err := b.encounterEmbed(ctx, tenant, regionID)
	if err != nil {
		b.respondEphemeral(s, i, encounterErrorMessage(err))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		b.log.Error("sending encounter", zap.Error(err))
	}
}

// encounterEmbed rolls the type table, then the encounter and reward
// tables keyed by the rolled type, and renders the three results with
// their provenance in the footer.
func (b *Bot) encounterEmbed(ctx context.Context, tenant int64, regionID *int) (*discordgo.MessageEmbed, error) {
	encType, typeProv, err := b.roller.Roll(ctx, tenant, tables.GroupEncounterType, regionID, nil)
	if err != nil {
		return nil, fmt.Errorf("rolling encounter type: %w", err)
	}
	encounter, encProv, err := b.roller.Roll(ctx, tenant, tables.GroupEncounter, regionID, &encType)
	if err != nil {
		return nil, fmt.Errorf("rolling encounter for type %q: %w", encType, err)
	}
	reward, rewProv, err := b.roller.Roll(ctx, tenant, tables.GroupReward, regionID, &encType)
	if err != nil {
		return nil, fmt.Errorf("rolling reward for type %q: %w", encType, err)
	}

	title := "Random Encounter"
	if regionID != nil {
		name, err := b.store.RegionName(ctx, tenant, *regionID)
		if err == nil {
			title = "Random Encounter: " + name
		} else if !errors.Is(err, tables.ErrRegionNotFound) {
			return nil, fmt.Errorf("resolving region name: %w", err)
		}
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Type", Value: encType, Inline: true},
			{Name: "Encounter", Value: encounter},
			{Name: "Reward", Value: reward},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Type: %s | Encounter: %s | Reward: %s", typeProv, encProv, rewProv),
		},
	}, nil
}

// encounterErrorMessage maps roll failures to a user-facing reply.
func encounterErrorMessage(err error) string {
	if errors.Is(err, tables.ErrTableNotFound) {
		return "No matching tables found. Run **/import** to load a workbook first."
	}
	return "Something went wrong rolling the encounter."
}

// regionComponents renders the region choices as buttons for small
// sets and a dropdown otherwise.
//
// Precondition: len(regions) >= 2; smaller sets never prompt.
func regionComponents(regions []tables.Region) []discordgo.MessageComponent {
	if len(regions) <= maxRegionButtons {
		buttons := make([]discordgo.MessageComponent, 0, len(regions))
		for _, reg := range regions {
			buttons = append(buttons, discordgo.Button{
				Label:    reg.Name,
				Style:    discordgo.PrimaryButton,
				CustomID: regionPickPrefix + strconv.Itoa(reg.ID),
			})
		}
		return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	}

	options := make([]discordgo.SelectMenuOption, 0, len(regions))
	for _, reg := range regions {
		options = append(options, discordgo.SelectMenuOption{
			Label: reg.Name,
			Value: strconv.Itoa(reg.ID),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    regionPickPrefix + "select",
					Placeholder: "Choose a region...",
					Options:     options,
				},
			},
		},
	}
}

// pickedRegionID decodes the region from a button custom ID or a
// dropdown value.
func pickedRegionID(data discordgo.MessageComponentInteractionData) (int, error) {
	raw := strings.TrimPrefix(data.CustomID, regionPickPrefix)
	if raw == "select" {
		if len(data.Values) != 1 {
			return 0, fmt.Errorf("expected one selected region, got %d", len(data.Values))
		}
		raw = data.Values[0]
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing region id %q: %w", raw, err)
	}
	return id, nil
}
