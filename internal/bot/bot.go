// Package bot exposes the table engine over Discord slash commands.
// All interaction flows are stateless: multi-step state (region picks,
// delete confirmations, travel forms) is encoded in component custom
// IDs so the bot survives restarts mid-flow.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/config"
	"github.com/gm-tools/encounterbot/internal/tables"
	"github.com/gm-tools/encounterbot/internal/tables/roller"
)

// Importer validates and stores a workbook for a tenant.
type Importer interface {
	Import(ctx context.Context, tenantID int64, workbook []byte) (tables.Report, error)
}

// Exporter rebuilds a workbook from a tenant's stored tables.
type Exporter interface {
	Export(ctx context.Context, tenantID int64) ([]byte, error)
}

// Roller samples one result from a stored table.
type Roller interface {
	Roll(ctx context.Context, tenantID int64, group tables.Group, regionID *int, typeKey *string) (string, string, error)
}

// Bot owns the Discord session and routes interactions to the engine.
type Bot struct {
	cfg      config.DiscordConfig
	session  *discordgo.Session
	store    tables.Store
	importer Importer
	exporter Exporter
	roller   Roller
	rand     roller.Source
	http     *http.Client
	log      *zap.Logger
}

// New constructs a Bot with an unopened session.
//
// Precondition: store, importer, exporter, and roller must be non-nil;
// log may be nil for a no-op logger.
func New(cfg config.DiscordConfig, store tables.Store, imp Importer, exp Exporter, roll Roller, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		cfg:      cfg,
		session:  session,
		store:    store,
		importer: imp,
		exporter: exp,
		roller:   roll,
		rand:     roller.NewCryptoSource(),
		http:     &http.Client{Timeout: cfg.AttachmentTimeout},
		log:      log,
	}, nil
}

// Start opens the gateway connection and registers the slash commands
// globally. It returns once the session is open; interactions are
// handled on discordgo's goroutines until Close.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions()); err != nil {
		b.session.Close()
		return fmt.Errorf("registering commands: %w", err)
	}

	b.log.Info("bot started",
		zap.String("user", b.session.State.User.Username),
		zap.Int("commands", len(commandDefinitions())))
	return nil
}

// Close shuts down the gateway connection.
func (b *Bot) Close() error {
	return b.session.Close()
}

// onInteraction dispatches a gateway interaction to its handler.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		switch name {
		case "import":
			b.handleImport(ctx, s, i)
		case "encounter":
			b.handleEncounter(ctx, s, i)
		case "download":
			b.handleDownload(ctx, s, i)
		case "template":
			b.handleTemplate(s, i)
		case "irreversibly_delete":
			b.handleDeleteCommand(ctx, s, i)
		case "travel":
			b.handleTravel(s, i)
		case "sea_travel":
			b.handleSeaTravel(s, i)
		case "help":
			b.handleHelp(s, i)
		default:
			b.log.Warn("unknown command", zap.String("name", name))
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case strings.HasPrefix(customID, regionPickPrefix):
			b.handleRegionPick(ctx, s, i)
		case strings.HasPrefix(customID, deletePrefix):
			b.handleDeleteComponent(ctx, s, i)
		case strings.HasPrefix(customID, travelPrefix):
			b.handleTravelComponent(s, i)
		default:
			b.log.Warn("unknown component", zap.String("custom_id", customID))
		}

	case discordgo.InteractionModalSubmit:
		customID := i.ModalSubmitData().CustomID
		if strings.HasPrefix(customID, travelPrefix) {
			b.handleTravelModal(s, i)
			return
		}
		b.log.Warn("unknown modal", zap.String("custom_id", customID))
	}
}

// tenantID extracts the guild ID as the tenant key.
//
// Postcondition: Returns an error for DM interactions, which have no
// guild.
func tenantID(i *discordgo.InteractionCreate) (int64, error) {
	if i.GuildID == "" {
		return 0, fmt.Errorf("interaction outside a guild")
	}
	id, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing guild id %q: %w", i.GuildID, err)
	}
	return id, nil
}

// isAdmin reports whether the invoking member has the administrator
// permission.
func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// interactionUserID returns the invoking user's ID for both guild and
// DM interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// respondEphemeral sends an immediate ephemeral text reply.
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("responding to interaction", zap.Error(err))
	}
}

// deferEphemeral acknowledges the interaction so a slow handler can
// follow up later.
func (b *Bot) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// followupEphemeral sends an ephemeral follow-up after a deferral.
func (b *Bot) followupEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	params.Flags = discordgo.MessageFlagsEphemeral
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.log.Error("sending followup", zap.Error(err))
	}
}
