package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gm-tools/encounterbot/internal/tables"
)

const (
	// maxReportedErrors caps the validation errors listed in a failed
	// import reply to stay under Discord's message length limit.
	maxReportedErrors = 15

	workbookFilename = "EncounterBotWorkbook.xlsx"
	templateFilename = "EncounterBotTemplate.xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// commandDefinitions returns the global slash command set.
func commandDefinitions() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "import",
			Description:              "Import encounter and reward tables from an XLSX file.",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "XLSX workbook exported from the template",
					Required:    true,
				},
			},
		},
		{
			Name:        "encounter",
			Description: "Roll a random encounter and reward.",
		},
		{
			Name:        "download",
			Description: "Download the current encounters workbook.",
		},
		{
			Name:        "template",
			Description: "Download a template with instructions on how to fill it in.",
		},
		{
			Name:                     "irreversibly_delete",
			Description:              "Permanently and irreversibly delete the encounter tables.",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "travel",
			Description: "Estimate overland travel time, rations, and encounter risk.",
		},
		{
			Name:        "sea_travel",
			Description: "Estimate sea travel time, rations, and encounter risk.",
		},
		{
			Name:        "help",
			Description: "Learn to use the encounter bot.",
		},
	}
}

// handleImport downloads the attached workbook, runs the two-phase
// import, and reports either the counts or the validation errors.
func (b *Bot) handleImport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	tenant, err := tenantID(i)
	if err != nil {
		b.respondEphemeral(s, i, "This command must be used in a server.")
		return
	}
	if !isAdmin(i) {
		b.respondEphemeral(s, i, "Admin permission required.")
		return
	}

	attachment := commandAttachment(i)
	if attachment == nil {
		b.respondEphemeral(s, i, "Attach an .xlsx file.")
		return
	}
	if !strings.HasSuffix(strings.ToLower(attachment.Filename), ".xlsx") {
		b.respondEphemeral(s, i, "Upload an .xlsx file.")
		return
	}

	if err := b.deferEphemeral(s, i); err != nil {
		b.log.Error("deferring import response", zap.Error(err))
		return
	}

	workbook, err := b.fetchAttachment(ctx, attachment.URL)
	if err != nil {
		b.log.Warn("attachment download failed", zap.Int64("tenant_id", tenant), zap.Error(err))
		b.followupEphemeral(s, i, &discordgo.WebhookParams{
			Content: fmt.Sprintf("Failed to download attachment: %v", err),
		})
		return
	}

	report, err := b.importer.Import(ctx, tenant, workbook)
	if err != nil {
		b.log.Error("import failed", zap.Int64("tenant_id", tenant), zap.Error(err))
		b.followupEphemeral(s, i, &discordgo.WebhookParams{
			Content: "Import failed due to an internal error. No changes were made.",
		})
		return
	}

	if !report.OK() {
		b.followupEphemeral(s, i, &discordgo.WebhookParams{
			Content: formatImportFailure(report.Errors, b.cfg.ReadmeURL),
		})
		return
	}

	b.followupEphemeral(s, i, &discordgo.WebhookParams{
		Content: formatImportSuccess(report.Counts),
	})
}

// commandAttachment resolves the first attachment option of a slash
// command, or nil when absent.
func commandAttachment(i *discordgo.InteractionCreate) *discordgo.MessageAttachment {
	data := i.ApplicationCommandData()
	for _, opt := range data.Options {
		if opt.Type != discordgo.ApplicationCommandOptionAttachment {
			continue
		}
		id, ok := opt.Value.(string)
		if !ok {
			continue
		}
		if att, ok := data.Resolved.Attachments[id]; ok {
			return att
		}
	}
	return nil
}

// fetchAttachment downloads the attachment body from Discord's CDN.
func (b *Bot) fetchAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// formatImportFailure renders the validation errors with hints for the
// most common workbook mistakes. The error list is capped at
// maxReportedErrors.
func formatImportFailure(errs []tables.SheetError, readmeURL string) string {
	var sb strings.Builder
	sb.WriteString("**❌ Import failed. No changes were made.**\n\n")
	sb.WriteString("**✅ What to check**\n")
	sb.WriteString("- Tab names must match the template exactly (capitalization + spacing).\n")
	sb.WriteString("- Header row must be on row 1.\n")
	sb.WriteString("- If using regions: include a tab named `Regions` with `region_id` and `region_name`.\n")
	sb.WriteString("- If `Regions` exists, region tabs must be named like: `Encounter Types - 1`, `Encounter - 1 - Combat`, `Reward - 1 - Combat`.\n")
	if readmeURL != "" {
		fmt.Fprintf(&sb, "- Workbook format help: %s\n", readmeURL)
	}
	sb.WriteString("\n**Validation errors:**\n")

	shown := errs
	if len(shown) > maxReportedErrors {
		shown = shown[:maxReportedErrors]
	}
	for _, e := range shown {
		where := e.Sheet
		if e.Row > 0 {
			where += fmt.Sprintf(" row %d", e.Row)
		}
		fmt.Fprintf(&sb, "- %s: %s\n", where, e.Message)
	}
	if extra := len(errs) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "- … plus %d more\n", extra)
	}
	return sb.String()
}

// formatImportSuccess renders the count summary of a completed import.
func formatImportSuccess(counts tables.Counts) string {
	regionLine := fmt.Sprintf("- Regions: %d\n", counts.Regions)
	if counts.Regions == 0 {
		regionLine = "- Regions: 0 (default tables)\n"
	}
	return "**✅ Import succeeded**\n" +
		regionLine +
		fmt.Sprintf("- Encounter types: %d\n", counts.EncounterTypes) +
		fmt.Sprintf("- Encounter entries: %d\n", counts.EncounterEntries) +
		fmt.Sprintf("- Reward entries: %d", counts.RewardEntries)
}

// handleDownload exports the tenant's current workbook, or serves the
// blank template when nothing has been imported yet.
func (b *Bot) handleDownload(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	tenant, err := tenantID(i)
	if err != nil {
		b.respondEphemeral(s, i, "This command must be used in a server.")
		return
	}

	if err := b.deferEphemeral(s, i); err != nil {
		b.log.Error("deferring download response", zap.Error(err))
		return
	}

	workbook, err := b.exporter.Export(ctx, tenant)
	if errors.Is(err, tables.ErrNoData) {
		template, readErr := os.ReadFile(b.cfg.TemplatePath)
		if readErr != nil {
			b.followupEphemeral(s, i, &discordgo.WebhookParams{
				Content: fmt.Sprintf("No data imported yet, and the template file is missing:\n`%s`", b.cfg.TemplatePath),
			})
			return
		}
		b.followupEphemeral(s, i, &discordgo.WebhookParams{
			Content: "No encounters have been imported yet. Here's the blank template.",
			Files: []*discordgo.File{{
				Name:        templateFilename,
				ContentType: xlsxContentType,
				Reader:      bytes.NewReader(template),
			}},
		})
		return
	}
	if err != nil {
		b.log.Error("export failed", zap.Int64("tenant_id", tenant), zap.Error(err))
		b.followupEphemeral(s, i, &discordgo.WebhookParams{Content: "Download failed due to an internal error."})
		return
	}

	b.followupEphemeral(s, i, &discordgo.WebhookParams{
		Content: "Here's the current workbook. Keep a local copy in case you need to roll back changes later.",
		Files: []*discordgo.File{{
			Name:        workbookFilename,
			ContentType: xlsxContentType,
			Reader:      bytes.NewReader(workbook),
		}},
	})
}

// handleTemplate serves the blank template workbook from disk.
func (b *Bot) handleTemplate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	template, err := os.ReadFile(b.cfg.TemplatePath)
	if err != nil {
		b.respondEphemeral(s, i, fmt.Sprintf("Template file not found on server:\n`%s`", b.cfg.TemplatePath))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Here's the template workbook. Fill it out, then upload it using **/import**.",
			Flags:   discordgo.MessageFlagsEphemeral,
			Files: []*discordgo.File{{
				Name:        filepath.Base(b.cfg.TemplatePath),
				ContentType: xlsxContentType,
				Reader:      bytes.NewReader(template),
			}},
		},
	})
	if err != nil {
		b.log.Error("sending template", zap.Error(err))
	}
}

// handleHelp replies with the usage embed.
func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{helpEmbed(b.cfg.ReadmeURL)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("sending help", zap.Error(err))
	}
}

// helpEmbed builds the static help message.
func helpEmbed(readmeURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Encounter Bot Help",
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Quick Start",
				Value: "1) Run **/import** and upload your XLSX encounter workbook.\n" +
					"2) Run **/encounter** to roll an encounter.\n" +
					"If multiple regions exist, you'll pick one (buttons up to 5, dropdown for 6+).\n" +
					"3) Run **/download** to export the current tables as XLSX for editing.\n" +
					"4) Run **/template** to download a blank workbook with setup instructions.\n" +
					"5) Run **/irreversibly_delete** to delete all encounter tables. Be sure this is what you want.\n\n" +
					"To edit your tables: download, edit the file, then upload the changed file with **/import**.\n" +
					"Keep the previous version of the tables in case you need to revert.",
			},
			{
				Name: "Commands",
				Value: "**/import** (admin only)\nUpload an XLSX workbook and import it into the bot.\n\n" +
					"**/download**\nDownload the currently imported workbook.\n\n" +
					"**/encounter**\nRoll an encounter + matching reward.\n\n" +
					"**/travel**, **/sea_travel**\nEstimate journey time, rations, and encounter risk.\n\n" +
					"**/help**\nShow this help message.",
			},
			{
				Name: "XLSX Format (Default, no regions)",
				Value: "Tabs:\n- `Encounter Types`\n- `Encounter - <Type>`\n- `Reward - <Type>`\n\n" +
					"Columns:\n- Types tab: `type`\n- Encounter/Reward tabs: `result`",
			},
			{
				Name: "XLSX Format (Regions)",
				Value: "Tabs:\n- `Regions`\n- `Encounter Types - <Region>`\n- `Encounter - <Region> - <Type>`\n- `Reward - <Region> - <Type>`\n\n" +
					"Columns:\n- Regions tab: `region_id`, `region_name`\n- Types tab: `type`\n- Encounter/Reward tabs: `result`",
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Tip: keep the header row on row 1, and keep tab names exact."},
	}
	if readmeURL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "More Detailed Help",
			Value: fmt.Sprintf("[Open README](%s)", readmeURL),
		})
	}
	return embed
}
