package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// The delete flow is a two-stage confirmation. Stage one shows the
// danger warning with the final button disabled; acknowledging it
// rearms the message with the final button enabled. Only the user who
// started the flow may advance it; the requester is encoded in the
// component custom IDs so no server-side state is needed.

const deletePrefix = "del:"

const deleteWarningStage1 = "## Danger\n" +
	"This will permanently delete **all encounter table data** for this server.\n" +
	"This cannot be undone.\n\n" +
	"Click **I understand** to unlock the final delete button."

const deleteWarningStage2 = "## Final confirmation\n" +
	"Last chance. If you should not be doing this and don't have the data elsewhere, everyone will be REALLY mad at you.\n" +
	"Click **Delete now** to permanently delete the encounter tables for this server.\n" +
	"This cannot be undone."

// deleteAction is one of the delete flow's button actions.
type deleteAction string

const (
	deleteConfirmStage1 deleteAction = "confirm1"
	deleteConfirmStage2 deleteAction = "confirm2"
	deleteCancel        deleteAction = "cancel"
)

// deleteCustomID encodes an action and the requester who owns the flow.
func deleteCustomID(action deleteAction, requesterID string) string {
	return fmt.Sprintf("%s%s:%s", deletePrefix, action, requesterID)
}

// parseDeleteCustomID is the inverse of deleteCustomID.
func parseDeleteCustomID(customID string) (deleteAction, string, error) {
	rest, ok := strings.CutPrefix(customID, deletePrefix)
	if !ok {
		return "", "", fmt.Errorf("not a delete component: %q", customID)
	}
	action, requester, ok := strings.Cut(rest, ":")
	if !ok || requester == "" {
		return "", "", fmt.Errorf("malformed delete component: %q", customID)
	}
	switch deleteAction(action) {
	case deleteConfirmStage1, deleteConfirmStage2, deleteCancel:
		return deleteAction(action), requester, nil
	default:
		return "", "", fmt.Errorf("unknown delete action %q", action)
	}
}

// deleteComponents renders the flow's buttons. armed controls whether
// the final delete button is clickable.
func deleteComponents(requesterID string, armed bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "I understand",
					Style:    discordgo.DangerButton,
					CustomID: deleteCustomID(deleteConfirmStage1, requesterID),
					Disabled: armed,
				},
				discordgo.Button{
					Label:    "Delete now",
					Style:    discordgo.DangerButton,
					CustomID: deleteCustomID(deleteConfirmStage2, requesterID),
					Disabled: !armed,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: deleteCustomID(deleteCancel, requesterID),
				},
			},
		},
	}
}

// handleDeleteCommand opens the stage-one warning.
func (b *Bot) handleDeleteCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, err := tenantID(i); err != nil {
		b.respondEphemeral(s, i, "This command must be used in a server.")
		return
	}
	if !isAdmin(i) {
		b.respondEphemeral(s, i, "Admin permission required.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    deleteWarningStage1,
			Components: deleteComponents(interactionUserID(i), false),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("sending delete warning", zap.Error(err))
	}
}

// handleDeleteComponent advances or resolves the delete flow.
func (b *Bot) handleDeleteComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, requester, err := parseDeleteCustomID(i.MessageComponentData().CustomID)
	if err != nil {
		b.log.Warn("bad delete component", zap.Error(err))
		return
	}
	if interactionUserID(i) != requester {
		b.respondEphemeral(s, i, "Only the user who started the delete can confirm it.")
		return
	}

	switch action {
	case deleteConfirmStage1:
		b.updateDeleteMessage(s, i, deleteWarningStage2, deleteComponents(requester, true))

	case deleteConfirmStage2:
		tenant, err := tenantID(i)
		if err != nil {
			b.respondEphemeral(s, i, "This command must be used in a server.")
			return
		}
		if err := b.store.DeleteTenant(ctx, tenant); err != nil {
			b.log.Error("deleting tenant data", zap.Int64("tenant_id", tenant), zap.Error(err))
			b.updateDeleteMessage(s, i, "Delete failed due to an internal error. No changes were made.", []discordgo.MessageComponent{})
			return
		}
		b.log.Info("tenant data deleted", zap.Int64("tenant_id", tenant), zap.String("requester", requester))
		b.updateDeleteMessage(s, i, "✅ Deleted all encounter table data for this server.", []discordgo.MessageComponent{})

	case deleteCancel:
		b.updateDeleteMessage(s, i, "Cancelled. No changes were made.", []discordgo.MessageComponent{})
	}
}

// updateDeleteMessage rewrites the flow message in place.
func (b *Bot) updateDeleteMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
		},
	})
	if err != nil {
		b.log.Error("updating delete message", zap.Error(err))
	}
}
