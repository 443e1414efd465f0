package discord

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

const (
	maxRowButtons  = 5
	maxButtonLabel = 80
)

var embedColors = map[string]int{
	core.RichTypeSuccess:   0x2ECC71,
	core.RichTypeError:     0xE74C3C,
	core.RichTypeWarning:   0xF1C40F,
	core.RichTypeInfo:      0x3498DB,
	core.RichTypeTask:      0x9B59B6,
	core.RichTypeProfile:   0xE67E22,
	core.RichTypeSchedule:  0x3498DB,
	core.RichTypeAnalytics: 0x2ECC71,
}

const defaultEmbedColor = 0x3498DB

// recipientKind classifies the three recipient marker forms a send accepts.
type recipientKind int

const (
	recipientChannel recipientKind = iota
	recipientUser
	recipientDirect
)

// splitRecipient parses a recipient marker: "user:<internal_id>" resolves
// through the account directory, "direct:<external_id>" targets a provider
// id before any account exists, anything else is a raw channel id.
func splitRecipient(recipient string) (recipientKind, string) {
	if id, ok := strings.CutPrefix(recipient, "user:"); ok {
		return recipientUser, id
	}
	if id, ok := strings.CutPrefix(recipient, "direct:"); ok {
		return recipientDirect, id
	}
	return recipientChannel, recipient
}

// buildEmbed translates the channel-agnostic rich payload into a provider
// embed, colored by payload type.
func buildEmbed(rich *core.RichPayload) *discordgo.MessageEmbed {
	if rich == nil {
		return nil
	}

	color, ok := embedColors[rich.Type]
	if !ok {
		color = defaultEmbedColor
	}

	embed := &discordgo.MessageEmbed{
		Title:       rich.Title,
		Description: rich.Description,
		Color:       color,
	}
	for _, f := range rich.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if rich.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: rich.Footer}
	}
	if rich.Timestamp != nil {
		embed.Timestamp = rich.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}

// buildSuggestionRow turns suggestion texts into one action row of up to five
// buttons. Labels are capped at the provider limit; custom ids are stable for
// a given text so repeated renders stay deduplicatable.
func buildSuggestionRow(suggestions []string) []discordgo.MessageComponent {
	if len(suggestions) == 0 {
		return nil
	}
	if len(suggestions) > maxRowButtons {
		suggestions = suggestions[:maxRowButtons]
	}

	row := discordgo.ActionsRow{}
	for i, text := range suggestions {
		label := text
		if len(label) > maxButtonLabel {
			label = label[:maxButtonLabel]
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("suggestion_%d_%d", i, suggestionHash(text)),
		})
	}
	return []discordgo.MessageComponent{row}
}

func suggestionHash(text string) int {
	h := fnv.New32a()
	h.Write([]byte(text))
	return int(h.Sum32() % 10000)
}

// welcomeRow is the action row attached to welcome messages. The click
// handler identifies the user from the interaction itself, so the custom id
// suffix only disambiguates the two buttons.
func welcomeRow() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Set up my space",
					Style:    discordgo.PrimaryButton,
					CustomID: "welcome_create_account",
				},
				discordgo.Button{
					Label:    "Link my account",
					Style:    discordgo.SecondaryButton,
					CustomID: "welcome_link_account",
				},
			},
		},
	}
}

// buildMessage assembles the outgoing provider message. An explicit view
// overrides the suggestion row.
func buildMessage(text string, rich *core.RichPayload, suggestions []string, view []discordgo.MessageComponent) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: text}
	if embed := buildEmbed(rich); embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if view != nil {
		msg.Components = view
	} else {
		msg.Components = buildSuggestionRow(suggestions)
	}
	return msg
}

// suggestionLabel recovers the clicked button's label from the message the
// component row was attached to.
func suggestionLabel(msg *discordgo.Message, customID string) (string, bool) {
	if msg == nil {
		return "", false
	}
	for _, component := range msg.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			button, ok := inner.(*discordgo.Button)
			if !ok {
				continue
			}
			if button.CustomID == customID {
				return button.Label, true
			}
		}
	}
	return "", false
}
