package slack

import (
	"fmt"
	"strings"

	"github.com/neodatsu/itercraft/internal/model"
)

// ResponseType controls who sees a slash-command reply.
type ResponseType string

const (
	// ResponseEphemeral is shown only to the user who ran the command.
	ResponseEphemeral ResponseType = "ephemeral"
	// ResponseInChannel is broadcast to the whole channel.
	ResponseInChannel ResponseType = "in_channel"
)

// SlashCommandName is the command users type in Slack.
const SlashCommandName = "/infra"

// Message is the JSON body Slack renders inline as the command reply.
type Message struct {
	ResponseType ResponseType `json:"response_type"`
	Text         string       `json:"text"`
}

// UsageMessage lists the accepted actions and modules.
func UsageMessage() Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text: fmt.Sprintf("Usage: `%s <action> <module>`\nActions: %s\nModules: %s",
			SlashCommandName,
			strings.Join(model.ActionNames(), ", "),
			strings.Join(model.ModuleNames(), ", ")),
	}
}

// InvalidModuleMessage echoes the rejected module and the short names users can type.
func InvalidModuleMessage(module string) Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text: fmt.Sprintf("Module invalide: `%s`\nModules disponibles: %s",
			module, strings.Join(model.ModuleAliasNames(), ", ")),
	}
}

// DispatchedMessage announces a started run to the channel with a link to the run logs.
func DispatchedMessage(userID string, cmd model.Command, logsURL string) Message {
	return Message{
		ResponseType: ResponseInChannel,
		Text: fmt.Sprintf("🚀 <@%s> a lancé `terraform %s` sur `%s`\n<%s|Voir les logs>",
			userID, cmd.Action, cmd.Module, logsURL),
	}
}

// DispatchFailedMessage carries no upstream detail; that only goes to server logs.
func DispatchFailedMessage() Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text:         "❌ Erreur lors du déclenchement du workflow GitHub",
	}
}
