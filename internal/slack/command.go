package slack

import (
	"fmt"
	"net/url"
)

// SlashCommand holds the form fields Slack posts for a slash command.
// Only Text and UserID drive behavior; the rest is kept for logging.
type SlashCommand struct {
	Command     string
	Text        string
	UserID      string
	UserName    string
	ChannelID   string
	TeamID      string
	ResponseURL string
}

// ParseSlashCommand decodes an application/x-www-form-urlencoded body.
// Well-formed pairs are returned even when another pair is malformed.
func ParseSlashCommand(body []byte) (SlashCommand, error) {
	values, err := url.ParseQuery(string(body))
	cmd := SlashCommand{
		Command:     values.Get("command"),
		Text:        values.Get("text"),
		UserID:      values.Get("user_id"),
		UserName:    values.Get("user_name"),
		ChannelID:   values.Get("channel_id"),
		TeamID:      values.Get("team_id"),
		ResponseURL: values.Get("response_url"),
	}
	if err != nil {
		return cmd, fmt.Errorf("parse form body: %w", err)
	}
	return cmd, nil
}

// Encode renders the command back into a form body, as Slack would send it.
func (c SlashCommand) Encode() string {
	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set("command", c.Command)
	set("text", c.Text)
	set("user_id", c.UserID)
	set("user_name", c.UserName)
	set("channel_id", c.ChannelID)
	set("team_id", c.TeamID)
	set("response_url", c.ResponseURL)
	return values.Encode()
}
