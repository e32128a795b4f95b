package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/neodatsu/itercraft/internal/slack"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

// formBody encodes a slash-command body the way Slack posts it.
func formBody(text, userID string) []byte {
	return []byte(slack.SlashCommand{Command: slack.SlashCommandName, Text: text, UserID: userID}.Encode())
}

// newSignedRequest creates a POST /slack/commands request signed at the given time.
func newSignedRequest(body []byte, at time.Time) *http.Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	r := httptest.NewRequest(http.MethodPost, "/slack/commands", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(slack.HeaderTimestamp, ts)
	r.Header.Set(slack.HeaderSignature, slack.Sign(testSigningSecret, ts, body))
	return r
}
