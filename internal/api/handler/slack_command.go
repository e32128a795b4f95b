package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/neodatsu/itercraft/internal/api/response"
	"github.com/neodatsu/itercraft/internal/core"
)

// MaxBodyBytes caps slash-command bodies. Slack payloads are a few hundred bytes.
const MaxBodyBytes = 64 << 10

// HeaderContentTransferEncoding marks a base64-encoded body when set to "base64".
const HeaderContentTransferEncoding = "Content-Transfer-Encoding"

type SlackCommand struct {
	svc *core.DispatchService
}

func NewSlackCommand(svc *core.DispatchService) *SlackCommand {
	return &SlackCommand{svc: svc}
}

// Handle serves POST /slack/commands.
func (h *SlackCommand) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeOutcome(w, h.svc.Reject(r.Context(), err))
		return
	}

	out := h.svc.Handle(r.Context(), core.InboundRequest{
		Header:          r.Header,
		Body:            body,
		IsBase64Encoded: strings.EqualFold(r.Header.Get(HeaderContentTransferEncoding), "base64"),
	})
	writeOutcome(w, out)
}

func writeOutcome(w http.ResponseWriter, out core.Outcome) {
	response.Write(w, out.StatusCode, out.ContentType, out.Body)
}
