package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/neodatsu/itercraft/internal/github"
	"github.com/neodatsu/itercraft/internal/metrics"
	"github.com/neodatsu/itercraft/internal/model"
	"github.com/neodatsu/itercraft/internal/slack"
)

// InvalidSignatureBody is the plain-text body of every 401.
const InvalidSignatureBody = "Invalid signature"

// InboundRequest is a transport-neutral slash-command request.
type InboundRequest struct {
	Header http.Header
	Body   []byte
	// IsBase64Encoded reports that the transport base64-encoded Body.
	IsBase64Encoded bool
}

// Outcome is the single HTTP response produced for a request.
type Outcome struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// WorkflowTrigger starts the Terraform pipeline for a validated command.
type WorkflowTrigger interface {
	DispatchWorkflow(ctx context.Context, cmd model.Command) error
}

// DispatchService authenticates, parses and dispatches slash commands.
// It holds no per-request state and is safe for concurrent use.
type DispatchService struct {
	verifier   *slack.Verifier
	trigger    WorkflowTrigger
	actionsURL string
	metrics    *metrics.Dispatch
}

func NewDispatchService(verifier *slack.Verifier, trigger WorkflowTrigger, actionsURL string, m *metrics.Dispatch) *DispatchService {
	return &DispatchService{
		verifier:   verifier,
		trigger:    trigger,
		actionsURL: actionsURL,
		metrics:    m,
	}
}

// Handle runs authentication, validation and dispatch in that order; the
// first failing stage decides the response. The request logger is taken
// from ctx and receives exactly one event per request.
func (s *DispatchService) Handle(ctx context.Context, req InboundRequest) Outcome {
	logger := zerolog.Ctx(ctx)

	body, err := slack.DecodeBody(req.Body, req.IsBase64Encoded)
	if err == nil {
		err = s.verifier.Verify(req.Header.Get(slack.HeaderTimestamp), req.Header.Get(slack.HeaderSignature), body)
	}
	if err != nil {
		return s.Reject(ctx, err)
	}

	// Malformed pairs are tolerated; well-formed fields still drive the command.
	form, _ := slack.ParseSlashCommand(body)

	cmd, err := model.ParseCommand(form.Text)
	if err != nil {
		s.metrics.Outcome(metrics.OutcomeInvalidCommand)
		logger.Info().
			Err(err).
			Str("outcome", metrics.OutcomeInvalidCommand).
			Str("user_id", form.UserID).
			Str("text", form.Text).
			Msg("slash command invalid")
		return messageOutcome(invalidCommandMessage(err))
	}

	start := time.Now()
	err = s.trigger.DispatchWorkflow(ctx, cmd)
	s.metrics.ObserveGitHub(time.Since(start))

	if err != nil {
		s.metrics.Outcome(metrics.OutcomeDispatchFailed)
		event := logger.Error().
			Err(err).
			Str("outcome", metrics.OutcomeDispatchFailed).
			Str("user_id", form.UserID).
			Str("action", string(cmd.Action)).
			Str("module", string(cmd.Module)).
			Dur("elapsed", time.Since(start))
		var apiErr *github.APIError
		if errors.As(err, &apiErr) {
			event = event.Int("upstream_status", apiErr.StatusCode).Str("upstream_body", apiErr.Body)
		}
		event.Msg("workflow dispatch failed")
		return messageOutcome(slack.DispatchFailedMessage())
	}

	s.metrics.Outcome(metrics.OutcomeDispatched)
	logger.Info().
		Str("outcome", metrics.OutcomeDispatched).
		Str("user_id", form.UserID).
		Str("action", string(cmd.Action)).
		Str("module", string(cmd.Module)).
		Dur("elapsed", time.Since(start)).
		Msg("workflow dispatched")
	return messageOutcome(slack.DispatchedMessage(form.UserID, cmd, s.actionsURL))
}

// Reject ends a request as unauthenticated. Transports call it directly when
// the body cannot even be read.
func (s *DispatchService) Reject(ctx context.Context, err error) Outcome {
	s.metrics.Outcome(metrics.OutcomeAuthRejected)
	zerolog.Ctx(ctx).Warn().
		Err(err).
		Str("outcome", metrics.OutcomeAuthRejected).
		Msg("slash command rejected")
	return Outcome{
		StatusCode:  http.StatusUnauthorized,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(InvalidSignatureBody),
	}
}

func invalidCommandMessage(err error) slack.Message {
	var verr *model.ValidationError
	if errors.As(err, &verr) && errors.Is(err, model.ErrUnknownModule) {
		return slack.InvalidModuleMessage(verr.Value)
	}
	return slack.UsageMessage()
}

func messageOutcome(msg slack.Message) Outcome {
	body, err := json.Marshal(msg)
	if err != nil {
		// Message holds only strings; Marshal cannot fail.
		panic(err)
	}
	return Outcome{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        body,
	}
}
