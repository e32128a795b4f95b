// Package lambda adapts the dispatcher to AWS Lambda behind an API Gateway
// HTTP API (payload format 2.0).
package lambda

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"

	"github.com/neodatsu/itercraft/internal/core"
	"github.com/neodatsu/itercraft/internal/platform"
)

type Handler struct {
	svc    *core.DispatchService
	logger zerolog.Logger
}

func NewHandler(svc *core.DispatchService, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Handle converts an API Gateway event into an InboundRequest and the
// Outcome back into a gateway response. It never returns an error: every
// failure is already expressed as an HTTP status.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	reqID := req.RequestContext.RequestID
	if reqID == "" {
		reqID = platform.NewID()
	}
	logCtx := h.logger.With().Str("request_id", reqID)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logCtx = logCtx.Str("aws_request_id", lc.AwsRequestID)
	}
	logger := logCtx.Logger()
	ctx = logger.WithContext(ctx)

	out := h.svc.Handle(ctx, core.InboundRequest{
		Header:          headers(req.Headers),
		Body:            []byte(req.Body),
		IsBase64Encoded: req.IsBase64Encoded,
	})

	return events.APIGatewayV2HTTPResponse{
		StatusCode: out.StatusCode,
		Headers:    map[string]string{"Content-Type": out.ContentType},
		Body:       string(out.Body),
	}, nil
}

// headers canonicalizes the lowercased names API Gateway delivers.
func headers(in map[string]string) http.Header {
	h := make(http.Header, len(in))
	for k, v := range in {
		h.Set(k, v)
	}
	return h
}
