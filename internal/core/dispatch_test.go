package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neodatsu/itercraft/internal/github"
	"github.com/neodatsu/itercraft/internal/metrics"
	"github.com/neodatsu/itercraft/internal/model"
	"github.com/neodatsu/itercraft/internal/slack"
)

const (
	testSecret     = "8f742231b10e8888abcd99yyyzzz85a5"
	testActionsURL = "https://github.com/neodatsu/itercraft/actions"
)

var testNow = time.Unix(1700000000, 0)

type fixture struct {
	svc     *DispatchService
	trigger *mockTrigger
	reg     *prometheus.Registry
	logs    *bytes.Buffer
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	trigger := &mockTrigger{}
	reg := prometheus.NewRegistry()
	m := metrics.NewDispatch(reg)
	verifier := slack.NewVerifier(testSecret, slack.DefaultReplayWindow, slack.WithClock(func() time.Time { return testNow }))

	logs := &bytes.Buffer{}
	logger := zerolog.New(logs)

	return &fixture{
		svc:     NewDispatchService(verifier, trigger, testActionsURL, m),
		trigger: trigger,
		reg:     reg,
		logs:    logs,
		ctx:     logger.WithContext(context.Background()),
	}
}

func formBody(text, userID string) []byte {
	v := url.Values{}
	v.Set("command", "/infra")
	v.Set("text", text)
	v.Set("user_id", userID)
	return []byte(v.Encode())
}

func signedRequest(body []byte, at time.Time) InboundRequest {
	ts := strconv.FormatInt(at.Unix(), 10)
	h := http.Header{}
	h.Set(slack.HeaderTimestamp, ts)
	h.Set(slack.HeaderSignature, slack.Sign(testSecret, ts, body))
	return InboundRequest{Header: h, Body: body}
}

func decodeMessage(t *testing.T, out Outcome) slack.Message {
	t.Helper()
	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Equal(t, "application/json", out.ContentType)
	var msg slack.Message
	require.NoError(t, json.Unmarshal(out.Body, &msg))
	return msg
}

func logEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		events = append(events, e)
	}
	return events
}

func outcomeCount(f *fixture, outcome string) float64 {
	families, err := f.reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "dispatcher_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandle_ValidApplyDispatches(t *testing.T) {
	f := newFixture(t)
	want := model.Command{Action: model.ActionApply, Module: model.ModuleAWSEC2}
	f.trigger.On("DispatchWorkflow", mock.Anything, want).Return(nil).Once()

	out := f.svc.Handle(f.ctx, signedRequest(formBody("apply ec2", "U123"), testNow))

	msg := decodeMessage(t, out)
	assert.Equal(t, slack.ResponseInChannel, msg.ResponseType)
	assert.Contains(t, msg.Text, "<@U123>")
	assert.Contains(t, msg.Text, "terraform apply")
	assert.Contains(t, msg.Text, "aws_ec2")
	assert.Contains(t, msg.Text, testActionsURL)
	f.trigger.AssertExpectations(t)

	assert.Equal(t, 1.0, outcomeCount(f, metrics.OutcomeDispatched))

	events := logEvents(t, f.logs)
	require.Len(t, events, 1)
	assert.Equal(t, "info", events[0]["level"])
	assert.Equal(t, metrics.OutcomeDispatched, events[0]["outcome"])
	assert.Equal(t, "apply", events[0]["action"])
}

func TestHandle_AllActionsDispatch(t *testing.T) {
	for _, action := range model.Actions {
		t.Run(string(action), func(t *testing.T) {
			f := newFixture(t)
			f.trigger.On("DispatchWorkflow", mock.Anything, model.Command{Action: action, Module: model.ModuleAWSEC2}).Return(nil).Once()

			out := f.svc.Handle(f.ctx, signedRequest(formBody(string(action)+" aws_ec2", "U1"), testNow))

			msg := decodeMessage(t, out)
			assert.Equal(t, slack.ResponseInChannel, msg.ResponseType)
			f.trigger.AssertExpectations(t)
		})
	}
}

func TestHandle_BadSignatureRejected(t *testing.T) {
	f := newFixture(t)
	req := signedRequest(formBody("apply ec2", "U123"), testNow)
	req.Header.Set(slack.HeaderSignature, "v0=0000000000000000000000000000000000000000000000000000000000000000")

	out := f.svc.Handle(f.ctx, req)

	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
	assert.Equal(t, InvalidSignatureBody, string(out.Body))
	f.trigger.AssertNotCalled(t, "DispatchWorkflow", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, outcomeCount(f, metrics.OutcomeAuthRejected))

	events := logEvents(t, f.logs)
	require.Len(t, events, 1)
	assert.Equal(t, "warn", events[0]["level"])
	assert.NotContains(t, f.logs.String(), testSecret)
}

func TestHandle_AuthenticationFailures(t *testing.T) {
	body := formBody("plan ec2", "U1")

	tests := []struct {
		name   string
		modify func(*InboundRequest)
	}{
		{"stale timestamp", func(r *InboundRequest) {
			*r = signedRequest(body, testNow.Add(-301*time.Second))
		}},
		{"future timestamp", func(r *InboundRequest) {
			*r = signedRequest(body, testNow.Add(301*time.Second))
		}},
		{"missing timestamp", func(r *InboundRequest) { r.Header.Del(slack.HeaderTimestamp) }},
		{"missing signature", func(r *InboundRequest) { r.Header.Del(slack.HeaderSignature) }},
		{"non-numeric timestamp", func(r *InboundRequest) { r.Header.Set(slack.HeaderTimestamp, "yesterday") }},
		{"tampered body", func(r *InboundRequest) { r.Body = formBody("destroy ec2", "U1") }},
		{"short signature", func(r *InboundRequest) { r.Header.Set(slack.HeaderSignature, "v0=abc") }},
		{"bad base64", func(r *InboundRequest) {
			r.Body = []byte("%%%not-base64")
			r.IsBase64Encoded = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := signedRequest(body, testNow)
			tt.modify(&req)

			out := f.svc.Handle(f.ctx, req)

			assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
			assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
			assert.Equal(t, InvalidSignatureBody, string(out.Body))
			f.trigger.AssertNotCalled(t, "DispatchWorkflow", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_ReplayWindowBoundary(t *testing.T) {
	f := newFixture(t)
	f.trigger.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(nil)

	out := f.svc.Handle(f.ctx, signedRequest(formBody("plan ec2", "U1"), testNow.Add(-300*time.Second)))
	assert.Equal(t, http.StatusOK, out.StatusCode)
}

func TestHandle_Base64Body(t *testing.T) {
	f := newFixture(t)
	f.trigger.On("DispatchWorkflow", mock.Anything, model.Command{Action: model.ActionPlan, Module: model.ModuleAWSEC2}).Return(nil).Once()

	raw := formBody("plan aws_ec2", "U9")
	req := signedRequest(raw, testNow)
	req.Body = []byte(base64.StdEncoding.EncodeToString(raw))
	req.IsBase64Encoded = true

	out := f.svc.Handle(f.ctx, req)

	msg := decodeMessage(t, out)
	assert.Equal(t, slack.ResponseInChannel, msg.ResponseType)
	assert.Contains(t, msg.Text, "<@U9>")
	f.trigger.AssertExpectations(t)
}

func TestHandle_InvalidCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantText string
	}{
		{"empty text", "", "Usage:"},
		{"whitespace only", "   ", "Usage:"},
		{"unknown action", "update ec2", "Usage:"},
		{"unknown module", "plan rds", "Module invalide: `rds`"},
		{"missing module", "plan", "Module invalide: ``"},
		{"prefix is not an alias", "plan aws", "Module invalide: `aws`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			out := f.svc.Handle(f.ctx, signedRequest(formBody(tt.text, "U1"), testNow))

			msg := decodeMessage(t, out)
			assert.Equal(t, slack.ResponseEphemeral, msg.ResponseType)
			assert.Contains(t, msg.Text, tt.wantText)
			f.trigger.AssertNotCalled(t, "DispatchWorkflow", mock.Anything, mock.Anything)
			assert.Equal(t, 1.0, outcomeCount(f, metrics.OutcomeInvalidCommand))
			assert.Len(t, logEvents(t, f.logs), 1)
		})
	}
}

func TestHandle_UsageListsEverything(t *testing.T) {
	f := newFixture(t)

	msg := decodeMessage(t, f.svc.Handle(f.ctx, signedRequest(formBody("", "U1"), testNow)))

	for _, a := range model.ActionNames() {
		assert.Contains(t, msg.Text, a)
	}
	for _, m := range model.ModuleNames() {
		assert.Contains(t, msg.Text, m)
	}
}

func TestHandle_DispatchFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"upstream status", &github.APIError{StatusCode: http.StatusNotFound, Body: `{"message":"Not Found"}`}},
		{"transport error", errors.New("github API request: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.trigger.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(tt.err).Once()

			out := f.svc.Handle(f.ctx, signedRequest(formBody("destroy ec2", "U1"), testNow))

			msg := decodeMessage(t, out)
			assert.Equal(t, slack.ResponseEphemeral, msg.ResponseType)
			assert.Equal(t, slack.DispatchFailedMessage().Text, msg.Text)
			assert.NotContains(t, string(out.Body), "Not Found")
			assert.Equal(t, 1.0, outcomeCount(f, metrics.OutcomeDispatchFailed))

			events := logEvents(t, f.logs)
			require.Len(t, events, 1)
			assert.Equal(t, "error", events[0]["level"])
		})
	}
}

func TestHandle_DispatchFailureLogsUpstreamDetail(t *testing.T) {
	f := newFixture(t)
	f.trigger.On("DispatchWorkflow", mock.Anything, mock.Anything).
		Return(&github.APIError{StatusCode: http.StatusUnprocessableEntity, Body: "no workflow_dispatch trigger"}).Once()

	f.svc.Handle(f.ctx, signedRequest(formBody("plan ec2", "U1"), testNow))

	events := logEvents(t, f.logs)
	require.Len(t, events, 1)
	assert.Equal(t, float64(http.StatusUnprocessableEntity), events[0]["upstream_status"])
	assert.Equal(t, "no workflow_dispatch trigger", events[0]["upstream_body"])
}

func TestHandle_MissingUserID(t *testing.T) {
	f := newFixture(t)
	f.trigger.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(nil).Once()

	body := []byte("text=plan+ec2")
	msg := decodeMessage(t, f.svc.Handle(f.ctx, signedRequest(body, testNow)))

	assert.Equal(t, slack.ResponseInChannel, msg.ResponseType)
	assert.Contains(t, msg.Text, "<@>")
}

func TestHandle_NoLoggerInContext(t *testing.T) {
	f := newFixture(t)

	out := f.svc.Handle(context.Background(), signedRequest(formBody("nope", "U1"), testNow))
	assert.Equal(t, http.StatusOK, out.StatusCode)
}

func TestReject(t *testing.T) {
	f := newFixture(t)

	out := f.svc.Reject(f.ctx, errors.New("http: request body too large"))

	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
	assert.Equal(t, InvalidSignatureBody, string(out.Body))
	assert.Equal(t, 1.0, outcomeCount(f, metrics.OutcomeAuthRejected))
	events := logEvents(t, f.logs)
	require.Len(t, events, 1)
	assert.Equal(t, metrics.OutcomeAuthRejected, events[0]["outcome"])
}
