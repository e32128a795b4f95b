package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/neodatsu/itercraft/internal/model"
)

// DefaultTimeout bounds a dispatch when Config.Timeout is unset.
const DefaultTimeout = 2500 * time.Millisecond

// maxErrorBody caps how much of an error response is retained for logs.
const maxErrorBody = 4 << 10

var ErrInvalidDispatch = errors.New("invalid workflow dispatch")

var validate = validator.New()

func init() {
	validate.RegisterValidation("terraform_action", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		a, err := model.ParseAction(s)
		return err == nil && string(a) == s
	})
	validate.RegisterValidation("terraform_module", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, m := range model.Modules {
			if string(m) == s {
				return true
			}
		}
		return false
	})
}

// DispatchRequest is the body of POST /repos/{repo}/actions/workflows/{workflow}/dispatches.
type DispatchRequest struct {
	Ref    string         `json:"ref" validate:"required"`
	Inputs DispatchInputs `json:"inputs"`
}

// DispatchInputs are the workflow_dispatch inputs of the Terraform workflow.
type DispatchInputs struct {
	Action model.Action `json:"action" validate:"terraform_action"`
	Module model.Module `json:"module" validate:"terraform_module"`
}

// APIError is returned when GitHub answers anything other than 204.
// Body holds the start of the response for server-side diagnostics only.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API: status %d", e.StatusCode)
}

type Config struct {
	BaseURL  string
	Token    string
	Repo     string
	Workflow string
	Ref      string
	Timeout  time.Duration
}

type Client struct {
	baseURL    string
	token      string
	repo       string
	workflow   string
	ref        string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		repo:     cfg.Repo,
		workflow: cfg.Workflow,
		ref:      cfg.Ref,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DispatchURL is the workflow-dispatch endpoint for the configured workflow.
func (c *Client) DispatchURL() string {
	return fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", c.baseURL, c.repo, url.PathEscape(c.workflow))
}

// DispatchWorkflow asks GitHub to start the workflow with cmd as inputs.
// GitHub accepts the run asynchronously; only the trigger itself is awaited.
func (c *Client) DispatchWorkflow(ctx context.Context, cmd model.Command) error {
	payload := DispatchRequest{
		Ref: c.ref,
		Inputs: DispatchInputs{
			Action: cmd.Action,
			Module: cmd.Module,
		},
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDispatch, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.DispatchURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github API request: %w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: string(errBody)}
}
