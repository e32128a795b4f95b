package core

import (
	"github.com/neodatsu/itercraft/internal/config"
	"github.com/neodatsu/itercraft/internal/github"
	"github.com/neodatsu/itercraft/internal/metrics"
	"github.com/neodatsu/itercraft/internal/slack"
)

// NewDispatchServiceFromConfig wires the verifier and GitHub client from a
// validated Config.
func NewDispatchServiceFromConfig(cfg *config.Config, m *metrics.Dispatch) *DispatchService {
	verifier := slack.NewVerifier(cfg.SlackSigningSecret, cfg.ReplayWindow)
	client := github.NewClient(github.Config{
		BaseURL:  cfg.GitHubAPIURL,
		Token:    cfg.GitHubToken,
		Repo:     cfg.GitHubRepo,
		Workflow: cfg.GitHubWorkflow,
		Ref:      cfg.GitHubRef,
		Timeout:  cfg.DispatchTimeout,
	})
	return NewDispatchService(verifier, client, cfg.ActionsURL(), m)
}
