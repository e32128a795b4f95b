package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Components accepted by Validate.
const (
	ComponentAPI    = "dispatcher-api"
	ComponentLambda = "dispatcher-lambda"
	ComponentSigner = "slack-sign"
)

type Config struct {
	SlackSigningSecret string
	GitHubToken        string
	// GitHubRepo is the "owner/name" repository that hosts the workflow.
	GitHubRepo     string
	GitHubAPIURL   string
	GitHubWebURL   string
	GitHubWorkflow string
	GitHubRef      string

	// DispatchTimeout bounds the outbound workflow-dispatch call.
	DispatchTimeout time.Duration
	// ReplayWindow is the maximum accepted skew between a request timestamp and now.
	ReplayWindow time.Duration

	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
}

// fileConfig mirrors Config for the optional YAML file named by CONFIG_FILE.
// Environment variables always win over file values.
type fileConfig struct {
	SlackSigningSecret string `yaml:"slack_signing_secret"`
	GitHubToken        string `yaml:"github_token"`
	GitHubRepo         string `yaml:"github_repo"`
	GitHubAPIURL       string `yaml:"github_api_url"`
	GitHubWebURL       string `yaml:"github_web_url"`
	GitHubWorkflow     string `yaml:"github_workflow"`
	GitHubRef          string `yaml:"github_ref"`
	DispatchTimeout    string `yaml:"dispatch_timeout"`
	ReplayWindow       string `yaml:"replay_window"`
	HTTPListenAddr     string `yaml:"http_listen_addr"`
	MetricsListenAddr  string `yaml:"metrics_listen_addr"`
	LogLevel           string `yaml:"log_level"`
	ServiceName        string `yaml:"service_name"`
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dispatchTimeout, err := getDuration("DISPATCH_TIMEOUT", fc.DispatchTimeout, 2500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	replayWindow, err := getDuration("REPLAY_WINDOW", fc.ReplayWindow, 300*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", fc.SlackSigningSecret, ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", fc.GitHubToken, ""),
		GitHubRepo:         getEnv("GITHUB_REPO", fc.GitHubRepo, ""),
		GitHubAPIURL:       strings.TrimRight(getEnv("GITHUB_API_URL", fc.GitHubAPIURL, "https://api.github.com"), "/"),
		GitHubWebURL:       strings.TrimRight(getEnv("GITHUB_WEB_URL", fc.GitHubWebURL, "https://github.com"), "/"),
		GitHubWorkflow:     getEnv("GITHUB_WORKFLOW", fc.GitHubWorkflow, "terraform.yml"),
		GitHubRef:          getEnv("GITHUB_REF", fc.GitHubRef, "main"),
		DispatchTimeout:    dispatchTimeout,
		ReplayWindow:       replayWindow,
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", fc.HTTPListenAddr, ":8080"),
		MetricsListenAddr:  getEnv("METRICS_LISTEN_ADDR", fc.MetricsListenAddr, ""),
		LogLevel:           getEnv("LOG_LEVEL", fc.LogLevel, "info"),
		ServiceName:        getEnv("SERVICE_NAME", fc.ServiceName, "infra-dispatcher"),
	}

	return cfg, nil
}

// Validate checks that the fields required by the given component are set.
// Missing variables are reported together so a deployment can be fixed in one pass.
func (c *Config) Validate(component string) error {
	var missing []string

	if c.SlackSigningSecret == "" {
		missing = append(missing, "SLACK_SIGNING_SECRET")
	}

	switch component {
	case ComponentAPI, ComponentLambda:
		if c.GitHubToken == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
		if c.GitHubRepo == "" {
			missing = append(missing, "GITHUB_REPO")
		}
		if component == ComponentAPI && c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
	case ComponentSigner:
	default:
		return fmt.Errorf("unknown component %q", component)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if component != ComponentSigner {
		if owner, name, ok := strings.Cut(c.GitHubRepo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("GITHUB_REPO must be in owner/name form, got %q", c.GitHubRepo)
		}
		if c.DispatchTimeout <= 0 {
			return fmt.Errorf("DISPATCH_TIMEOUT must be positive")
		}
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("REPLAY_WINDOW must be positive")
	}

	return nil
}

// ActionsURL is the public page listing workflow runs for the repository.
func (c *Config) ActionsURL() string {
	return c.GitHubWebURL + "/" + c.GitHubRepo + "/actions"
}

// Redacted returns a copy with secrets masked, safe to log.
func (c *Config) Redacted() Config {
	out := *c
	out.SlackSigningSecret = mask(c.SlackSigningSecret)
	out.GitHubToken = mask(c.GitHubToken)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func getEnv(key, fileValue, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func getDuration(key, fileValue string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, fileValue, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
