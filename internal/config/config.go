// Package config loads the worker configuration file and the environment
// blocks handed to the tool servers at launch. Tool servers receive their
// credentials through the spawning process's environment rather than through
// tool arguments, so a compromised model prompt can never redirect them at a
// different tenant.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Database DatabaseConfig `yaml:"database"`
	Jira     JiraConfig     `yaml:"jira"`
	GitHub   GitHubConfig   `yaml:"github"`
	Agent    AgentConfig    `yaml:"agent"`
}

type WorkerConfig struct {
	// Secret authenticates invocations of the worker CLI. Compared in
	// constant time before any other argument is looked at.
	Secret string `yaml:"secret" validate:"required,min=16"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type JiraConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token" validate:"required"`
}

type GitHubConfig struct {
	Token string               `yaml:"token"`
	App   GitHubAppConfig      `yaml:"app"`
	Repos map[string]RepoEntry `yaml:"repos" validate:"dive"`
}

// GitHubAppConfig holds GitHub App installation credentials, used instead of
// a personal access token when ClientID is set.
type GitHubAppConfig struct {
	ClientID       string `yaml:"client_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// RepoEntry maps a repo id from the job table to its GitHub coordinates and
// local checkout.
type RepoEntry struct {
	Owner      string `yaml:"owner" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	Path       string `yaml:"path" validate:"required"`
	BaseBranch string `yaml:"base_branch"`
}

type AgentConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	// TimeoutMinutes bounds one agent run. Zero means the default of 30.
	TimeoutMinutes int `yaml:"timeout_minutes"`
}

const DefaultJiraBaseURL = "https://api.atlassian.com"

var validate = validator.New()

// Load reads and parses a config file at the given path, then applies
// environment overrides and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, describeValidation(err))
	}

	return &cfg, nil
}

// Resolve tries the explicit path first, then AIDEV_CONFIG, then the default
// location under the home directory.
func Resolve(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	if envPath := os.Getenv("AIDEV_CONFIG"); envPath != "" {
		return Load(envPath)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return Load(filepath.Join(home, ".aidev", "config.yaml"))
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AIDEV_WORKER_SECRET"); v != "" {
		c.Worker.Secret = v
	}
	if v := os.Getenv("AIDEV_JIRA_TOKEN"); v != "" {
		c.Jira.AccessToken = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
}

func (c *Config) applyDefaults() {
	if c.Jira.BaseURL == "" {
		c.Jira.BaseURL = DefaultJiraBaseURL
	}
	if c.Agent.TimeoutMinutes == 0 {
		c.Agent.TimeoutMinutes = 30
	}
	for id, repo := range c.GitHub.Repos {
		if repo.BaseBranch == "" {
			repo.BaseBranch = "main"
			c.GitHub.Repos[id] = repo
		}
	}
}

// Repo looks up the repo entry for a job's repo id.
func (c *Config) Repo(id string) (RepoEntry, error) {
	repo, ok := c.GitHub.Repos[id]
	if !ok {
		return RepoEntry{}, fmt.Errorf("repo %q is not configured", id)
	}
	return repo, nil
}

func describeValidation(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
	}
	return err
}
