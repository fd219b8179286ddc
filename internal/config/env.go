package config

import (
	"fmt"
	"os"
	"strconv"
)

// JiraEnv is the environment block for the Jira tool server. The launching
// worker pins the tenant by setting cloud id and member id here; tool
// arguments never carry them.
type JiraEnv struct {
	BaseURL     string
	AccessToken string
	CloudID     string
	MemberID    int64
}

// JiraFromEnv reads the Jira tool server configuration from the process
// environment.
func JiraFromEnv() (JiraEnv, error) {
	env := JiraEnv{
		BaseURL:     envOr("AIDEV_JIRA_BASE_URL", DefaultJiraBaseURL),
		AccessToken: os.Getenv("AIDEV_JIRA_TOKEN"),
		CloudID:     os.Getenv("AIDEV_CLOUD_ID"),
	}
	if env.AccessToken == "" {
		return JiraEnv{}, fmt.Errorf("AIDEV_JIRA_TOKEN is not set")
	}
	if env.CloudID == "" {
		return JiraEnv{}, fmt.Errorf("AIDEV_CLOUD_ID is not set")
	}
	if raw := os.Getenv("AIDEV_MEMBER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return JiraEnv{}, fmt.Errorf("AIDEV_MEMBER_ID is not a number: %w", err)
		}
		env.MemberID = id
	}
	return env, nil
}

// GitHubEnv is the environment block for the GitHub tool server, pinned to a
// single owner/repo at launch. App credentials take precedence over the
// personal access token when all three are present.
type GitHubEnv struct {
	Token             string
	Owner             string
	Repo              string
	AppClientID       string
	AppInstallationID int64
	AppPrivateKeyPath string
}

// UseApp reports whether the block carries a complete set of GitHub App
// credentials.
func (e GitHubEnv) UseApp() bool {
	return e.AppClientID != "" && e.AppInstallationID != 0 && e.AppPrivateKeyPath != ""
}

func GitHubFromEnv() (GitHubEnv, error) {
	env := GitHubEnv{
		Token:             os.Getenv("GITHUB_TOKEN"),
		Owner:             os.Getenv("AIDEV_GITHUB_OWNER"),
		Repo:              os.Getenv("AIDEV_GITHUB_REPO"),
		AppClientID:       os.Getenv("AIDEV_GITHUB_APP_CLIENT_ID"),
		AppPrivateKeyPath: os.Getenv("AIDEV_GITHUB_APP_KEY_PATH"),
	}
	if raw := os.Getenv("AIDEV_GITHUB_APP_INSTALLATION_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return GitHubEnv{}, fmt.Errorf("AIDEV_GITHUB_APP_INSTALLATION_ID is not a number: %w", err)
		}
		env.AppInstallationID = id
	}
	if env.Token == "" && !env.UseApp() {
		return GitHubEnv{}, fmt.Errorf("GITHUB_TOKEN or the AIDEV_GITHUB_APP_* credentials must be set")
	}
	if env.Owner == "" || env.Repo == "" {
		return GitHubEnv{}, fmt.Errorf("AIDEV_GITHUB_OWNER and AIDEV_GITHUB_REPO must be set")
	}
	return env, nil
}

// OllamaEnv is the environment block for the Ollama tool server.
type OllamaEnv struct {
	Host        string
	SessionsDir string
}

func OllamaFromEnv() (OllamaEnv, error) {
	env := OllamaEnv{
		Host:        envOr("OLLAMA_HOST", "http://localhost:11434"),
		SessionsDir: os.Getenv("AIDEV_SESSIONS_DIR"),
	}
	if env.SessionsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return OllamaEnv{}, fmt.Errorf("getting home directory: %w", err)
		}
		env.SessionsDir = home + "/.aidev/sessions"
	}
	return env, nil
}

// AgentEnv is the environment block for the agent-API tool server, which
// proxies a remote tool catalog over HTTP.
type AgentEnv struct {
	BaseURL string
	APIKey  string
}

func AgentFromEnv() (AgentEnv, error) {
	env := AgentEnv{
		BaseURL: os.Getenv("AIDEV_AGENT_URL"),
		APIKey:  os.Getenv("AIDEV_AGENT_API_KEY"),
	}
	if env.BaseURL == "" {
		return AgentEnv{}, fmt.Errorf("AIDEV_AGENT_URL is not set")
	}
	return env, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
