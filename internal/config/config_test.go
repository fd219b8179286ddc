package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
worker:
  secret: super-secret-worker-token
jira:
  access_token: jira-token
github:
  token: gh-token
  repos:
    api:
      owner: sprintwise
      name: api
      path: /srv/checkouts/api
`

func TestLoad_ParsesAllFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Worker.Secret != "super-secret-worker-token" {
		t.Errorf("Worker.Secret = %q, unexpected", cfg.Worker.Secret)
	}
	if cfg.Jira.BaseURL != DefaultJiraBaseURL {
		t.Errorf("Jira.BaseURL = %q, want default", cfg.Jira.BaseURL)
	}
	if cfg.Agent.TimeoutMinutes != 30 {
		t.Errorf("Agent.TimeoutMinutes = %d, want 30", cfg.Agent.TimeoutMinutes)
	}

	repo, err := cfg.Repo("api")
	if err != nil {
		t.Fatalf("Repo failed: %v", err)
	}
	if repo.Owner != "sprintwise" || repo.Name != "api" {
		t.Errorf("unexpected repo: %+v", repo)
	}
	if repo.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q, want main", repo.BaseBranch)
	}
}

func TestLoad_MissingFields_ReturnsError(t *testing.T) {
	t.Setenv("AIDEV_WORKER_SECRET", "")
	t.Setenv("AIDEV_JIRA_TOKEN", "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing worker secret",
			content: "jira:\n  access_token: tok\n",
			wantErr: "Worker.Secret",
		},
		{
			name:    "short worker secret",
			content: "worker:\n  secret: short\njira:\n  access_token: tok\n",
			wantErr: "Worker.Secret",
		},
		{
			name:    "missing jira token",
			content: "worker:\n  secret: super-secret-worker-token\n",
			wantErr: "Jira.AccessToken",
		},
		{
			name:    "repo missing path",
			content: validConfig + "    broken:\n      owner: o\n      name: n\n",
			wantErr: "Path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AIDEV_WORKER_SECRET", "override-secret-from-env")
	t.Setenv("AIDEV_JIRA_TOKEN", "env-jira-token")
	t.Setenv("GITHUB_TOKEN", "env-gh-token")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Worker.Secret != "override-secret-from-env" {
		t.Errorf("Worker.Secret = %q, want env override", cfg.Worker.Secret)
	}
	if cfg.Jira.AccessToken != "env-jira-token" {
		t.Errorf("Jira.AccessToken = %q, want env override", cfg.Jira.AccessToken)
	}
	if cfg.GitHub.Token != "env-gh-token" {
		t.Errorf("GitHub.Token = %q, want env override", cfg.GitHub.Token)
	}
}

func TestRepo_Unknown(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := cfg.Repo("nope"); err == nil {
		t.Error("expected error for unknown repo")
	}
}

func TestJiraFromEnv(t *testing.T) {
	t.Setenv("AIDEV_JIRA_TOKEN", "tok")
	t.Setenv("AIDEV_CLOUD_ID", "cloud-1")
	t.Setenv("AIDEV_MEMBER_ID", "42")

	env, err := JiraFromEnv()
	if err != nil {
		t.Fatalf("JiraFromEnv failed: %v", err)
	}
	if env.BaseURL != DefaultJiraBaseURL {
		t.Errorf("BaseURL = %q, want default", env.BaseURL)
	}
	if env.CloudID != "cloud-1" || env.MemberID != 42 {
		t.Errorf("unexpected env: %+v", env)
	}
}

func TestJiraFromEnv_MissingToken(t *testing.T) {
	t.Setenv("AIDEV_JIRA_TOKEN", "")
	t.Setenv("AIDEV_CLOUD_ID", "cloud-1")

	if _, err := JiraFromEnv(); err == nil {
		t.Error("expected error when token is unset")
	}
}

func TestGitHubFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("AIDEV_GITHUB_OWNER", "sprintwise")
	t.Setenv("AIDEV_GITHUB_REPO", "api")

	env, err := GitHubFromEnv()
	if err != nil {
		t.Fatalf("GitHubFromEnv failed: %v", err)
	}
	if env.Owner != "sprintwise" || env.Repo != "api" {
		t.Errorf("unexpected env: %+v", env)
	}
}

func TestGitHubFromEnv_AppCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("AIDEV_GITHUB_OWNER", "sprintwise")
	t.Setenv("AIDEV_GITHUB_REPO", "api")
	t.Setenv("AIDEV_GITHUB_APP_CLIENT_ID", "Iv1.abc")
	t.Setenv("AIDEV_GITHUB_APP_INSTALLATION_ID", "12345")
	t.Setenv("AIDEV_GITHUB_APP_KEY_PATH", "/keys/app.pem")

	env, err := GitHubFromEnv()
	if err != nil {
		t.Fatalf("GitHubFromEnv failed: %v", err)
	}
	if !env.UseApp() {
		t.Errorf("UseApp() = false with complete credentials: %+v", env)
	}
	if env.AppInstallationID != 12345 {
		t.Errorf("AppInstallationID = %d, want 12345", env.AppInstallationID)
	}
}

func TestGitHubFromEnv_NoCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("AIDEV_GITHUB_OWNER", "sprintwise")
	t.Setenv("AIDEV_GITHUB_REPO", "api")
	t.Setenv("AIDEV_GITHUB_APP_CLIENT_ID", "")
	t.Setenv("AIDEV_GITHUB_APP_INSTALLATION_ID", "")
	t.Setenv("AIDEV_GITHUB_APP_KEY_PATH", "")

	if _, err := GitHubFromEnv(); err == nil {
		t.Fatal("expected error with no credentials")
	}
}

func TestOllamaFromEnv_Defaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("AIDEV_SESSIONS_DIR", "/tmp/sessions")

	env, err := OllamaFromEnv()
	if err != nil {
		t.Fatalf("OllamaFromEnv failed: %v", err)
	}
	if env.Host != "http://localhost:11434" {
		t.Errorf("Host = %q, want default", env.Host)
	}
	if env.SessionsDir != "/tmp/sessions" {
		t.Errorf("SessionsDir = %q, unexpected", env.SessionsDir)
	}
}
