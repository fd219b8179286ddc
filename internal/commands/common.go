// Package commands implements the aidev CLI subcommands. Each command parses
// its own flags, resolves configuration, and wires the pieces it needs.
package commands

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/db"
	"github.com/sprintwise/aidev/internal/devagent"
	"github.com/sprintwise/aidev/internal/jira"
	"github.com/sprintwise/aidev/internal/job"
)

// AddConfigFlag adds the --config flag to a FlagSet.
func AddConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to config YAML (default: $AIDEV_CONFIG or ~/.aidev/config.yaml)")
}

// ResolveConfig loads config from the explicit flag value or by discovery.
func ResolveConfig(flagValue string) (*config.Config, error) {
	return config.Resolve(flagValue)
}

// openDB opens the database at the configured path, falling back to the
// default location under the home directory.
func openDB(cfg *config.Config) (*db.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

// newRunner builds the job runner from config. The caller owns the returned
// database handle and must close it.
func newRunner(cfg *config.Config, logger *slog.Logger) (*job.Runner, *db.DB, error) {
	store, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}

	dev := &devagent.CLI{
		Command: cfg.Agent.Command,
		Args:    cfg.Agent.Args,
		Env:     agentEnv(cfg),
		Timeout: time.Duration(cfg.Agent.TimeoutMinutes) * time.Minute,
	}

	runner := &job.Runner{
		DB:     store,
		Dev:    dev,
		Config: cfg,
		Logger: logger,
		Tickets: func(cloudID string) job.TicketClient {
			var opts []jira.Option
			if cfg.Jira.BaseURL != "" {
				opts = append(opts, jira.WithBaseURL(cfg.Jira.BaseURL))
			}
			return jira.New(cfg.Jira.AccessToken, cloudID, opts...)
		},
	}
	return runner, store, nil
}

// agentEnv passes tool-server credentials from the config into the agent
// subprocess. The servers it launches read them from their environment; tool
// arguments never carry credentials.
func agentEnv(cfg *config.Config) []string {
	var env []string
	env = append(env, "AIDEV_JIRA_TOKEN="+cfg.Jira.AccessToken)
	if cfg.Jira.BaseURL != "" {
		env = append(env, "AIDEV_JIRA_BASE_URL="+cfg.Jira.BaseURL)
	}
	if cfg.GitHub.Token != "" {
		env = append(env, "GITHUB_TOKEN="+cfg.GitHub.Token)
	}
	if app := cfg.GitHub.App; app.ClientID != "" {
		env = append(env,
			"AIDEV_GITHUB_APP_CLIENT_ID="+app.ClientID,
			fmt.Sprintf("AIDEV_GITHUB_APP_INSTALLATION_ID=%d", app.InstallationID),
			"AIDEV_GITHUB_APP_KEY_PATH="+app.PrivateKeyPath)
	}
	return env
}

// workerLogger writes line-oriented text to stdout. The MCP servers must
// keep stdout clean for the protocol; this CLI has no such constraint.
func workerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
