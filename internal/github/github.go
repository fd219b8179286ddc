// Package github wraps go-github with the issue and pull request operations
// the worker and the GitHub tool server use. Calls retry transient failures;
// client errors (4xx) fail immediately.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"github.com/sprintwise/aidev/internal/retry"

	"github.com/bradleyfalzon/ghinstallation/v2"
	jwt "github.com/golang-jwt/jwt/v4"
)

// PR represents a GitHub pull request.
type PR struct {
	Number  int
	HTMLURL string
	Title   string
	Body    string
	State   string
	HeadSHA string
}

// Issue represents a GitHub issue.
type Issue struct {
	Number int
	Title  string
	Body   string
	State  string
	Labels []string
	User   string
}

// Comment represents an issue comment.
type Comment struct {
	ID   int64
	Body string
	User string
}

// Client is a typed GitHub API client wrapping go-github.
type Client struct {
	gh           *gh.Client
	retryBackoff []time.Duration
}

// Option configures a Client.
type Option func(*clientConfig)

// AppCredentials holds GitHub App authentication parameters.
type AppCredentials struct {
	ClientID       string
	InstallationID int64
	PrivateKeyPath string
}

type clientConfig struct {
	baseURL      string
	retryBackoff []time.Duration
	app          *AppCredentials
}

// readKeyFile is a variable for testing; defaults to os.ReadFile.
var readKeyFile = os.ReadFile

// WithBaseURL overrides the GitHub API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithRetryBackoff overrides the default retry backoff delays.
func WithRetryBackoff(delays ...time.Duration) Option {
	return func(c *clientConfig) { c.retryBackoff = delays }
}

// WithAppAuth configures GitHub App authentication using a Client ID,
// installation ID, and private key file. When set, token is ignored.
func WithAppAuth(app AppCredentials) Option {
	return func(c *clientConfig) { c.app = &app }
}

// New creates a new GitHub API client. When WithAppAuth is provided, the client
// authenticates as a GitHub App installation (token parameter is ignored).
// Otherwise it authenticates with the given personal access token.
func New(token string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var client *gh.Client

	if cfg.app != nil {
		httpClient, err := newAppHTTPClient(cfg.app, cfg.baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub App auth: %w", err)
		}
		client = gh.NewClient(httpClient)
		if cfg.baseURL != "" {
			client, _ = client.WithEnterpriseURLs(cfg.baseURL, cfg.baseURL)
		}
	} else {
		client = gh.NewClient(nil).WithAuthToken(token)
		if cfg.baseURL != "" {
			client, _ = client.WithEnterpriseURLs(cfg.baseURL, cfg.baseURL)
		}
	}

	return &Client{gh: client, retryBackoff: cfg.retryBackoff}, nil
}

// newAppHTTPClient creates an http.Client with a GitHub App installation
// transport that uses Client ID (string) as the JWT issuer.
func newAppHTTPClient(app *AppCredentials, baseURL string) (*http.Client, error) {
	keyPath := expandHome(app.PrivateKeyPath)
	keyData, err := readKeyFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", app.PrivateKeyPath, err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	signer := &clientIDSigner{
		clientID: app.ClientID,
		method:   jwt.SigningMethodRS256,
		key:      key,
	}

	atr, err := ghinstallation.NewAppsTransportWithOptions(
		http.DefaultTransport, 0, // appID unused, the signer overrides the issuer
		ghinstallation.WithSigner(signer),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apps transport: %w", err)
	}

	if baseURL != "" {
		atr.BaseURL = baseURL
	}

	itr := ghinstallation.NewFromAppsTransport(atr, app.InstallationID)
	if baseURL != "" {
		itr.BaseURL = baseURL
	}

	return &http.Client{Transport: itr}, nil
}

// clientIDSigner implements ghinstallation.Signer using a string Client ID
// as the JWT issuer instead of a numeric App ID.
type clientIDSigner struct {
	clientID string
	method   jwt.SigningMethod
	key      any
}

func (s *clientIDSigner) Sign(claims jwt.Claims) (string, error) {
	if rc, ok := claims.(*jwt.RegisteredClaims); ok {
		rc.Issuer = s.clientID
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

// CreatePullRequest creates a new pull request and returns it.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (PR, error) {
	return retry.DoVal(ctx, func() (PR, error) {
		pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
			Title: gh.Ptr(title),
			Head:  gh.Ptr(head),
			Base:  gh.Ptr(base),
			Body:  gh.Ptr(body),
		})
		if err != nil {
			return PR{}, classifyErr(fmt.Errorf("creating pull request: %w", err))
		}
		return prFromGH(pr), nil
	}, c.retryOpts()...)
}

// FindOpenPR finds an existing open PR for the given head and base branches.
// Returns the PR if found, or nil if no matching open PR exists.
func (c *Client) FindOpenPR(ctx context.Context, owner, repo, head, base string) (*PR, error) {
	return retry.DoVal(ctx, func() (*PR, error) {
		prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{
			Head:  owner + ":" + head,
			Base:  base,
			State: "open",
		})
		if err != nil {
			return nil, classifyErr(fmt.Errorf("listing PRs: %w", err))
		}
		if len(prs) == 0 {
			return nil, nil
		}
		pr := prFromGH(prs[0])
		return &pr, nil
	}, c.retryOpts()...)
}

// LinkPRToIssue appends a closing reference for the issue to the pull
// request body, so merging the PR closes the issue. Linking twice is a no-op.
func (c *Client) LinkPRToIssue(ctx context.Context, owner, repo string, prNumber, issueNumber int) (PR, error) {
	return retry.DoVal(ctx, func() (PR, error) {
		pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, prNumber)
		if err != nil {
			return PR{}, classifyErr(fmt.Errorf("fetching pull request: %w", err))
		}

		ref := fmt.Sprintf("Closes #%d", issueNumber)
		body := pr.GetBody()
		if strings.Contains(body, ref) {
			return prFromGH(pr), nil
		}
		if body != "" {
			body += "\n\n"
		}
		body += ref

		updated, _, err := c.gh.PullRequests.Edit(ctx, owner, repo, prNumber, &gh.PullRequest{
			Body: gh.Ptr(body),
		})
		if err != nil {
			return PR{}, classifyErr(fmt.Errorf("linking pull request to issue: %w", err))
		}
		return prFromGH(updated), nil
	}, c.retryOpts()...)
}

// PostIssueComment posts a comment on the given issue or pull request.
func (c *Client) PostIssueComment(ctx context.Context, owner, repo string, number int, body string) (Comment, error) {
	return retry.DoVal(ctx, func() (Comment, error) {
		ic, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
			Body: gh.Ptr(body),
		})
		if err != nil {
			return Comment{}, classifyErr(fmt.Errorf("posting issue comment: %w", err))
		}
		return Comment{
			ID:   ic.GetID(),
			Body: ic.GetBody(),
			User: ic.GetUser().GetLogin(),
		}, nil
	}, c.retryOpts()...)
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (Issue, error) {
	return retry.DoVal(ctx, func() (Issue, error) {
		issue, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return Issue{}, classifyErr(fmt.Errorf("fetching issue: %w", err))
		}
		return issueFromGH(issue), nil
	}, c.retryOpts()...)
}

// CloseIssue closes the given issue.
func (c *Client) CloseIssue(ctx context.Context, owner, repo string, number int) (Issue, error) {
	return c.setIssueState(ctx, owner, repo, number, "closed")
}

// ReopenIssue reopens the given issue.
func (c *Client) ReopenIssue(ctx context.Context, owner, repo string, number int) (Issue, error) {
	return c.setIssueState(ctx, owner, repo, number, "open")
}

func (c *Client) setIssueState(ctx context.Context, owner, repo string, number int, state string) (Issue, error) {
	return retry.DoVal(ctx, func() (Issue, error) {
		issue, _, err := c.gh.Issues.Edit(ctx, owner, repo, number, &gh.IssueRequest{
			State: gh.Ptr(state),
		})
		if err != nil {
			return Issue{}, classifyErr(fmt.Errorf("setting issue state to %s: %w", state, err))
		}
		return issueFromGH(issue), nil
	}, c.retryOpts()...)
}

// AddLabels adds labels to the issue, returning the issue's full label set.
func (c *Client) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) ([]string, error) {
	return retry.DoVal(ctx, func() ([]string, error) {
		applied, _, err := c.gh.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels)
		if err != nil {
			return nil, classifyErr(fmt.Errorf("adding labels: %w", err))
		}
		names := make([]string, 0, len(applied))
		for _, l := range applied {
			names = append(names, l.GetName())
		}
		return names, nil
	}, c.retryOpts()...)
}

// RemoveLabel removes a single label from the issue. Removing a label the
// issue does not carry is a permanent error (the API returns 404).
func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return retry.Do(ctx, func() error {
		_, err := c.gh.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
		if err != nil {
			return classifyErr(fmt.Errorf("removing label %s: %w", label, err))
		}
		return nil
	}, c.retryOpts()...)
}

func prFromGH(pr *gh.PullRequest) PR {
	p := PR{
		Number:  pr.GetNumber(),
		HTMLURL: pr.GetHTMLURL(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		State:   pr.GetState(),
	}
	if pr.Head != nil {
		p.HeadSHA = pr.Head.GetSHA()
	}
	return p
}

func issueFromGH(issue *gh.Issue) Issue {
	out := Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
		User:   issue.GetUser().GetLogin(),
	}
	for _, l := range issue.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}

// retryOpts returns the retry options for this client.
func (c *Client) retryOpts() []retry.Option {
	if len(c.retryBackoff) > 0 {
		return []retry.Option{retry.WithBackoff(c.retryBackoff...)}
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// classifyErr wraps a go-github error as permanent if it's a client error (4xx),
// and leaves it retryable for server errors (5xx) and network errors.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if ghErr.Response.StatusCode >= 400 && ghErr.Response.StatusCode < 500 {
			return retry.Permanent(err)
		}
	}
	return err
}
