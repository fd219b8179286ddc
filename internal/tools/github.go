package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/github"
	"github.com/sprintwise/aidev/internal/mcp"
)

// GitHub registers the GitHub tool catalog. The owner/repo pair is pinned at
// launch; call arguments only carry issue and PR numbers within it.
type GitHub struct {
	Client *github.Client
	Env    config.GitHubEnv
}

func (g *GitHub) Register(s *mcp.Server) {
	s.Register(mcp.Tool{
		Name:        "github_comment",
		Description: "Comment on a GitHub issue or pull request",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue or PR number"},
				"body": {"type": "string", "description": "Comment text"}
			},
			"required": ["number", "body"]
		}`),
	}, g.comment)

	s.Register(mcp.Tool{
		Name:        "github_get_issue",
		Description: "Fetch a GitHub issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue number"}
			},
			"required": ["number"]
		}`),
	}, g.getIssue)

	s.Register(mcp.Tool{
		Name:        "github_close_issue",
		Description: "Close a GitHub issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue number"}
			},
			"required": ["number"]
		}`),
	}, g.closeIssue)

	s.Register(mcp.Tool{
		Name:        "github_reopen_issue",
		Description: "Reopen a closed GitHub issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue number"}
			},
			"required": ["number"]
		}`),
	}, g.reopenIssue)

	s.Register(mcp.Tool{
		Name:        "github_add_labels",
		Description: "Add labels to a GitHub issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue number"},
				"labels": {"type": "array", "items": {"type": "string"}, "description": "Labels to add"}
			},
			"required": ["number", "labels"]
		}`),
	}, g.addLabels)

	s.Register(mcp.Tool{
		Name:        "github_remove_label",
		Description: "Remove a label from a GitHub issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"number": {"type": "integer", "description": "Issue number"},
				"label": {"type": "string", "description": "Label to remove"}
			},
			"required": ["number", "label"]
		}`),
	}, g.removeLabel)

	s.Register(mcp.Tool{
		Name:        "github_create_pr",
		Description: "Open a pull request from an existing branch",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"head": {"type": "string", "description": "Branch with the changes"},
				"base": {"type": "string", "description": "Branch to merge into"},
				"title": {"type": "string", "description": "PR title"},
				"body": {"type": "string", "description": "PR description"}
			},
			"required": ["head", "base", "title"]
		}`),
	}, g.createPR)

	s.Register(mcp.Tool{
		Name:        "github_link_pr",
		Description: "Link a pull request to an issue so merging closes it",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pr_number": {"type": "integer", "description": "Pull request number"},
				"issue_number": {"type": "integer", "description": "Issue number to close on merge"}
			},
			"required": ["pr_number", "issue_number"]
		}`),
	}, g.linkPR)
}

func (g *GitHub) comment(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Number int    `json:"number"`
		Body   string `json:"body"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Number <= 0 || in.Body == "" {
		return mcp.Errorf("number and body are required")
	}

	comment, err := g.Client.PostIssueComment(ctx, g.Env.Owner, g.Env.Repo, in.Number, in.Body)
	if err != nil {
		return mcp.Errorf("posting comment: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Comment %d posted on #%d", comment.ID, in.Number))
}

func (g *GitHub) getIssue(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Number <= 0 {
		return mcp.Errorf("number is required")
	}

	issue, err := g.Client.GetIssue(ctx, g.Env.Owner, g.Env.Repo, in.Number)
	if err != nil {
		return mcp.Errorf("fetching issue: %v", err)
	}
	return mcp.JSON(issue)
}

func (g *GitHub) closeIssue(ctx context.Context, args json.RawMessage) mcp.CallResult {
	return g.setState(ctx, args, "closed")
}

func (g *GitHub) reopenIssue(ctx context.Context, args json.RawMessage) mcp.CallResult {
	return g.setState(ctx, args, "open")
}

func (g *GitHub) setState(ctx context.Context, args json.RawMessage, state string) mcp.CallResult {
	var in struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Number <= 0 {
		return mcp.Errorf("number is required")
	}

	var err error
	if state == "closed" {
		_, err = g.Client.CloseIssue(ctx, g.Env.Owner, g.Env.Repo, in.Number)
	} else {
		_, err = g.Client.ReopenIssue(ctx, g.Env.Owner, g.Env.Repo, in.Number)
	}
	if err != nil {
		return mcp.Errorf("updating issue state: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Issue #%d is now %s", in.Number, state))
}

func (g *GitHub) addLabels(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Number int      `json:"number"`
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Number <= 0 || len(in.Labels) == 0 {
		return mcp.Errorf("number and labels are required")
	}

	labels, err := g.Client.AddLabels(ctx, g.Env.Owner, g.Env.Repo, in.Number, in.Labels)
	if err != nil {
		return mcp.Errorf("adding labels: %v", err)
	}
	return mcp.JSON(labels)
}

func (g *GitHub) removeLabel(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Number int    `json:"number"`
		Label  string `json:"label"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Number <= 0 || in.Label == "" {
		return mcp.Errorf("number and label are required")
	}

	if err := g.Client.RemoveLabel(ctx, g.Env.Owner, g.Env.Repo, in.Number, in.Label); err != nil {
		return mcp.Errorf("removing label: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Label %q removed from #%d", in.Label, in.Number))
}

func (g *GitHub) createPR(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Head  string `json:"head"`
		Base  string `json:"base"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Head == "" || in.Base == "" || in.Title == "" {
		return mcp.Errorf("head, base, and title are required")
	}

	// Find-or-create: an agent retrying after a partial failure must get
	// the PR it already opened, not a duplicate.
	if existing, err := g.Client.FindOpenPR(ctx, g.Env.Owner, g.Env.Repo, in.Head, in.Base); err == nil && existing != nil {
		return mcp.Text(fmt.Sprintf("Pull request #%d already open: %s", existing.Number, existing.HTMLURL))
	}

	pr, err := g.Client.CreatePullRequest(ctx, g.Env.Owner, g.Env.Repo, in.Head, in.Base, in.Title, in.Body)
	if err != nil {
		return mcp.Errorf("creating pull request: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Pull request #%d opened: %s", pr.Number, pr.HTMLURL))
}

func (g *GitHub) linkPR(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		PRNumber    int `json:"pr_number"`
		IssueNumber int `json:"issue_number"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.PRNumber <= 0 || in.IssueNumber <= 0 {
		return mcp.Errorf("pr_number and issue_number are required")
	}

	if _, err := g.Client.LinkPRToIssue(ctx, g.Env.Owner, g.Env.Repo, in.PRNumber, in.IssueNumber); err != nil {
		return mcp.Errorf("linking pull request: %v", err)
	}
	return mcp.Text(fmt.Sprintf("PR #%d now closes #%d on merge", in.PRNumber, in.IssueNumber))
}
