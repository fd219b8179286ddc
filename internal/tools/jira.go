// Package tools wires API clients into MCP tool catalogs. Each server gets
// one registrar; handlers validate arguments up front and return tool-level
// error text on bad input.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/jira"
	"github.com/sprintwise/aidev/internal/mcp"
)

// Jira registers the Jira tool catalog. The tenant (cloud id) is pinned by
// the client, which was built from the launch environment; tool arguments
// cannot redirect it.
type Jira struct {
	Client *jira.Client
	Env    config.JiraEnv
}

func (j *Jira) Register(s *mcp.Server) {
	s.Register(mcp.Tool{
		Name:        "jira_comment",
		Description: "Add a comment to a Jira issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"issue_key": {"type": "string", "description": "Issue key, e.g. PROJ-123"},
				"body": {"type": "string", "description": "Comment text"}
			},
			"required": ["issue_key", "body"]
		}`),
	}, j.comment)

	s.Register(mcp.Tool{
		Name:        "jira_get_transitions",
		Description: "List the workflow transitions currently available on a Jira issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"issue_key": {"type": "string", "description": "Issue key, e.g. PROJ-123"}
			},
			"required": ["issue_key"]
		}`),
	}, j.getTransitions)

	s.Register(mcp.Tool{
		Name:        "jira_transition",
		Description: "Move a Jira issue through a workflow transition",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"issue_key": {"type": "string", "description": "Issue key, e.g. PROJ-123"},
				"transition_id": {"type": "string", "description": "Transition id from jira_get_transitions"}
			},
			"required": ["issue_key", "transition_id"]
		}`),
	}, j.transition)

	s.Register(mcp.Tool{
		Name:        "jira_upload_attachment",
		Description: "Attach a text file to a Jira issue",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"issue_key": {"type": "string", "description": "Issue key, e.g. PROJ-123"},
				"filename": {"type": "string", "description": "Name for the attached file"},
				"content": {"type": "string", "description": "File content"}
			},
			"required": ["issue_key", "filename", "content"]
		}`),
	}, j.uploadAttachment)
}

func (j *Jira) comment(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		IssueKey string `json:"issue_key"`
		Body     string `json:"body"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.IssueKey == "" || in.Body == "" {
		return mcp.Errorf("issue_key and body are required")
	}

	comment, err := j.Client.AddComment(ctx, in.IssueKey, in.Body)
	if err != nil {
		return mcp.Errorf("adding comment: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Comment %s added to %s", comment.ID, in.IssueKey))
}

func (j *Jira) getTransitions(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		IssueKey string `json:"issue_key"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.IssueKey == "" {
		return mcp.Errorf("issue_key is required")
	}

	transitions, err := j.Client.GetTransitions(ctx, in.IssueKey)
	if err != nil {
		return mcp.Errorf("getting transitions: %v", err)
	}
	return mcp.JSON(transitions)
}

func (j *Jira) transition(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		IssueKey     string `json:"issue_key"`
		TransitionID string `json:"transition_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.IssueKey == "" || in.TransitionID == "" {
		return mcp.Errorf("issue_key and transition_id are required")
	}

	if err := j.Client.TransitionIssue(ctx, in.IssueKey, in.TransitionID); err != nil {
		return mcp.Errorf("transitioning issue: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Issue %s transitioned via %s", in.IssueKey, in.TransitionID))
}

func (j *Jira) uploadAttachment(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		IssueKey string `json:"issue_key"`
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.IssueKey == "" || in.Filename == "" || in.Content == "" {
		return mcp.Errorf("issue_key, filename, and content are required")
	}

	att, err := j.Client.UploadAttachment(ctx, in.IssueKey, in.Filename, strings.NewReader(in.Content))
	if err != nil {
		return mcp.Errorf("uploading attachment: %v", err)
	}
	return mcp.Text(fmt.Sprintf("Attached %s (%d bytes) to %s as id %s", att.Filename, att.Size, in.IssueKey, att.ID))
}
