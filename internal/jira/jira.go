// Package jira is a typed client for the Jira Cloud REST API v3, scoped to
// one cloud (tenant site) per client. Comment bodies use the Atlassian
// Document Format on the wire; callers only see plain text.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sprintwise/aidev/internal/retry"
)

// Comment is a Jira issue comment.
type Comment struct {
	ID   string
	Body string
}

// Transition is one workflow transition available on an issue.
type Transition struct {
	ID   string
	Name string
	To   string
}

// Attachment is a file attached to an issue.
type Attachment struct {
	ID       string
	Filename string
	Size     int64
}

// Client talks to one Jira cloud site.
type Client struct {
	http         *http.Client
	baseURL      string
	cloudID      string
	retryBackoff []time.Duration
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL      string
	retryBackoff []time.Duration
}

// WithBaseURL overrides the Atlassian API gateway URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithRetryBackoff overrides the default retry backoff delays.
func WithRetryBackoff(delays ...time.Duration) Option {
	return func(c *clientConfig) { c.retryBackoff = delays }
}

// New creates a client for the given cloud id, authenticating every request
// with the OAuth bearer token.
func New(token, cloudID string, opts ...Option) *Client {
	cfg := &clientConfig{baseURL: "https://api.atlassian.com"}
	for _, o := range opts {
		o(cfg)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{
		http:         oauth2.NewClient(context.Background(), src),
		baseURL:      strings.TrimSuffix(cfg.baseURL, "/"),
		cloudID:      cloudID,
		retryBackoff: cfg.retryBackoff,
	}
}

// apiURL builds a URL under the cloud-scoped REST API v3 root.
func (c *Client) apiURL(path string) string {
	return fmt.Sprintf("%s/ex/jira/%s/rest/api/3%s", c.baseURL, c.cloudID, path)
}

// AddComment posts a plain-text comment on the issue and returns it with the
// server-assigned id.
func (c *Client) AddComment(ctx context.Context, issueKey, text string) (Comment, error) {
	payload := map[string]any{"body": adfDocument(text)}

	return retry.DoVal(ctx, func() (Comment, error) {
		var out struct {
			ID   string          `json:"id"`
			Body json.RawMessage `json:"body"`
		}
		err := c.doJSON(ctx, http.MethodPost, c.apiURL("/issue/"+issueKey+"/comment"), payload, &out)
		if err != nil {
			return Comment{}, classifyErr(fmt.Errorf("adding comment to %s: %w", issueKey, err))
		}
		return Comment{ID: out.ID, Body: adfText(out.Body)}, nil
	}, c.retryOpts()...)
}

// GetComment fetches one comment by id, flattening its document body to
// plain text.
func (c *Client) GetComment(ctx context.Context, issueKey, commentID string) (Comment, error) {
	return retry.DoVal(ctx, func() (Comment, error) {
		var out struct {
			ID   string          `json:"id"`
			Body json.RawMessage `json:"body"`
		}
		err := c.doJSON(ctx, http.MethodGet, c.apiURL("/issue/"+issueKey+"/comment/"+commentID), nil, &out)
		if err != nil {
			return Comment{}, classifyErr(fmt.Errorf("getting comment %s on %s: %w", commentID, issueKey, err))
		}
		return Comment{ID: out.ID, Body: adfText(out.Body)}, nil
	}, c.retryOpts()...)
}

// GetTransitions lists the workflow transitions currently available on the
// issue.
func (c *Client) GetTransitions(ctx context.Context, issueKey string) ([]Transition, error) {
	return retry.DoVal(ctx, func() ([]Transition, error) {
		var out struct {
			Transitions []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				To   struct {
					Name string `json:"name"`
				} `json:"to"`
			} `json:"transitions"`
		}
		err := c.doJSON(ctx, http.MethodGet, c.apiURL("/issue/"+issueKey+"/transitions"), nil, &out)
		if err != nil {
			return nil, classifyErr(fmt.Errorf("getting transitions for %s: %w", issueKey, err))
		}
		transitions := make([]Transition, 0, len(out.Transitions))
		for _, t := range out.Transitions {
			transitions = append(transitions, Transition{ID: t.ID, Name: t.Name, To: t.To.Name})
		}
		return transitions, nil
	}, c.retryOpts()...)
}

// TransitionIssue applies the transition by id. Jira rejects transitions that
// are not available from the issue's current status.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	payload := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	return retry.Do(ctx, func() error {
		err := c.doJSON(ctx, http.MethodPost, c.apiURL("/issue/"+issueKey+"/transitions"), payload, nil)
		if err != nil {
			return classifyErr(fmt.Errorf("transitioning %s: %w", issueKey, err))
		}
		return nil
	}, c.retryOpts()...)
}

// UploadAttachment attaches the named file content to the issue.
func (c *Client) UploadAttachment(ctx context.Context, issueKey, filename string, content io.Reader) (Attachment, error) {
	// The body reader can only be consumed once, so buffer it up front
	// rather than re-reading per attempt.
	data, err := io.ReadAll(content)
	if err != nil {
		return Attachment{}, fmt.Errorf("reading attachment content: %w", err)
	}

	return retry.DoVal(ctx, func() (Attachment, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return Attachment{}, retry.Permanent(fmt.Errorf("building multipart body: %w", err))
		}
		if _, err := part.Write(data); err != nil {
			return Attachment{}, retry.Permanent(fmt.Errorf("writing multipart body: %w", err))
		}
		mw.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.apiURL("/issue/"+issueKey+"/attachments"), &buf)
		if err != nil {
			return Attachment{}, retry.Permanent(err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		// Required by Jira to bypass XSRF protection on attachment uploads.
		req.Header.Set("X-Atlassian-Token", "no-check")

		resp, err := c.http.Do(req)
		if err != nil {
			return Attachment{}, fmt.Errorf("uploading attachment to %s: %w", issueKey, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Attachment{}, classifyErr(apiError(resp))
		}

		var out []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Attachment{}, fmt.Errorf("decoding attachment response: %w", err)
		}
		if len(out) == 0 {
			return Attachment{}, retry.Permanent(fmt.Errorf("attachment response was empty"))
		}
		return Attachment{ID: out[0].ID, Filename: out[0].Filename, Size: out[0].Size}, nil
	}, c.retryOpts()...)
}

// doJSON performs one JSON request. A nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return retry.Permanent(fmt.Errorf("encoding request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return retry.Permanent(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusError carries the HTTP status of a failed API call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("jira API returned %d", e.StatusCode)
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		ErrorMessages []string `json:"errorMessages"`
	}
	msg := ""
	if json.Unmarshal(data, &body) == nil && len(body.ErrorMessages) > 0 {
		msg = strings.Join(body.ErrorMessages, "; ")
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// classifyErr marks 4xx responses as permanent so the retry loop gives up on
// them immediately.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

func (c *Client) retryOpts() []retry.Option {
	if len(c.retryBackoff) > 0 {
		return []retry.Option{retry.WithBackoff(c.retryBackoff...)}
	}
	return nil
}
