package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func mustNew(t *testing.T, token string, opts ...Option) *Client {
	t.Helper()
	c, err := New(token, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func assertAuth(t *testing.T, r *http.Request, expected string) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != expected {
		t.Errorf("expected Authorization %q, got %q", expected, got)
	}
}

func TestClient_CreatePullRequest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/repos/sprintwise/api/pulls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		assertAuth(t, r, "Bearer ghp_test123")

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["head"] != "aidev/PROJ-1" || body["base"] != "main" {
			t.Errorf("unexpected body: %v", body)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"html_url": "https://github.com/sprintwise/api/pull/42",
			"title":    "Add feature",
			"state":    "open",
		})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	pr, err := c.CreatePullRequest(context.Background(), "sprintwise", "api", "aidev/PROJ-1", "main", "Add feature", "Description here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Number != 42 {
		t.Errorf("expected PR number 42, got %d", pr.Number)
	}
	if pr.HTMLURL != "https://github.com/sprintwise/api/pull/42" {
		t.Errorf("unexpected HTMLURL: %s", pr.HTMLURL)
	}
}

func TestClient_CreatePullRequest_ClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "Validation Failed"})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"), WithRetryBackoff(time.Millisecond))
	_, err := c.CreatePullRequest(context.Background(), "sprintwise", "api", "h", "b", "t", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a 4xx, got %d", calls)
	}
}

func TestClient_CreatePullRequest_ServerErrorRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"number": 7, "state": "open"})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"), WithRetryBackoff(time.Millisecond, time.Millisecond))
	pr, err := c.CreatePullRequest(context.Background(), "sprintwise", "api", "h", "b", "t", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Number != 7 {
		t.Errorf("expected PR 7, got %d", pr.Number)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestClient_FindOpenPR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/repos/sprintwise/api/pulls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("head") != "sprintwise:aidev/PROJ-2" || q.Get("base") != "main" || q.Get("state") != "open" {
			t.Errorf("unexpected query: %v", q)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"number": 9, "html_url": "https://github.com/sprintwise/api/pull/9", "state": "open"},
		})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	pr, err := c.FindOpenPR(context.Background(), "sprintwise", "api", "aidev/PROJ-2", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr == nil || pr.Number != 9 {
		t.Errorf("unexpected PR: %+v", pr)
	}
}

func TestClient_FindOpenPR_NoneFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	pr, err := c.FindOpenPR(context.Background(), "sprintwise", "api", "head", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr != nil {
		t.Errorf("expected nil PR, got %+v", pr)
	}
}

func TestClient_LinkPRToIssue_AppendsClosingRef(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"number": 5, "body": "Implements the thing", "state": "open",
			})
		case http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patched)
			json.NewEncoder(w).Encode(map[string]any{
				"number": 5, "body": patched["body"], "state": "open",
			})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	pr, err := c.LinkPRToIssue(context.Background(), "sprintwise", "api", 5, 33)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Body != "Implements the thing\n\nCloses #33" {
		t.Errorf("unexpected body: %q", pr.Body)
	}
}

func TestClient_LinkPRToIssue_AlreadyLinked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			t.Error("expected no PATCH for an already linked PR")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"number": 5, "body": "Closes #33", "state": "open",
		})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	pr, err := c.LinkPRToIssue(context.Background(), "sprintwise", "api", 5, 33)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Body != "Closes #33" {
		t.Errorf("unexpected body: %q", pr.Body)
	}
}

func TestClient_PostIssueComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/repos/sprintwise/api/issues/12/comments" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 777, "body": "done", "user": map[string]any{"login": "aidev-bot"},
		})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	comment, err := c.PostIssueComment(context.Background(), "sprintwise", "api", 12, "done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comment.ID != 777 || comment.User != "aidev-bot" {
		t.Errorf("unexpected comment: %+v", comment)
	}
}

func TestClient_CloseAndReopenIssue(t *testing.T) {
	var states []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		state, _ := body["state"].(string)
		states = append(states, state)
		json.NewEncoder(w).Encode(map[string]any{"number": 12, "state": state})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))

	closed, err := c.CloseIssue(context.Background(), "sprintwise", "api", 12)
	if err != nil {
		t.Fatalf("CloseIssue failed: %v", err)
	}
	if closed.State != "closed" {
		t.Errorf("state = %q, want closed", closed.State)
	}

	reopened, err := c.ReopenIssue(context.Background(), "sprintwise", "api", 12)
	if err != nil {
		t.Fatalf("ReopenIssue failed: %v", err)
	}
	if reopened.State != "open" {
		t.Errorf("state = %q, want open", reopened.State)
	}

	if len(states) != 2 || states[0] != "closed" || states[1] != "open" {
		t.Errorf("unexpected state sequence: %v", states)
	}
}

func TestClient_GetIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/repos/sprintwise/api/issues/3" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"number": 3,
			"title":  "Fix login",
			"body":   "Users cannot log in",
			"state":  "open",
			"labels": []map[string]any{{"name": "bug"}, {"name": "auth"}},
			"user":   map[string]any{"login": "reporter"},
		})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	issue, err := c.GetIssue(context.Background(), "sprintwise", "api", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.Title != "Fix login" || issue.User != "reporter" {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if len(issue.Labels) != 2 || issue.Labels[0] != "bug" {
		t.Errorf("unexpected labels: %v", issue.Labels)
	}
}

func TestClient_AddLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/repos/sprintwise/api/issues/3/labels" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body []string
		json.NewDecoder(r.Body).Decode(&body)
		if len(body) != 1 || body[0] != "in-progress" {
			t.Errorf("unexpected labels body: %v", body)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"name": "bug"}, {"name": "in-progress"}})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"))
	labels, err := c.AddLabels(context.Background(), "sprintwise", "api", 3, []string{"in-progress"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 2 || labels[1] != "in-progress" {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestClient_RemoveLabel_NotFound(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"message": "Label does not exist"})
	}))
	defer srv.Close()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"), WithRetryBackoff(time.Millisecond))
	err := c.RemoveLabel(context.Background(), "sprintwise", "api", 3, "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a 404, got %d", calls)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := mustNew(t, "ghp_test123", WithBaseURL(srv.URL+"/"), WithRetryBackoff(time.Second))
	_, err := c.GetIssue(ctx, "sprintwise", "api", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
