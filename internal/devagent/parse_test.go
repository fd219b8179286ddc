package devagent

import (
	"strings"
	"testing"
)

func TestParseResult_LastLine(t *testing.T) {
	output := `I looked at the issue and made the change.

{"status": "pr_created", "pr_url": "https://github.com/sprintwise/api/pull/12", "pr_number": 12, "branch": "aidev/PROJ-1", "commit_sha": "abc123", "files_changed": ["internal/api/handler.go"]}`

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.Status != StatusPRCreated {
		t.Errorf("status = %q, want pr_created", result.Status)
	}
	if result.PRNumber != 12 || result.Branch != "aidev/PROJ-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.FilesChanged) != 1 {
		t.Errorf("unexpected files: %v", result.FilesChanged)
	}
}

func TestParseResult_CodeFenced(t *testing.T) {
	output := "Done. Final report:\n```json\n{\"status\": \"complete\", \"branch\": \"aidev/PROJ-2\", \"commit_sha\": \"def456\"}\n```\n"

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.Status != StatusComplete || result.CommitSHA != "def456" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestParseResult_NeedsClarification(t *testing.T) {
	output := `{"status": "needs_clarification", "questions": ["Which API version?", "Should errors be retried?"]}`

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.Status != StatusNeedsClarification {
		t.Errorf("status = %q, want needs_clarification", result.Status)
	}
	if len(result.Questions) != 2 {
		t.Errorf("unexpected questions: %v", result.Questions)
	}
}

func TestParseResult_PicksLastStatusObject(t *testing.T) {
	output := `{"status": "failed", "error": "first attempt"}
Retrying with a different approach.
{"status": "complete", "branch": "b"}`

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("status = %q, want complete", result.Status)
	}
}

func TestParseResult_IgnoresNonStatusJSON(t *testing.T) {
	output := `{"status": "failed", "error": "it broke"}
{"note": "trailing metadata"}`

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.Status != StatusFailed || result.Error != "it broke" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestParseResult_NoResult(t *testing.T) {
	if _, err := ParseResult("just some prose, no report"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseResult_UnknownStatus(t *testing.T) {
	_, err := ParseResult(`{"status": "maybe"}`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("error %q missing status detail", err)
	}
}

func TestRenderTask_IncludesAnswerSection(t *testing.T) {
	prompt, err := renderTask(Task{
		IssueKey:   "PROJ-1",
		Summary:    "Fix login",
		Branch:     "aidev/PROJ-1",
		BaseBranch: "main",
		Answer:     "Use API v2.",
	})
	if err != nil {
		t.Fatalf("renderTask failed: %v", err)
	}
	if !strings.Contains(prompt, "PROJ-1") || !strings.Contains(prompt, "Use API v2.") {
		t.Errorf("prompt missing task details:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Clarification from the ticket author") {
		t.Error("prompt missing clarification section")
	}
}

func TestRenderTask_FreshRunHasNoAnswerSection(t *testing.T) {
	prompt, err := renderTask(Task{IssueKey: "PROJ-2", Summary: "s", Branch: "b", BaseBranch: "main"})
	if err != nil {
		t.Fatalf("renderTask failed: %v", err)
	}
	if strings.Contains(prompt, "Clarification from the ticket author") {
		t.Error("fresh run prompt should not carry a clarification section")
	}
}
