package devagent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResult extracts the result JSON from agent output. The agent is told
// to print it as the last line, but chatty agents wrap it in prose or code
// fences, so the scan walks backwards over the output looking for the last
// JSON object that carries a status field.
func ParseResult(output string) (Result, error) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		line = strings.TrimPrefix(line, "```json")
		line = strings.TrimPrefix(line, "```")
		line = strings.TrimSuffix(line, "```")
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}

		var result Result
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			continue
		}
		if result.Status == "" {
			continue
		}
		if err := validateStatus(result.Status); err != nil {
			return Result{}, err
		}
		return result, nil
	}
	return Result{}, fmt.Errorf("no result JSON found in agent output")
}

func validateStatus(status string) error {
	switch status {
	case StatusComplete, StatusPRCreated, StatusNeedsClarification, StatusFailed:
		return nil
	}
	return fmt.Errorf("agent reported unknown status %q", status)
}
