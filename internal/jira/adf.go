package jira

import (
	"encoding/json"
	"strings"
)

// adfDocument wraps plain text in a minimal Atlassian Document Format
// document. Each input line becomes one paragraph.
func adfDocument(text string) map[string]any {
	lines := strings.Split(text, "\n")
	content := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		para := map[string]any{"type": "paragraph"}
		if line != "" {
			para["content"] = []map[string]any{
				{"type": "text", "text": line},
			}
		}
		content = append(content, para)
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// adfText flattens a document body to plain text. Paragraph-level nodes
// become lines; unknown node types are descended into so their text is not
// lost. A body that is not a document (old sites return raw strings) is
// returned as is.
func adfText(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain
	}

	var doc adfNode
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	var lines []string
	for _, node := range doc.Content {
		lines = append(lines, nodeText(node))
	}
	return strings.Join(lines, "\n")
}

func nodeText(node adfNode) string {
	if node.Type == "text" {
		return node.Text
	}
	if node.Type == "hardBreak" {
		return "\n"
	}
	var sb strings.Builder
	for _, child := range node.Content {
		sb.WriteString(nodeText(child))
	}
	return sb.String()
}
