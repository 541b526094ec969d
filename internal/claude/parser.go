package claude

import (
	"regexp"
	"strings"
)

// Response is the structured form of an agent's <task_output> reply.
type Response struct {
	Success      bool
	Summary      string
	KeyDecisions []string
	Warnings     []string
}

func tagRe(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `[^>]*>(.*?)</` + tag + `>`)
}

func extractTag(xml, tag string) string {
	m := tagRe(tag).FindStringSubmatch(xml)
	if m == nil {
		return ""
	}
	content := strings.TrimSpace(m[1])
	if strings.HasPrefix(content, "<![CDATA[") && strings.HasSuffix(content, "]]>") {
		content = content[9 : len(content)-3]
	}
	return content
}

func extractItems(xml, containerTag, itemTag string) []string {
	container := extractTag(xml, containerTag)
	if container == "" {
		return nil
	}
	var items []string
	for _, m := range tagRe(itemTag).FindAllStringSubmatch(container, -1) {
		items = append(items, strings.TrimSpace(m[1]))
	}
	return items
}

// ParseResponse extracts the task_output block from a raw agent reply.
// A reply without one counts as a failure; agents are prompted to always
// emit it.
func ParseResponse(raw string) Response {
	output := extractTag(raw, "task_output")
	if output == "" {
		return Response{
			Success: false,
			Summary: "Failed to parse response - no task_output found",
		}
	}
	return Response{
		Success:      strings.EqualFold(extractTag(output, "success"), "true"),
		Summary:      extractTag(output, "summary"),
		KeyDecisions: extractItems(output, "key_decisions", "decision"),
		Warnings:     extractItems(output, "warnings", "warning"),
	}
}
