package window

import (
	"fmt"
	"strings"
)

// ContextInput is everything serialized into a task's input context.
type ContextInput struct {
	TaskID       string
	AgentType    string
	WorkflowID   string
	Summary      string
	Requirements []string
	Constraints  []string
	Dependencies []DependencyOutput
}

func escapeXML(text string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(text)
}

// BuildTaskContext serializes a task and its windowed dependency outputs
// into the XML blob handed to the executor and persisted for audit.
func BuildTaskContext(in ContextInput) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<task_input>\n")

	b.WriteString("  <meta>\n")
	fmt.Fprintf(&b, "    <task_id>%s</task_id>\n", escapeXML(in.TaskID))
	fmt.Fprintf(&b, "    <agent_type>%s</agent_type>\n", escapeXML(in.AgentType))
	fmt.Fprintf(&b, "    <workflow_id>%s</workflow_id>\n", escapeXML(in.WorkflowID))
	b.WriteString("  </meta>\n")

	fmt.Fprintf(&b, "  <summary>%s</summary>\n", escapeXML(in.Summary))

	if len(in.Requirements) > 0 {
		b.WriteString("  <requirements>\n")
		for _, req := range in.Requirements {
			fmt.Fprintf(&b, "    <requirement>%s</requirement>\n", escapeXML(req))
		}
		b.WriteString("  </requirements>\n")
	}

	if len(in.Constraints) > 0 {
		b.WriteString("  <constraints>\n")
		for _, con := range in.Constraints {
			fmt.Fprintf(&b, "    <constraint>%s</constraint>\n", escapeXML(con))
		}
		b.WriteString("  </constraints>\n")
	}

	if len(in.Dependencies) > 0 {
		b.WriteString("  <dependencies>\n")
		for _, dep := range in.Dependencies {
			b.WriteString("    <dependency>\n")
			fmt.Fprintf(&b, "      <task_id>%s</task_id>\n", escapeXML(dep.TaskID))
			fmt.Fprintf(&b, "      <agent_type>%s</agent_type>\n", escapeXML(dep.AgentType))
			fmt.Fprintf(&b, "      <output>%s</output>\n", escapeXML(dep.Output))
			b.WriteString("    </dependency>\n")
		}
		b.WriteString("  </dependencies>\n")
	}

	b.WriteString("</task_input>\n")
	return b.String()
}
