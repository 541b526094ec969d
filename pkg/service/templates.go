package service

import "github.com/ignatij/agentflow/pkg/agent"

// StageDefinition is one phase of a workflow template.
type StageDefinition struct {
	Name       string
	AgentTypes []agent.Type
	Parallel   bool
}

// Definition is a reusable workflow template; instantiating it produces a
// WorkflowRun with one StageInstance per stage, in order.
type Definition struct {
	ID          string
	Name        string
	Description string
	Stages      []StageDefinition
}

// Templates is a lookup of workflow definitions, passed explicitly to the
// engine by the caller.
type Templates struct {
	defs map[string]Definition
}

// NewTemplates builds a registry from the given definitions.
func NewTemplates(defs ...Definition) Templates {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return Templates{defs: m}
}

// Get returns the definition for a workflow type.
func (t Templates) Get(workflowType string) (Definition, bool) {
	d, ok := t.defs[workflowType]
	return d, ok
}

// List returns all registered definitions.
func (t Templates) List() []Definition {
	out := make([]Definition, 0, len(t.defs))
	for _, d := range t.defs {
		out = append(out, d)
	}
	return out
}

// DefaultTemplates returns the built-in workflow templates.
func DefaultTemplates() Templates {
	return NewTemplates(
		Definition{
			ID:          "full_project",
			Name:        "Full Project",
			Description: "Complete project from idea to implementation",
			Stages: []StageDefinition{
				{Name: "requirements", AgentTypes: []agent.Type{agent.PM}},
				{Name: "research", AgentTypes: []agent.Type{agent.Research}},
				{Name: "architecture", AgentTypes: []agent.Type{agent.Arch}},
				{Name: "design", AgentTypes: []agent.Type{agent.GD, agent.UIUX}, Parallel: true},
				{Name: "task_review", AgentTypes: []agent.Type{agent.TQR}},
				{Name: "implementation", AgentTypes: []agent.Type{agent.DevPython}, Parallel: true},
				{Name: "quality", AgentTypes: []agent.Type{agent.CQR, agent.SR, agent.QE}, Parallel: true},
				{Name: "e2e_testing", AgentTypes: []agent.Type{agent.E2E}},
			},
		},
		Definition{
			ID:          "add_feature",
			Name:        "Add Feature",
			Description: "Add a feature to existing project",
			Stages: []StageDefinition{
				{Name: "requirements", AgentTypes: []agent.Type{agent.PM}},
				{Name: "architecture", AgentTypes: []agent.Type{agent.Arch}},
				{Name: "task_review", AgentTypes: []agent.Type{agent.TQR}},
				{Name: "implementation", AgentTypes: []agent.Type{agent.DevPython}, Parallel: true},
				{Name: "quality", AgentTypes: []agent.Type{agent.CQR, agent.QE}, Parallel: true},
			},
		},
		Definition{
			ID:          "fix_bug",
			Name:        "Fix Bug",
			Description: "Diagnose and fix a bug",
			Stages: []StageDefinition{
				{Name: "analysis", AgentTypes: []agent.Type{agent.Research}},
				{Name: "solution", AgentTypes: []agent.Type{agent.Arch}},
				{Name: "implementation", AgentTypes: []agent.Type{agent.DevPython}},
				{Name: "verification", AgentTypes: []agent.Type{agent.QE, agent.E2E}, Parallel: true},
			},
		},
		Definition{
			ID:          "security_audit",
			Name:        "Security Audit",
			Description: "Comprehensive security review of codebase",
			Stages: []StageDefinition{
				{Name: "analysis", AgentTypes: []agent.Type{agent.Research}},
				{Name: "security_review", AgentTypes: []agent.Type{agent.SR}},
				{Name: "quality_review", AgentTypes: []agent.Type{agent.CQR}},
			},
		},
	)
}
