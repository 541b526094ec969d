package agent

// Config describes one agent role.
type Config struct {
	Type         Type
	Name         string
	Description  string
	PromptFile   string
	ModelTier    ModelTier
	Capabilities []string
}

// Registry holds agent configurations. It is a plain value owned by the
// caller; nothing in this package keeps process-wide mutable state, so
// concurrent workflows cannot race on a shared cache.
type Registry struct {
	configs map[Type]Config
}

// NewRegistry returns the built-in agent roster.
func NewRegistry() Registry {
	configs := []Config{
		{PM, "Product Manager", "Requirements gathering, task creation, prioritization", "product-manager.md", TierSonnet, []string{"requirements", "task_creation", "prioritization"}},
		{Arch, "Architect", "System design, technology selection, API contracts", "architect.md", TierOpus, []string{"system_design", "tech_selection", "api_design"}},
		{Research, "Researcher", "Investigation, analysis, best practices research", "researcher.md", TierSonnet, []string{"research", "analysis", "evaluation"}},
		{GD, "Graphical Designer", "Visual design, color schemes, typography, iconography", "graphical-designer.md", TierSonnet, []string{"visual_design", "branding", "graphics"}},
		{UIUX, "UI/UX Specialist", "User flows, wireframes, interaction design, accessibility", "uiux-specialist.md", TierSonnet, []string{"ux_design", "wireframes", "accessibility"}},
		{CQR, "Code Quality Reviewer", "Code review, best practices, style compliance", "code-quality-reviewer.md", TierSonnet, []string{"code_review", "best_practices", "style"}},
		{SR, "Security Reviewer", "Security analysis, vulnerability detection, secure coding", "security-reviewer.md", TierOpus, []string{"security_audit", "vulnerability_detection"}},
		{QE, "Quality Engineer", "Test planning, requirement validation, coverage analysis", "quality-engineer.md", TierSonnet, []string{"test_planning", "validation", "coverage"}},
		{E2E, "E2E Tester", "End-to-end testing, integration testing, user journeys", "e2e-tester.md", TierSonnet, []string{"e2e_testing", "integration_testing"}},
		{TQR, "Task Quality Reviewer", "Task clarity validation, specification completeness", "task-quality-reviewer.md", TierHaiku, []string{"task_validation", "clarity_check"}},
		{DOE, "DevOps Engineer", "CI/CD, infrastructure, deployment", "devops-engineer.md", TierSonnet, []string{"devops", "ci_cd", "infrastructure"}},
		{TLPython, "Team Lead (Python)", "Python team coordination, code standards, architecture decisions", "team-lead.md", TierSonnet, []string{"team_lead", "python", "coordination"}},
		{TLJavaScript, "Team Lead (JavaScript)", "JavaScript team coordination, code standards, architecture decisions", "team-lead.md", TierSonnet, []string{"team_lead", "javascript", "coordination"}},
		{DevPython, "Developer (Python)", "Python implementation, coding, debugging", "developer.md", TierSonnet, []string{"development", "python", "implementation"}},
		{DevJavaScript, "Developer (JavaScript)", "JavaScript implementation, coding, debugging", "developer.md", TierSonnet, []string{"development", "javascript", "implementation"}},
	}
	m := make(map[Type]Config, len(configs))
	for _, c := range configs {
		m[c.Type] = c
	}
	return Registry{configs: m}
}

// Get returns the configuration for an agent type.
func (r Registry) Get(t Type) (Config, bool) {
	c, ok := r.configs[t]
	return c, ok
}

// All returns every registered agent configuration.
func (r Registry) All() []Config {
	out := make([]Config, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c)
	}
	return out
}

// ModelFor returns the model tier for an agent type, defaulting to sonnet
// for unregistered types.
func (r Registry) ModelFor(t Type) ModelTier {
	if c, ok := r.configs[t]; ok {
		return c.ModelTier
	}
	return TierSonnet
}
