// Package claude executes agents through the Claude Code CLI in headless
// mode (claude --print --output-format json). Running through the CLI reuses
// its authentication, so no API key handling happens here.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/agent"
)

const defaultCLIPath = "claude"

// cliResult mirrors the JSON object the CLI prints with type "result".
type cliResult struct {
	Type         string  `json:"type"`
	Result       string  `json:"result"`
	SessionID    string  `json:"session_id"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
}

// Executor implements agent.Executor by shelling out to the Claude CLI.
type Executor struct {
	cliPath string
	prompts *PromptLoader
}

func NewExecutor(cliPath string, prompts *PromptLoader) *Executor {
	if cliPath == "" {
		cliPath = defaultCLIPath
	}
	return &Executor{cliPath: cliPath, prompts: prompts}
}

// Verify reports whether the CLI is installed and runnable.
func (e *Executor) Verify(ctx context.Context) bool {
	return exec.CommandContext(ctx, e.cliPath, "--version").Run() == nil
}

func (e *Executor) Execute(ctx context.Context, req agent.ExecuteRequest) (agent.Result, error) {
	args := []string{
		"--print",
		"--output-format", "json",
		"--model", string(req.Model),
		"--max-turns", "1",
	}
	if e.prompts != nil {
		if system, err := e.prompts.Load(req.AgentType); err == nil && system != "" {
			args = append(args, "--append-system-prompt", system)
		}
	}
	args = append(args, req.Context)

	cmd := exec.CommandContext(ctx, e.cliPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return agent.Result{}, errors.Errorf("claude cli failed: %s", msg)
	}

	res, ok := parseCLIOutput(stdout.String())
	if !ok {
		// Plain text fallback, no usage data available
		res = cliResult{Result: stdout.String()}
	}

	parsed := ParseResponse(res.Result)
	return agent.Result{
		Success:      parsed.Success,
		Summary:      parsed.Summary,
		Output:       res.Result,
		Model:        string(req.Model),
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	}, nil
}

// parseCLIOutput finds the final "result" object. The CLI may stream several
// JSON objects, one per line; the last result line wins.
func parseCLIOutput(out string) (cliResult, bool) {
	var final cliResult
	found := false
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var r cliResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		if r.Type == "result" {
			final = r
			found = true
		}
	}
	if found {
		return final, true
	}
	var whole cliResult
	if err := json.Unmarshal([]byte(out), &whole); err == nil {
		return whole, true
	}
	return cliResult{}, false
}
