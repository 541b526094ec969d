package agent

import "context"

// ExecuteRequest carries everything an executor needs to perform one task.
type ExecuteRequest struct {
	TaskID     string
	AgentType  Type
	WorkflowID string
	Context    string // Serialized task context
	Model      ModelTier
}

// Result is the outcome of one executor invocation.
type Result struct {
	Success      bool
	Summary      string
	Output       string
	Model        string // Model alias actually used
	InputTokens  int64
	OutputTokens int64
}

// Executor performs the actual unit of work for a task. Implementations may
// be slow and network-bound; errors are contained at the stage-executor
// boundary and converted to task failure, never re-raised.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req ExecuteRequest) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) (Result, error) {
	return f(ctx, req)
}
