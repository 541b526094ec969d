// Package service contains the workflow orchestration core: the workflow
// engine state machine, stage execution, and the task dependency graph.
package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Logger defines the logging interface used throughout the service layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	// ErrWorkflowNotFound is returned on workflow lookup misses. Never retried.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrUnknownWorkflowType is fatal to workflow creation.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	// ErrInvalidTransition is returned for operations rejected by the state
	// machine, e.g. resuming a workflow that is neither paused nor failed.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// NewWorkflowID generates an opaque workflow identifier,
// "wf_YYYYMMDD_HHMMSS_xxxxxxxx".
func NewWorkflowID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("wf_%s_%s", ts, suffix)
}

// StageID derives the identifier of the order-th stage of a workflow run.
func StageID(workflowID string, order int) string {
	return fmt.Sprintf("%s_stage_%02d", workflowID, order)
}

// SeedTaskID derives the identifier of a workflow's initial task.
func SeedTaskID(workflowID string) string {
	return fmt.Sprintf("%s_task_001", workflowID)
}
