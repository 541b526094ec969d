package service

import "context"

// Event names emitted by the workflow engine.
type Event string

const (
	WorkflowStartedEvent   Event = "workflow_started"
	StageStartedEvent      Event = "stage_started"
	StageCompletedEvent    Event = "stage_completed"
	StageFailedEvent       Event = "stage_failed"
	WorkflowCompletedEvent Event = "workflow_completed"
	WorkflowFailedEvent    Event = "workflow_failed"
	WorkflowPausedEvent    Event = "workflow_paused"
	WorkflowCancelledEvent Event = "workflow_cancelled"
)

// EventHandler receives an engine event with its payload. The payload always
// carries "workflow_id"; stage events add "stage_id" and "stage_name".
type EventHandler func(ctx context.Context, event Event, data map[string]interface{}) error

// OnEvent registers a handler for an event. Handlers are dispatched
// sequentially in registration order.
func (e *WorkflowEngine) OnEvent(event Event, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// emit dispatches an event to its handlers. A handler error aborts dispatch
// of the remaining handlers and propagates, unless the engine is configured
// to continue on handler errors, in which case the failure is logged and
// dispatch continues.
func (e *WorkflowEngine) emit(ctx context.Context, event Event, data map[string]interface{}) error {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers[event]...)
	e.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event, data); err != nil {
			if e.cfg.ContinueOnHandlerError {
				e.logger.Errorf("Event handler for %s failed: %v", event, err)
				continue
			}
			return err
		}
	}
	return nil
}
