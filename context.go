package dispatch

import "context"

// wfCtxKey is the private context key used to stash a WorkflowContext inside a
// Go context, enabling executors to detect whether a call originates from
// inside a workflow handler.
type wfCtxKey struct{}

// WithWorkflowContext returns a child context that carries the provided
// WorkflowContext. Executor implementations attach it to the context handed to
// workflow handlers so task dispatch can be routed through the backend.
func WithWorkflowContext(ctx context.Context, wc WorkflowContext) context.Context {
	return context.WithValue(ctx, wfCtxKey{}, wc)
}

// WorkflowContextFrom extracts a WorkflowContext from ctx if present. Returns
// nil when ctx does not originate from workflow code, in which case executors
// run tasks directly in the calling process.
func WorkflowContextFrom(ctx context.Context) WorkflowContext {
	if v := ctx.Value(wfCtxKey{}); v != nil {
		if wc, ok := v.(WorkflowContext); ok {
			return wc
		}
	}
	return nil
}
