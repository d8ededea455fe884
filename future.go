package dispatch

import "context"

// taskFuture is the Future returned by local asynchronous task dispatch,
// backed by a goroutine running the task function.
type taskFuture struct {
	done   chan struct{}
	result any
	err    error
}

// CallAsync invokes the task function in a new goroutine and returns a Future
// for its pending result. This is the local dispatch path used when a call
// does not originate from workflow code.
func (t *Task) CallAsync(ctx context.Context, args []any) Future {
	f := &taskFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = t.Call(ctx, args)
	}()
	return f
}

// Get blocks until the task completes and decodes the result into valuePtr.
func (f *taskFuture) Get(ctx context.Context, valuePtr any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
	}
	if f.err != nil {
		return f.err
	}
	return Assign(valuePtr, f.result)
}

// IsReady reports whether the task has completed.
func (f *taskFuture) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
