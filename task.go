package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Task is a plain function tagged with a name so an orchestration backend can
// recognize it as a remotely invocable unit. Wrapping performs no execution;
// it only records the name and validates the function shape.
//
// Valid task functions take an optional leading context.Context followed by
// any number of positional parameters, and return zero, one, or two values
// where a trailing error is allowed:
//
//	func(ctx context.Context, a, b int) (int, error)
//	func(s string) string
//	func() error
type Task struct {
	name     string
	fn       any
	fv       reflect.Value
	ft       reflect.Type
	hasCtx   bool
	defaults TaskOptions
}

// NewTask validates fn and tags it with name. Variadic functions are rejected:
// backends deliver positional arguments only.
func NewTask(name string, fn any) (*Task, error) {
	if name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("task %q: function is required", name)
	}
	ft := reflect.TypeOf(fn)
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("task %q: expected a function, got %T", name, fn)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("task %q: variadic functions are not supported", name)
	}
	switch ft.NumOut() {
	case 0, 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("task %q: second return value must be error", name)
		}
	default:
		return nil, fmt.Errorf("task %q: functions may return at most two values", name)
	}
	hasCtx := ft.NumIn() > 0 && ft.In(0).Implements(contextType)
	return &Task{
		name:   name,
		fn:     fn,
		fv:     reflect.ValueOf(fn),
		ft:     ft,
		hasCtx: hasCtx,
	}, nil
}

// WithDefaults sets the default dispatch options applied when a TaskCall does
// not override them. Returns the task for chaining.
func (t *Task) WithDefaults(o TaskOptions) *Task {
	t.defaults = o
	return t
}

// Name returns the name the backend runtime knows this task by.
func (t *Task) Name() string { return t.name }

// Func returns the underlying function for backend registration.
func (t *Task) Func() any { return t.fn }

// Defaults returns the task's default dispatch options.
func (t *Task) Defaults() TaskOptions { return t.defaults }

// NumArgs returns the number of positional arguments the task expects,
// excluding a leading context.Context.
func (t *Task) NumArgs() int {
	n := t.ft.NumIn()
	if t.hasCtx {
		n--
	}
	return n
}

// Call invokes the task function directly with the given positional arguments,
// preserving their order and count, and returns the function's result or its
// failure. ctx is passed through when the function accepts one.
func (t *Task) Call(ctx context.Context, args []any) (any, error) {
	if want := t.NumArgs(); len(args) != want {
		return nil, fmt.Errorf("task %q: expected %d arguments, got %d", t.name, want, len(args))
	}
	in := make([]reflect.Value, 0, t.ft.NumIn())
	if t.hasCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	offset := len(in)
	for i, arg := range args {
		v, err := coerceArg(arg, t.ft.In(offset+i))
		if err != nil {
			return nil, fmt.Errorf("task %q: argument %d: %w", t.name, i, err)
		}
		in = append(in, v)
	}

	out := t.fv.Call(in)
	return splitResults(out)
}

// splitResults separates a reflective call result into (value, error).
func splitResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// coerceArg adapts arg to the parameter type. Direct assignment and numeric
// conversion are tried first; a JSON round trip covers arguments that crossed
// a serialization boundary (e.g. map[string]any into a struct parameter).
func coerceArg(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(pt), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}
	if v.Type().ConvertibleTo(pt) && compatibleKinds(v.Kind(), pt.Kind()) {
		return v.Convert(pt), nil
	}
	target := reflect.New(pt)
	data, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot adapt %T to %s: %w", arg, pt, err)
	}
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot adapt %T to %s: %w", arg, pt, err)
	}
	return target.Elem(), nil
}

// compatibleKinds restricts reflect conversion to value families where it is
// lossless in intent (numbers to numbers, string to string). Without this,
// Convert would happily turn an int into a string of one rune.
func compatibleKinds(from, to reflect.Kind) bool {
	return numericKind(from) && numericKind(to) || from == to
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Assign decodes src into the pointer dst. A nil dst discards the value. The
// fast path is direct reflect assignment; values that crossed a serialization
// boundary fall back to a JSON round trip, mirroring how backend payload
// converters decode results.
func Assign(dst, src any) error {
	if dst == nil {
		return nil
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("result must be a non-nil pointer, got %T", dst)
	}
	if src == nil {
		dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("cannot decode %T into %T: %w", src, dst, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cannot decode %T into %T: %w", src, dst, err)
	}
	return nil
}
