package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTaskValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		task    string
		fn      any
		wantErr string
	}{
		{name: "missing name", task: "", fn: func() {}, wantErr: "name is required"},
		{name: "nil function", task: "t", fn: nil, wantErr: "function is required"},
		{name: "not a function", task: "t", fn: 42, wantErr: "expected a function"},
		{name: "variadic", task: "t", fn: func(args ...int) {}, wantErr: "variadic"},
		{name: "three returns", task: "t", fn: func() (int, int, error) { return 0, 0, nil }, wantErr: "at most two"},
		{name: "second return not error", task: "t", fn: func() (int, int) { return 0, 0 }, wantErr: "must be error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTask(tc.task, tc.fn)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestNewTaskAcceptsCommonShapes(t *testing.T) {
	t.Parallel()

	for _, fn := range []any{
		func() {},
		func() error { return nil },
		func(s string) string { return s },
		func(ctx context.Context, a, b int) (int, error) { return a + b, nil },
	} {
		_, err := NewTask("shape", fn)
		require.NoError(t, err)
	}
}

func TestTaskCallPreservesArgumentOrder(t *testing.T) {
	t.Parallel()

	task, err := NewTask("join", func(a, b, c string) string { return a + b + c })
	require.NoError(t, err)

	out, err := task.Call(context.Background(), []any{"x", "y", "z"})
	require.NoError(t, err)
	require.Equal(t, "xyz", out)
}

func TestTaskCallRejectsArityMismatch(t *testing.T) {
	t.Parallel()

	task, err := NewTask("pair", func(a, b int) int { return a + b })
	require.NoError(t, err)

	_, err = task.Call(context.Background(), []any{1})
	require.ErrorContains(t, err, "expected 2 arguments, got 1")

	_, err = task.Call(context.Background(), []any{1, 2, 3})
	require.ErrorContains(t, err, "expected 2 arguments, got 3")
}

func TestTaskCallPassesContext(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	task, err := NewTask("probe", func(ctx context.Context) (string, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, task.NumArgs())

	ctx := context.WithValue(context.Background(), ctxKey{}, "present")
	out, err := task.Call(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, "present", out)
}

func TestTaskCallCoercesSerializedArguments(t *testing.T) {
	t.Parallel()

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	task, err := NewTask("norm", func(p point, scale int) (int, error) {
		return (p.X + p.Y) * scale, nil
	})
	require.NoError(t, err)

	// Arguments as they arrive after a JSON decode: maps and float64 numbers.
	out, err := task.Call(context.Background(), []any{map[string]any{"x": 1, "y": 2}, float64(10)})
	require.NoError(t, err)
	require.Equal(t, 30, out)
}

func TestTaskCallReturnsFunctionError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	task, err := NewTask("fail", func() error { return boom })
	require.NoError(t, err)

	_, err = task.Call(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}

func TestAssign(t *testing.T) {
	t.Parallel()

	t.Run("nil destination discards", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, Assign(nil, "ignored"))
	})

	t.Run("non-pointer destination fails", func(t *testing.T) {
		t.Parallel()
		require.ErrorContains(t, Assign("not a pointer", "v"), "non-nil pointer")
	})

	t.Run("direct assignment", func(t *testing.T) {
		t.Parallel()
		var s string
		require.NoError(t, Assign(&s, "value"))
		require.Equal(t, "value", s)
	})

	t.Run("nil source zeroes destination", func(t *testing.T) {
		t.Parallel()
		s := "stale"
		require.NoError(t, Assign(&s, nil))
		require.Empty(t, s)
	})

	t.Run("serialized source decodes into struct", func(t *testing.T) {
		t.Parallel()
		var dst struct {
			Name string `json:"name"`
		}
		require.NoError(t, Assign(&dst, map[string]any{"name": "decoded"}))
		require.Equal(t, "decoded", dst.Name)
	})
}
