package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(status int32) Handler {
	return func(ctx context.Context, env *Env, args []uint32) (int32, error) {
		return status, nil
	}
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Names())
}

func TestNewRegistry_WithFunction(t *testing.T) {
	reg, err := NewRegistry(
		WithFunction("eea_fn_b", 1, okHandler(0)),
		WithFunction("eea_fn_a", 2, okHandler(0)),
	)
	require.NoError(t, err)

	assert.True(t, reg.Has("eea_fn_a"))
	assert.False(t, reg.Has("nonexistent"))
	assert.Equal(t, []string{"eea_fn_a", "eea_fn_b"}, reg.Names())

	fn, ok := reg.Lookup("eea_fn_a")
	require.True(t, ok)
	assert.Equal(t, 2, fn.Params)
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RegistryOption
		wantErr string
	}{
		{
			name:    "duplicate",
			opts:    []RegistryOption{WithFunction("f", 0, okHandler(0)), WithFunction("f", 0, okHandler(0))},
			wantErr: "duplicate function name",
		},
		{
			name:    "empty name",
			opts:    []RegistryOption{WithFunction("", 0, okHandler(0))},
			wantErr: "cannot be empty",
		},
		{
			name:    "nil handler",
			opts:    []RegistryOption{WithFunction("f", 0, nil)},
			wantErr: "no handler",
		},
		{
			name:    "bundle clashes with function",
			opts:    []RegistryOption{WithBundle(CoreBundle()), WithFunction(FuncTrace, 3, okHandler(0))},
			wantErr: "duplicate function name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_Invoke(t *testing.T) {
	var gotName string
	reg, err := NewRegistry(
		WithFunction("echo", 1, func(ctx context.Context, env *Env, args []uint32) (int32, error) {
			gotName = ctx.(HostContext).FunctionName()
			return int32(args[0]), nil
		}),
	)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		status, err := reg.Invoke(context.Background(), "echo", nil, []uint32{7})
		require.NoError(t, err)
		assert.Equal(t, int32(7), status)
		assert.Equal(t, "echo", gotName)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := reg.Invoke(context.Background(), "unknown", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown host function")
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := reg.Invoke(context.Background(), "echo", nil, []uint32{1, 2})
		var ace *ArgCountError
		require.ErrorAs(t, err, &ace)
		assert.Equal(t, 1, ace.Want)
		assert.Equal(t, 2, ace.Got)
	})
}

func TestRegistry_NamesIsACopy(t *testing.T) {
	reg, err := NewRegistry(WithFunction("a", 0, okHandler(0)))
	require.NoError(t, err)

	names := reg.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a"}, reg.Names())
}
