package registry

import (
	"testing"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Run("register valid item", func(t *testing.T) {
		reg := New[string]()
		require.NoError(t, reg.Register("one", "first"))
		assert.Equal(t, 1, reg.Count())
		assert.True(t, reg.Has("one"))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		reg := New[string]()
		err := reg.Register("", "x")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrInvalidInput))
	})

	t.Run("re-registering overwrites", func(t *testing.T) {
		reg := New[string]()
		require.NoError(t, reg.Register("one", "first"))
		require.NoError(t, reg.Register("one", "second"))

		v, err := reg.Get("one")
		require.NoError(t, err)
		assert.Equal(t, "second", v)
		assert.Equal(t, 1, reg.Count())
	})
}

func TestGet(t *testing.T) {
	reg := New[int]()
	require.NoError(t, reg.Register("answer", 42))

	v, err := reg.Get("answer")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestRemove(t *testing.T) {
	reg := New[int]()
	require.NoError(t, reg.Register("a", 1))
	require.NoError(t, reg.Remove("a"))
	assert.False(t, reg.Has("a"))

	err := reg.Remove("a")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestList(t *testing.T) {
	reg := New[int]()
	require.NoError(t, reg.Register("b", 2))
	require.NoError(t, reg.Register("a", 1))
	require.NoError(t, reg.Register("c", 3))

	assert.Equal(t, []string{"a", "b", "c"}, reg.List())
}

func TestClear(t *testing.T) {
	reg := New[int]()
	require.NoError(t, reg.Register("a", 1))
	reg.Clear()
	assert.Equal(t, 0, reg.Count())
}

func TestSubscribe(t *testing.T) {
	reg := New[string]()

	type event struct {
		name     string
		replaced bool
	}
	var events []event
	reg.Subscribe(func(name string, replaced bool) {
		events = append(events, event{name, replaced})
	})

	require.NoError(t, reg.Register("p1", "v1"))
	require.NoError(t, reg.Register("p1", "v2"))
	require.NoError(t, reg.Register("p2", "v1"))

	require.Len(t, events, 3)
	assert.Equal(t, event{"p1", false}, events[0])
	assert.Equal(t, event{"p1", true}, events[1])
	assert.Equal(t, event{"p2", false}, events[2])
}

func TestProcessorsRegistry(t *testing.T) {
	procs := NewProcessors()
	require.NoError(t, procs.Register("touch", Entry{
		Kind:     KindInline,
		Priority: 10,
		Fn: func(node store.Node, ctx *store.Context, cfg map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	}))

	entry, err := procs.Get("touch")
	require.NoError(t, err)
	assert.Equal(t, KindInline, entry.Kind)

	out, err := entry.Fn(store.Node{Name: "f"}, store.NewContext(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
