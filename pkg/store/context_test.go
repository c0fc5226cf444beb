package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextStoresAreIndependent(t *testing.T) {
	c := NewContext()

	require.NoError(t, c.SetData([]string{"k"}, "data"))
	require.NoError(t, c.SetShared([]string{"k"}, "shared"))
	require.NoError(t, c.SetMetadata([]string{"k"}, "meta"))

	assert.Equal(t, "data", c.GetData([]string{"k"}, nil))
	assert.Equal(t, "shared", c.GetShared([]string{"k"}, nil))
	assert.Equal(t, "meta", c.GetMetadata([]string{"k"}, nil))

	c.DeleteData([]string{"k"})
	assert.Nil(t, c.GetData([]string{"k"}, nil))
	assert.Equal(t, "shared", c.GetShared([]string{"k"}, nil))
}

func TestContextResultsAppendOnly(t *testing.T) {
	c := NewContext()
	c.AddResult(ResultEntry{Phase: "inline", Processor: "p1"})
	c.AddResult(ResultEntry{Phase: "post", Processor: "p2"})

	require.Len(t, c.Results, 2)
	assert.Equal(t, "p1", c.Results[0].Processor)
	assert.Equal(t, "p2", c.Results[1].Processor)
}

func TestContextRecord(t *testing.T) {
	c := NewContext()
	rec := &ExecutionRecord{Sequence: 3}
	require.NoError(t, c.SetMetadata([]string{"sub/", "file.txt"}, rec))

	got := c.Record([]string{"sub/", "file.txt"})
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Sequence)

	assert.Nil(t, c.Record([]string{"missing"}))
}

func TestContextClear(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.SetData([]string{"a"}, 1))
	require.NoError(t, c.SetShared([]string{"b"}, 2))
	c.AddResult(ResultEntry{})

	c.Clear()
	assert.Empty(t, c.Data)
	assert.Empty(t, c.Shared)
	assert.Empty(t, c.Metadata)
	assert.Empty(t, c.Results)
}

func TestContextListShared(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.SetShared([]string{"executed", "a.txt"}, []string{"x"}))
	require.NoError(t, c.SetShared([]string{"executed", "sub/", "b.txt"}, []string{"y"}))

	paths := c.ListShared([]string{"executed"})
	assert.ElementsMatch(t, [][]string{
		{"executed", "a.txt"},
		{"executed", "sub/", "b.txt"},
	}, paths)
}
