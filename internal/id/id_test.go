package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id, err := Generate("job")
		require.NoError(t, err)
		assert.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{"job", "flow", "sync"} {
		t.Run(prefix, func(t *testing.T) {
			id := MustGenerate(prefix)
			require.True(t, strings.HasPrefix(id, prefix+"-"))
			assert.Len(t, strings.TrimPrefix(id, prefix+"-"), 21)
		})
	}
}

func TestRow(t *testing.T) {
	a, b := Row(), Row()
	assert.NotEqual(t, a, b)
	assert.True(t, IsRow(a))
	assert.Len(t, a, 36)
	// v7 ids generated in sequence sort in creation order
	assert.Less(t, a, b)

	assert.False(t, IsRow("job-V1StGXR8_Z5jdHi6B-myT"))
	assert.False(t, IsRow(""))
}
