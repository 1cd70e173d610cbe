package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionIDFormat(t *testing.T) {
	id := ConnectionID()

	raw, ok := strings.CutPrefix(id, ConnPrefix)
	require.True(t, ok, id)
	_, err := uuid.Parse(raw)
	assert.NoError(t, err)
}

func TestConnectionIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := ConnectionID()
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}
