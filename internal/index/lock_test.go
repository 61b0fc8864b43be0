package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

func TestDataDirLock_Exclusive(t *testing.T) {
	// Given: one holder of the data directory lock
	dir := t.TempDir()
	first := NewDataDirLock(dir)
	require.NoError(t, first.TryLock())

	// When: a second holder tries
	second := NewDataDirLock(dir)
	err := second.TryLock()

	// Then: it is refused until the first releases
	assert.Equal(t, cerrors.ErrCodeIndexLocked, cerrors.GetCode(err))
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	assert.NoError(t, second.Unlock())
	assert.NoError(t, second.Unlock())
}
