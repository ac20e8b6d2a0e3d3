package strategy

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHexKey(t *testing.T) {
	t.Parallel()

	buf, err := GenerateHexKey(32)
	require.NoError(t, err)
	defer buf.Destroy()

	value, err := buf.String()
	require.NoError(t, err)
	assert.Len(t, value, 64)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), value)

	other, err := GenerateHexKey(32)
	require.NoError(t, err)
	defer other.Destroy()

	otherValue, err := other.String()
	require.NoError(t, err)
	assert.NotEqual(t, value, otherValue)
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	buf, err := GeneratePassword(32)
	require.NoError(t, err)
	defer buf.Destroy()

	value, err := buf.String()
	require.NoError(t, err)
	assert.Len(t, value, 32)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-zA-Z]+$`), value)
}
