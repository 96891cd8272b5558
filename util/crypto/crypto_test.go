package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPasswordAsBcrypt("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	other, err := HashPasswordAsBcrypt("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes are salted")

	assert.True(t, CheckPasswordHash(hash, "hunter22"))
	assert.False(t, CheckPasswordHash(hash, "hunter2"))
	assert.False(t, CheckPasswordHash("", "hunter22"))
	assert.False(t, CheckPasswordHash("not-a-hash", "hunter22"))
}
