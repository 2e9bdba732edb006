package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorForUser_IsStable(t *testing.T) {
	assert.Equal(t, ColorForUser("user-42"), ColorForUser("user-42"))
}

func TestColorForUser_KnownValues(t *testing.T) {
	// "a" hashes to 97, 97 % 8 = 1
	assert.Equal(t, "#10B981", ColorForUser("a"))
	// "ab" hashes to 97*31+98 = 3105, 3105 % 8 = 1
	assert.Equal(t, "#10B981", ColorForUser("ab"))
	// "b" hashes to 98, 98 % 8 = 2
	assert.Equal(t, "#F59E0B", ColorForUser("b"))
	assert.Equal(t, "#3B82F6", ColorForUser(""))
}

func TestColorForUser_AlwaysInPalette(t *testing.T) {
	for _, userId := range []string{"alice", "bob", "ümlaut", "😀-emoji", "a-very-long-user-identifier-that-overflows-int32"} {
		assert.Contains(t, ColorPalette, ColorForUser(userId), userId)
	}
}
