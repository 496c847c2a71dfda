package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"same answer", "paris", "paris", true},
		{"capitalization", "Paris", "paris", true},
		{"surrounding whitespace", " paris ", "Paris", true},
		{"tabs and newlines", "\tPARIS\n", "paris", true},
		{"different answer", "paris", "london", false},
		{"inner whitespace is significant", "new york", "newyork", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Hash(tt.a) == Hash(tt.b))
		})
	}
}

func TestHash_IsHexSHA256(t *testing.T) {
	h := Hash("rex")
	assert.Len(t, h, 64)
	assert.NotContains(t, h, "rex")
	assert.Equal(t, "3227fe6bde46249b0aae4b69ef6efd806422a46788e281d050d32d0d9fbde723", h)
	assert.Equal(t, h, Hash(" REX "))
}

func TestMatches(t *testing.T) {
	stored := Hash("Rex")
	assert.True(t, Matches("rex", stored))
	assert.True(t, Matches("  REX", stored))
	assert.False(t, Matches("max", stored))
	assert.False(t, Matches("rex", "not-a-hash"))
}
