package services

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestKeyIssuer_Format(t *testing.T) {
	k := NewKeyIssuer()

	key := k.Generate("TinyLlama/Chat v1.0")

	assert.Regexp(t, regexp.MustCompile(`^tinyllama-chat-v1-0-[0-9a-f]{32}$`), key)
}

func TestKeyIssuer_Unique(t *testing.T) {
	k := NewKeyIssuer()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key := k.Generate("bert")
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestKeyIssuer_Deterministic(t *testing.T) {
	k := &KeyIssuer{random: bytes.NewReader(bytes.Repeat([]byte{0xab}, 16))}

	assert.Equal(t, "bert-"+strings.Repeat("ab", 16), k.Generate("bert"))
}

func TestKeyIssuer_PanicsWithoutRandomness(t *testing.T) {
	k := &KeyIssuer{random: failingReader{}}

	assert.Panics(t, func() { k.Generate("bert") })
}

func TestSanitizeScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  string
	}{
		{"plain", "bert", "bert"},
		{"mixed case and symbols", "GPT-2 (small)", "gpt-2-small"},
		{"collapses separators", "a__b--c", "a-b-c"},
		{"empty", "", "pk"},
		{"only symbols", "!!!", "pk"},
		{"truncated", strings.Repeat("x", 100), strings.Repeat("x", 48)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeScope(tt.scope))
		})
	}
}
