package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	apiKeyRandomBytes  = 16
	defaultAPIKeyScope = "pk"
	maxAPIKeyScopeLen  = 48
)

// KeyIssuer mints opaque API keys of the form "{scope}-{32 hex chars}".
// Callers must not parse keys; the scope prefix only helps humans tell keys
// apart.
type KeyIssuer struct {
	random io.Reader
}

func NewKeyIssuer() *KeyIssuer {
	return &KeyIssuer{random: rand.Reader}
}

// Generate returns a fresh key for scope. It panics if the secure random
// source fails: the process cannot mint credentials without it.
func (k *KeyIssuer) Generate(scope string) string {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := io.ReadFull(k.random, buf); err != nil {
		panic(fmt.Sprintf("api key issuer: secure random source unavailable: %v", err))
	}
	return sanitizeScope(scope) + "-" + hex.EncodeToString(buf)
}

func sanitizeScope(scope string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(scope) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
		if b.Len() >= maxAPIKeyScopeLen {
			break
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return defaultAPIKeyScope
	}
	return out
}
