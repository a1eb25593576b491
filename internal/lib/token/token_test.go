package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	got, err := Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	raw, err := base64.RawURLEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Len(t, raw, Size)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		tok, err := Generate()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated: %s", tok)
		seen[tok] = struct{}{}
	}
}

func TestGenerate_URLSafe(t *testing.T) {
	for range 100 {
		tok, err := Generate()
		require.NoError(t, err)
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		assert.NotContains(t, tok, "=")
	}
}
