package token_test

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/token"
)

const testSecret = "test-secret-32-chars-long-123456"

func TestNewCodec(t *testing.T) {
	t.Parallel()

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		c, err := token.NewCodec("")
		require.ErrorIs(t, err, token.ErrMissingSecret)
		assert.Nil(t, c)
	})

	t.Run("prefix too small", func(t *testing.T) {
		t.Parallel()
		_, err := token.NewCodec(testSecret, token.WithPrefixSize(8))
		require.ErrorIs(t, err, token.ErrInvalidPrefixSize)
	})

	t.Run("must panics without secret", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { token.MustNewCodec("") })
	})

	t.Run("from config", func(t *testing.T) {
		t.Parallel()
		c, err := token.NewCodecFromConfig(token.Config{Secret: testSecret, PrefixSize: 24})
		require.NoError(t, err)
		assert.Equal(t, 2*(24+32), c.TokenLen())
	})
}

func TestCodec_MintVerify(t *testing.T) {
	t.Parallel()

	c := token.MustNewCodec(testSecret)

	ids := []int64{0, 1, 42, 1<<48 - 1, rand.Int64N(1 << 48)}
	for _, id := range ids {
		tok, err := c.Mint(id)
		require.NoError(t, err)
		assert.Len(t, tok, c.TokenLen())
		assert.True(t, c.Verify(tok, id), "token must verify for its own user %d", id)
		assert.False(t, c.Verify(tok, id+1), "token must not verify for user %d", id+1)
	}
}

func TestCodec_TokensAreUnique(t *testing.T) {
	t.Parallel()

	c := token.MustNewCodec(testSecret)
	seen := make(map[string]struct{})
	for range 100 {
		tok, err := c.Mint(7)
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}

func TestCodec_SingleByteMutation(t *testing.T) {
	t.Parallel()

	c := token.MustNewCodec(testSecret)
	tok, err := c.Mint(1234)
	require.NoError(t, err)

	for i := range len(tok) {
		b := []byte(tok)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		assert.False(t, c.Verify(string(b), 1234), "mutation at %d must fail", i)

		if tok[i] >= 'a' && tok[i] <= 'f' {
			b = []byte(tok)
			b[i] -= 'a' - 'A'
			assert.False(t, c.Verify(string(b), 1234), "case flip at %d must fail", i)
		}
	}
	assert.False(t, c.Verify(strings.ToUpper(tok), 1234))
}

func TestCodec_DifferentSecret(t *testing.T) {
	t.Parallel()

	a := token.MustNewCodec(testSecret)
	b := token.MustNewCodec("another-secret")

	tok, err := a.Mint(5)
	require.NoError(t, err)
	assert.False(t, b.Verify(tok, 5))
}

func TestCodec_MalformedTokens(t *testing.T) {
	t.Parallel()

	c := token.MustNewCodec(testSecret)
	valid, err := c.Mint(9)
	require.NoError(t, err)

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"short", valid[:len(valid)-2]},
		{"long", valid + "00"},
		{"not hex", strings.Repeat("z", len(valid))},
		{"uppercase hex", strings.ToUpper(valid[:len(valid)-1]) + "g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.False(t, c.Verify(tt.tok, 9))
		})
	}
}

func TestCodec_RandomSourceFailure(t *testing.T) {
	t.Parallel()

	c := token.MustNewCodec(testSecret, token.WithRandom(bytes.NewReader([]byte{1, 2, 3})))
	_, err := c.Mint(1)
	require.ErrorIs(t, err, token.ErrRandomSource)
}
