package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MinPrefixSize is the smallest accepted random prefix, in bytes.
const MinPrefixSize = 16

// Codec mints and verifies session tokens. Safe for concurrent use.
type Codec struct {
	key        []byte
	prefixSize int
	random     io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithPrefixSize sets the number of random bytes in each token.
func WithPrefixSize(n int) Option {
	return func(c *Codec) {
		c.prefixSize = n
	}
}

// WithRandom replaces the randomness source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.random = r
		}
	}
}

// NewCodec creates a codec signing with the given secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		key:        []byte(secret),
		prefixSize: MinPrefixSize,
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.prefixSize < MinPrefixSize {
		return nil, fmt.Errorf("%w: got %d, want at least %d", ErrInvalidPrefixSize, c.prefixSize, MinPrefixSize)
	}

	return c, nil
}

// NewCodecFromConfig creates a codec from Config.
func NewCodecFromConfig(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.PrefixSize > 0 {
		opts = append([]Option{WithPrefixSize(cfg.PrefixSize)}, opts...)
	}
	return NewCodec(cfg.Secret, opts...)
}

// MustNewCodec is like NewCodec but panics on error.
// A process without a signing secret must not start.
func MustNewCodec(secret string, opts ...Option) *Codec {
	c, err := NewCodec(secret, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Mint returns a fresh token bound to userID.
func (c *Codec) Mint(userID int64) (string, error) {
	prefix := make([]byte, c.prefixSize)
	if _, err := io.ReadFull(c.random, prefix); err != nil {
		return "", errors.Join(ErrRandomSource, err)
	}

	sig := c.sign(prefix, userID)
	return hex.EncodeToString(prefix) + hex.EncodeToString(sig), nil
}

// Verify reports whether tok was minted by this codec for userID.
func (c *Codec) Verify(tok string, userID int64) bool {
	if len(tok) != c.TokenLen() || !lowerHex(tok) {
		return false
	}

	raw, err := hex.DecodeString(tok)
	if err != nil {
		return false
	}

	prefix, sig := raw[:c.prefixSize], raw[c.prefixSize:]
	return hmac.Equal(sig, c.sign(prefix, userID))
}

// lowerHex reports whether s uses only the alphabet Mint emits, so every
// distinct string maps to distinct bytes.
func lowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// TokenLen is the length of every token this codec mints.
func (c *Codec) TokenLen() int {
	return 2 * (c.prefixSize + sha256.Size)
}

func (c *Codec) sign(prefix []byte, userID int64) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write(prefix)
	h.Write(strconv.AppendInt(nil, userID, 10))
	return h.Sum(nil)
}
