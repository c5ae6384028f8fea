package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/authkit/pkg/logger"
)

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	t.Run("group", func(t *testing.T) {
		attr := logger.Group("g", slog.String("a", "b"))
		assert.Equal(t, "g", attr.Key)
		assert.Equal(t, slog.KindGroup, attr.Value.Kind())
	})

	t.Run("errors", func(t *testing.T) {
		err1 := errors.New("e1")
		attr := logger.Errors(nil, err1)
		assert.Equal(t, "errors", attr.Key)
		group := attr.Value.Group()
		assert.Len(t, group, 1)
		assert.Equal(t, "1", group[0].Key)
		assert.Equal(t, err1, group[0].Value.Any())

		assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	})

	t.Run("error", func(t *testing.T) {
		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, err, attr.Value.Any())
		assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	})

	t.Run("domain attrs", func(t *testing.T) {
		assert.Equal(t, int64(42), logger.UserID(42).Value.Int64())
		assert.Equal(t, "google", logger.Provider("google").Value.String())
		assert.Equal(t, "postmark", logger.Transport("postmark").Value.String())
		assert.Equal(t, "1.2.3.4", logger.IP("1.2.3.4").Value.String())
		assert.Equal(t, "magiclink", logger.Component("magiclink").Value.String())
	})

	t.Run("email is masked", func(t *testing.T) {
		assert.Equal(t, "a***@b.com", logger.Email("alice@b.com").Value.String())
		assert.Equal(t, "***", logger.Email("no-at-sign").Value.String())
		assert.Equal(t, "***", logger.Email("@b.com").Value.String())
	})
}
