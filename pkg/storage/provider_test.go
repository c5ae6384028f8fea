package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    storage.Provider
		wantErr bool
	}{
		{"email", storage.ProviderEmail, false},
		{"Google", storage.ProviderGoogle, false},
		{" github ", storage.ProviderGitHub, false},
		{"facebook", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := storage.ParseProvider(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, storage.ErrUnknownProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviders(t *testing.T) {
	t.Parallel()

	for _, p := range storage.Providers() {
		assert.True(t, p.Valid(), p.String())
	}
	assert.False(t, storage.Provider("x").Valid())
}
