// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/clinote/internal/store"
)

// Run exercises s against the Store contract.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "draft:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.KeyAdmissionDraft, `{"nombre":"Juan Pérez"}`))
		v, ok, err := s.Get(ctx, store.KeyAdmissionDraft)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"nombre":"Juan Pérez"}`, v)
	})

	t.Run("overwrite in place", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.KeyEvolutionDraft, `{"cama":"12"}`))
		require.NoError(t, s.Set(ctx, store.KeyEvolutionDraft, `{"cama":"14"}`))
		v, _, err := s.Get(ctx, store.KeyEvolutionDraft)
		require.NoError(t, err)
		assert.Equal(t, `{"cama":"14"}`, v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.KeyHistory, `[]`))
		require.NoError(t, s.Delete(ctx, store.KeyHistory))
		_, ok, err := s.Get(ctx, store.KeyHistory)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Delete(ctx, store.KeyHistory), "deleting a missing key is a no-op")
	})
}
