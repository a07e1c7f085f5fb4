package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/internal/gateway/store/storetest"
)

func TestDriver(t *testing.T) {
	storetest.RunDriverTests(t, func(t *testing.T) store.Driver {
		s, err := NewStore(0)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestCodeCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(2)
	require.NoError(t, err)

	require.NoError(t, s.AddCode(ctx, "a"))
	require.NoError(t, s.AddCode(ctx, "b"))
	require.NoError(t, s.AddCode(ctx, "c"))

	ok, _ := s.HasCode(ctx, "a")
	require.False(t, ok)
	ok, _ = s.HasCode(ctx, "c")
	require.True(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(0)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "k", []byte("value")))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'X'

	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "value", string(v))
}
