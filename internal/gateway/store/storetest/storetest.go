// Package storetest holds the behaviour every store.Driver must share, run
// against each driver from its own package tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/pkg/cryptox"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// RunDriverTests exercises a fresh driver from newDriver in each subtest.
func RunDriverTests(t *testing.T, newDriver func(t *testing.T) store.Driver) {
	t.Helper()

	newStore := func(t *testing.T, opts ...store.Option) *store.Credentials {
		opts = append([]store.Option{store.WithLogger(slogx.Discard())}, opts...)
		return store.New(newDriver(t), opts...)
	}

	t.Run("bundle round trip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.Nil(t, s.Load(ctx))

		want := domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"}
		require.NoError(t, s.Save(ctx, want))

		got := s.Load(ctx)
		require.NotNil(t, got)
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("bundle mismatch (-want +got):\n%s", diff)
		}

		// Last write wins.
		next := got.Rotate("a2", "i2", "")
		require.NoError(t, s.Save(ctx, next))
		require.Equal(t, &next, s.Load(ctx))
		require.Equal(t, "r1", s.Load(ctx).RefreshToken)
	})

	t.Run("identity and role", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.Nil(t, s.LoadIdentity(ctx))
		require.Nil(t, s.LoadRole(ctx))

		identity := domain.Identity{SubjectID: "user-1", DisplayName: "Ann", Phone: "13800000000"}
		require.NoError(t, s.SaveIdentity(ctx, identity))
		require.NoError(t, s.SaveRole(ctx, domain.Role{"agent", "admin"}))

		require.Equal(t, &identity, s.LoadIdentity(ctx))
		require.True(t, s.LoadRole(ctx).IsAdmin())
	})

	t.Run("clear removes credentials only", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Save(ctx, domain.TokenBundle{IDToken: "i1"}))
		require.NoError(t, s.SaveIdentity(ctx, domain.Identity{SubjectID: "user-1"}))
		require.NoError(t, s.SaveRole(ctx, domain.Role{"agent"}))
		require.NoError(t, s.MarkCodeProcessed(ctx, "code-1"))

		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx), "clearing twice is harmless")

		require.Nil(t, s.Load(ctx))
		require.Nil(t, s.LoadIdentity(ctx))
		require.Nil(t, s.LoadRole(ctx))
		require.True(t, s.IsCodeProcessed(ctx, "code-1"))
	})

	t.Run("processed codes", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.False(t, s.IsCodeProcessed(ctx, "code-1"))
		require.NoError(t, s.MarkCodeProcessed(ctx, "code-1"))
		require.NoError(t, s.MarkCodeProcessed(ctx, "code-1"))
		require.True(t, s.IsCodeProcessed(ctx, "code-1"))
		require.False(t, s.IsCodeProcessed(ctx, "code-2"))
		require.False(t, s.IsCodeProcessed(ctx, ""))

		require.NoError(t, s.ClearProcessedCodes(ctx))
		require.False(t, s.IsCodeProcessed(ctx, "code-1"))
	})

	t.Run("codes are stored as fingerprints", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)
		s := store.New(d, store.WithLogger(slogx.Discard()))

		require.NoError(t, s.MarkCodeProcessed(ctx, "raw-code"))

		ok, err := d.HasCode(ctx, "raw-code")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = d.HasCode(ctx, cryptox.Fingerprint("raw-code"))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("malformed value reads as absent", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)
		s := store.New(d, store.WithLogger(slogx.Discard()))

		require.NoError(t, d.Put(ctx, store.KeyTokenBundle, []byte("{not json")))
		require.NoError(t, d.Put(ctx, store.KeyRole, []byte(`{"role":true}`)))

		require.Nil(t, s.Load(ctx))
		require.Nil(t, s.LoadRole(ctx))
	})

	t.Run("sealed values", func(t *testing.T) {
		ctx := context.Background()
		d := newDriver(t)

		sealer, err := cryptox.NewSealer([]byte("test master key"))
		require.NoError(t, err)
		s := store.New(d, store.WithLogger(slogx.Discard()), store.WithSealer(sealer))

		require.NoError(t, s.Save(ctx, domain.TokenBundle{IDToken: "secret-id-token"}))
		require.Equal(t, "secret-id-token", s.Load(ctx).IDToken)

		raw, err := d.Get(ctx, store.KeyTokenBundle)
		require.NoError(t, err)
		require.NotContains(t, string(raw), "secret-id-token")

		// A store without the key cannot read it and treats it as absent.
		plain := store.New(d, store.WithLogger(slogx.Discard()))
		require.Nil(t, plain.Load(ctx))
	})

	t.Run("concurrent saves", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Save(ctx, domain.TokenBundle{IDToken: string(rune('a' + i))})
			}()
		}
		wg.Wait()

		require.NotNil(t, s.Load(ctx))
	})
}
