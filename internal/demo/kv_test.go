package demo_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shiftreport/internal/demo"
)

func openKV(t *testing.T) *demo.KV {
	t.Helper()
	kv, err := demo.Open("file:" + filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestPutGetRoundTrip(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()

	var missing []string
	ok, err := kv.Get(ctx, demo.KeyReports, &missing)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Atomic(ctx, func(tx demo.Txn) error {
		return tx.Put(demo.KeyReports, []string{"a", "b"})
	}))
	require.NoError(t, kv.Atomic(ctx, func(tx demo.Txn) error {
		var cur []string
		if _, err := tx.Get(demo.KeyReports, &cur); err != nil {
			return err
		}
		return tx.Put(demo.KeyReports, append(cur, "c"))
	}))

	var got []string
	ok, err = kv.Get(ctx, demo.KeyReports, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestAtomicRollsBackAllKeys(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := kv.Atomic(ctx, func(tx demo.Txn) error {
		if err := tx.Put(demo.KeyReports, []string{"a"}); err != nil {
			return err
		}
		if err := tx.Put(demo.KeyActivity, []string{"submit"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	for _, key := range []string{demo.KeyReports, demo.KeyActivity} {
		var v []string
		ok, err := kv.Get(ctx, key, &v)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
}

func TestDeleteClearsKey(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()
	require.NoError(t, kv.Atomic(ctx, func(tx demo.Txn) error { return tx.Put(demo.KeySession, map[string]string{"user_id": "u1"}) }))
	require.NoError(t, kv.Atomic(ctx, func(tx demo.Txn) error { return tx.Delete(demo.KeySession) }))
	var s map[string]string
	ok, err := kv.Get(ctx, demo.KeySession, &s)
	require.NoError(t, err)
	require.False(t, ok)
}
