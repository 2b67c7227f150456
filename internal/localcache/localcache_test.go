package localcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetAbsentIsEmptyNotError(t *testing.T) {
	s := openTestStore(t)

	payload, ok, err := s.Get(NSInventory)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, payload)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(NSOrders, []byte(`[{"id":"a"}]`)))
	payload, ok, err := s.Get(NSOrders)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"a"}]`, string(payload))

	require.NoError(t, s.Put(NSOrders, []byte(`[]`)))
	payload, ok, err = s.Get(NSOrders)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(payload))
}

func TestRevBumpsPerWrite(t *testing.T) {
	s := openTestStore(t)

	rev, err := s.Rev(NSExpenses)
	require.NoError(t, err)
	require.Zero(t, rev)

	require.NoError(t, s.Put(NSExpenses, []byte(`[]`)))
	rev, err = s.Rev(NSExpenses)
	require.NoError(t, err)
	require.EqualValues(t, 1, rev)

	require.NoError(t, s.Put(NSExpenses, []byte(`[1]`)))
	rev, err = s.Rev(NSExpenses)
	require.NoError(t, err)
	require.EqualValues(t, 2, rev)
}

func TestNamespacesAreIsolated(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(NSInventory, []byte(`["inv"]`)))
	require.NoError(t, s.Put(NSNotifications, []byte(`["notif"]`)))

	payload, ok, err := s.Get(NSInventory)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `["inv"]`, string(payload))

	_, ok, err = s.Get(NSPreparedOrders)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Delete(NSSidebar))

	require.NoError(t, s.Put(NSSidebar, []byte(`{"collapsed":true}`)))
	require.NoError(t, s.Delete(NSSidebar))
	_, ok, err := s.Get(NSSidebar)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWatchReportsRevisionChanges(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := s.Watch(ctx, NSOrders, 10*time.Millisecond)
	require.NoError(t, s.Put(NSOrders, []byte(`[]`)))

	select {
	case rev := <-ch:
		require.EqualValues(t, 1, rev)
	case <-ctx.Done():
		t.Fatal("watch never reported the write")
	}

	cancel()
	for range ch {
	}
}
