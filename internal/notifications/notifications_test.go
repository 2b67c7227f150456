package notifications

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
)

func newTestStore(t *testing.T, b *bus.Bus) *Store {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	s, err := NewStore(cache, b, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestNormalizeDefaults(t *testing.T) {
	s := newTestStore(t, bus.New())

	n, err := s.Upsert(Notification{Title: "  Shift reminder  "})
	require.NoError(t, err)
	require.Equal(t, "Shift reminder", n.Title)
	require.Equal(t, TypeSystem, n.Type)
	require.Equal(t, PriorityLow, n.Priority)
	require.False(t, n.At.IsZero())
	require.False(t, n.Read)
}

func TestUnreadCount(t *testing.T) {
	s := newTestStore(t, bus.New())
	first, err := s.Upsert(Notification{Title: "one"})
	require.NoError(t, err)
	_, err = s.Upsert(Notification{Title: "two"})
	require.NoError(t, err)
	require.Equal(t, 2, s.Unread())

	require.NoError(t, s.MarkRead(first.ID))
	require.Equal(t, 1, s.Unread())
}

func TestMarkReadUnknownIsNoOp(t *testing.T) {
	s := newTestStore(t, bus.New())
	require.NoError(t, s.MarkRead("missing"))

	n, err := s.Upsert(Notification{Title: "once"})
	require.NoError(t, err)
	require.NoError(t, s.MarkRead(n.ID))
	first, _ := s.Get(n.ID)

	// Re-marking does not rewrite the entity.
	require.NoError(t, s.MarkRead(n.ID))
	second, _ := s.Get(n.ID)
	require.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	b := bus.New()
	s := newTestStore(t, b)
	for _, title := range []string{"a", "b", "c"} {
		_, err := s.Upsert(Notification{Title: title})
		require.NoError(t, err)
	}

	sub := b.Subscribe(bus.LocalTopic(localcache.NSNotifications))
	defer sub.Close()

	require.NoError(t, s.MarkAllRead())
	require.Zero(t, s.Unread())
	require.Len(t, sub.C, 1)
	<-sub.C

	// Nothing unread left, so nothing is rewritten or republished.
	require.NoError(t, s.MarkAllRead())
	require.Empty(t, sub.C)
}
