package store

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/remote"
	"github.com/sarisync/sarisync/internal/shared"
)

var errForbiddenBody = errors.New("forbidden body")

type testNote struct {
	ID        string    `json:"id"`
	Body      string    `json:"body" validate:"required"`
	Pinned    bool      `json:"pinned"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *testNote) EntityID() string    { return n.ID }
func (n *testNote) Modified() time.Time { return n.UpdatedAt }

func (n *testNote) Stamp(id string, at time.Time) {
	n.ID = id
	n.UpdatedAt = at.UTC()
}

func (n *testNote) Normalize() {
	n.Body = strings.TrimSpace(n.Body)
}

func (n *testNote) Validate() error {
	if n.Body == "forbidden" {
		return errForbiddenBody
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openCache(t *testing.T) *localcache.Store {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func newNoteStore(t *testing.T, cache *localcache.Store, b *bus.Bus) *Store[testNote, *testNote] {
	t.Helper()
	s, err := New[testNote, *testNote]("notes", cache, b, testLogger())
	require.NoError(t, err)
	return s
}

func TestUpsertStampsAndPersists(t *testing.T) {
	cache := openCache(t)
	b := bus.New()
	s := newNoteStore(t, cache, b)
	sub := b.Subscribe(bus.LocalTopic("notes"))
	defer sub.Close()

	created, err := s.Upsert(testNote{Body: "  restock shelf two  "})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.UpdatedAt.IsZero())
	require.Equal(t, "restock shelf two", created.Body)

	evt := <-sub.C
	require.Equal(t, bus.OriginLocal, evt.Origin)
	require.Equal(t, []string{created.ID}, evt.IDs)

	// A fresh store over the same cache sees the write.
	reopened := newNoteStore(t, cache, bus.New())
	got, ok := reopened.Get(created.ID)
	require.True(t, ok)
	require.Equal(t, created.Body, got.Body)
}

func TestUpsertRejectsInvalidEntity(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())

	_, err := s.Upsert(testNote{})
	require.Error(t, err)
	require.True(t, shared.IsValidation(err))
	require.Zero(t, s.Len())

	_, err = s.Upsert(testNote{Body: "forbidden"})
	require.True(t, shared.IsValidation(err))
	require.ErrorContains(t, err, errForbiddenBody.Error())
	require.Zero(t, s.Len())
}

func TestReplaceAllIsAtomic(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())
	_, err := s.Upsert(testNote{Body: "keep me"})
	require.NoError(t, err)

	err = s.ReplaceAll([]testNote{{Body: "fine"}, {}})
	require.True(t, shared.IsValidation(err))

	// The invalid batch changed nothing.
	items := s.List()
	require.Len(t, items, 1)
	require.Equal(t, "keep me", items[0].Body)

	require.NoError(t, s.ReplaceAll([]testNote{{Body: "a"}, {Body: "b"}}))
	require.Equal(t, 2, s.Len())
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	b := bus.New()
	s := newNoteStore(t, openCache(t), b)
	created, err := s.Upsert(testNote{Body: "temp"})
	require.NoError(t, err)

	sub := b.Subscribe(bus.LocalTopic("notes"))
	defer sub.Close()

	require.NoError(t, s.Remove("nope"))
	require.Empty(t, sub.C)

	require.NoError(t, s.Remove(created.ID))
	require.Zero(t, s.Len())
	evt := <-sub.C
	require.Equal(t, []string{created.ID}, evt.Removed)
}

func TestCorruptCacheRecoversEmpty(t *testing.T) {
	cache := openCache(t)
	require.NoError(t, cache.Put("notes", []byte(`{"not an": "array"`)))

	b := bus.New()
	sub := b.Subscribe(bus.RemoteTopic("notes"))
	defer sub.Close()

	s := newNoteStore(t, cache, b)
	require.Zero(t, s.Len())
	evt := <-sub.C
	require.Equal(t, bus.OriginRemote, evt.Origin)

	// The store stays usable after recovery.
	_, err := s.Upsert(testNote{Body: "fresh start"})
	require.NoError(t, err)
}

func TestListReturnsCopies(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())
	created, err := s.Upsert(testNote{Body: "original"})
	require.NoError(t, err)

	items := s.List()
	items[0].Body = "mutated"

	got, ok := s.Get(created.ID)
	require.True(t, ok)
	require.Equal(t, "original", got.Body)
}

func TestDocumentsSnapshotsSelection(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())
	a, err := s.Upsert(testNote{Body: "a"})
	require.NoError(t, err)
	_, err = s.Upsert(testNote{Body: "b"})
	require.NoError(t, err)

	all, err := s.Documents()
	require.NoError(t, err)
	require.Len(t, all, 2)

	one, err := s.Documents(a.ID)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "notes", one[0].Collection)
	require.Equal(t, a.ID, one[0].ID)
	require.True(t, one[0].UpdatedAt.Equal(a.UpdatedAt))
}

func noteDoc(t *testing.T, id, body string, at time.Time) remote.Document {
	t.Helper()
	return remote.Document{
		Collection: "notes",
		ID:         id,
		Payload:    []byte(`{"id":"` + id + `","body":"` + body + `"}`),
		UpdatedAt:  at,
	}
}

func TestMergeRemoteLastWriteWins(t *testing.T) {
	b := bus.New()
	s := newNoteStore(t, openCache(t), b)
	local, err := s.Upsert(testNote{Body: "local"})
	require.NoError(t, err)

	sub := b.Subscribe(bus.RemoteTopic("notes"))
	defer sub.Close()

	// Remote strictly newer: remote wins and the drop is observable.
	res, err := s.MergeRemote([]remote.Document{
		noteDoc(t, local.ID, "remote newer", local.UpdatedAt.Add(time.Second)),
	})
	require.NoError(t, err)
	require.Equal(t, []string{local.ID}, res.Applied)
	require.Equal(t, 1, res.DroppedLocal)
	got, _ := s.Get(local.ID)
	require.Equal(t, "remote newer", got.Body)
	evt := <-sub.C
	require.Equal(t, bus.OriginRemote, evt.Origin)

	// Equal timestamps: remote wins as the authoritative copy, no drop.
	got, _ = s.Get(local.ID)
	res, err = s.MergeRemote([]remote.Document{
		noteDoc(t, local.ID, "remote equal", got.UpdatedAt),
	})
	require.NoError(t, err)
	require.Equal(t, []string{local.ID}, res.Applied)
	require.Zero(t, res.DroppedLocal)
	got, _ = s.Get(local.ID)
	require.Equal(t, "remote equal", got.Body)

	// Local strictly newer: the local copy survives for a re-push.
	got, _ = s.Get(local.ID)
	res, err = s.MergeRemote([]remote.Document{
		noteDoc(t, local.ID, "remote stale", got.UpdatedAt.Add(-time.Minute)),
	})
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Equal(t, []string{local.ID}, res.KeptLocal)
	got, _ = s.Get(local.ID)
	require.Equal(t, "remote equal", got.Body)
}

func TestMergeRemoteReportsLocalOnly(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())
	mine, err := s.Upsert(testNote{Body: "never pushed"})
	require.NoError(t, err)

	res, err := s.MergeRemote([]remote.Document{
		noteDoc(t, "other", "from another client", time.Now().UTC()),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"other"}, res.Applied)
	require.Equal(t, []string{mine.ID}, res.LocalOnly)
	require.Equal(t, 2, s.Len())
}

func TestMergeRemoteSkipsUndecodableDocuments(t *testing.T) {
	s := newNoteStore(t, openCache(t), bus.New())

	res, err := s.MergeRemote([]remote.Document{
		{Collection: "notes", ID: "bad", Payload: []byte(`{`), UpdatedAt: time.Now()},
		noteDoc(t, "good", "ok", time.Now().UTC()),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, res.Applied)
	require.Equal(t, 1, s.Len())
}
