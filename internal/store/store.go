// Package store implements the generic entity store contract. One Store
// owns one collection: it is the single writer for the collection's local
// cache record, validates and normalizes entities at the boundary, and
// publishes a collection-changed event after every successful mutation.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/remote"
	"github.com/sarisync/sarisync/internal/shared"
)

// Entity is implemented by the pointer form of every stored type.
type Entity interface {
	// EntityID returns the stable id, empty before first persistence.
	EntityID() string
	// Modified returns the last-write-wins timestamp.
	Modified() time.Time
	// Stamp assigns id and the modification timestamp.
	Stamp(id string, at time.Time)
	// Normalize recomputes derived state and canonical form. It runs on
	// write before persistence and on read, so derived fields are never
	// trusted from an external write.
	Normalize()
	// Validate reports domain constraint violations the struct tags
	// cannot express.
	Validate() error
}

// Ptr constrains P to be *T implementing Entity.
type Ptr[T any] interface {
	*T
	Entity
}

// MergeResult reports the outcome of a remote merge.
type MergeResult struct {
	// Applied lists ids where the remote copy won.
	Applied []string
	// KeptLocal lists ids where the local copy was strictly newer and
	// survived; the engine re-pushes them.
	KeptLocal []string
	// LocalOnly lists ids present locally but absent remotely; the engine
	// pushes them too.
	LocalOnly []string
	// DroppedLocal counts local records overwritten by a differing remote
	// copy, the known last-write-wins limitation, surfaced for logging.
	DroppedLocal int
}

// Store owns one entity collection.
type Store[T any, P Ptr[T]] struct {
	collection string
	cache      *localcache.Store
	bus        *bus.Bus
	validate   *validator.Validate
	log        *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	items []T
}

// New constructs the store and loads the collection from the local cache.
// A record that fails to deserialize is recovered as an empty collection
// and announced on the bus; it never crashes the process.
func New[T any, P Ptr[T]](collection string, cache *localcache.Store, b *bus.Bus, log *slog.Logger) (*Store[T, P], error) {
	s := &Store[T, P]{
		collection: collection,
		cache:      cache,
		bus:        b,
		validate:   validator.New(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Collection returns the collection identifier (cache namespace and bus
// topic base).
func (s *Store[T, P]) Collection() string { return s.collection }

func (s *Store[T, P]) load() error {
	payload, ok, err := s.cache.Get(s.collection)
	if err != nil {
		return fmt.Errorf("store %s: load: %w", s.collection, err)
	}
	if !ok {
		return nil
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		s.log.Warn("corrupt cache record, starting empty",
			"collection", s.collection, "err", fmt.Errorf("%w: %v", shared.ErrCorruptCache, err))
		s.items = nil
		s.publish(bus.RemoteTopic(s.collection), bus.OriginRemote, nil, nil)
		return nil
	}
	s.items = items
	return nil
}

// List returns a copy of the current collection with derived fields
// recomputed. It has no side effects.
func (s *Store[T, P]) List() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	for i := range out {
		P(&out[i]).Normalize()
	}
	return out
}

// Get returns the entity with the given id.
func (s *Store[T, P]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if P(&s.items[i]).EntityID() == id {
			item := s.items[i]
			P(&item).Normalize()
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the current collection size.
func (s *Store[T, P]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ReplaceAll atomically replaces the whole collection. Every item is
// validated first; on any violation nothing changes and a ValidationError
// is returned.
func (s *Store[T, P]) ReplaceAll(items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	next := make([]T, len(items))
	copy(next, items)
	for i := range next {
		p := P(&next[i])
		id := p.EntityID()
		if id == "" {
			id = uuid.NewString()
		}
		p.Stamp(id, at)
		p.Normalize()
		if err := s.check(next[i]); err != nil {
			return err
		}
	}
	s.items = next
	if err := s.persist(); err != nil {
		return err
	}
	s.publish(bus.LocalTopic(s.collection), bus.OriginLocal, nil, nil)
	return nil
}

// Upsert inserts or replaces a single entity and returns the stamped copy.
func (s *Store[T, P]) Upsert(item T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	p := P(&item)
	id := p.EntityID()
	if id == "" {
		id = uuid.NewString()
	}
	p.Stamp(id, s.now())
	p.Normalize()
	if err := s.check(item); err != nil {
		return zero, err
	}
	replaced := false
	for i := range s.items {
		if P(&s.items[i]).EntityID() == id {
			s.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		s.items = append(s.items, item)
	}
	if err := s.persist(); err != nil {
		return zero, err
	}
	s.publish(bus.LocalTopic(s.collection), bus.OriginLocal, []string{id}, nil)
	return item, nil
}

// Remove deletes the entity with the given id. Removing an absent id is a
// no-op, not an error.
func (s *Store[T, P]) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.items {
		if P(&s.items[i]).EntityID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	if err := s.persist(); err != nil {
		return err
	}
	s.publish(bus.LocalTopic(s.collection), bus.OriginLocal, nil, []string{id})
	return nil
}

// Documents snapshots entities as remote documents. With no ids it
// snapshots the whole collection.
func (s *Store[T, P]) Documents(ids ...string) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var docs []remote.Document
	for i := range s.items {
		p := P(&s.items[i])
		if len(want) > 0 {
			if _, ok := want[p.EntityID()]; !ok {
				continue
			}
		}
		payload, err := json.Marshal(s.items[i])
		if err != nil {
			return nil, fmt.Errorf("store %s: marshal %s: %w", s.collection, p.EntityID(), err)
		}
		docs = append(docs, remote.Document{
			Collection: s.collection,
			ID:         p.EntityID(),
			Payload:    payload,
			UpdatedAt:  p.Modified(),
		})
	}
	return docs, nil
}

// MergeRemote folds remote documents into the local collection using
// last-write-wins: the later timestamp survives, and on equal or absent
// timestamps the remote copy wins as the authoritative multi-client state.
// Applied changes persist and publish on the remote-origin topic.
func (s *Store[T, P]) MergeRemote(docs []remote.Document) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res MergeResult

	index := make(map[string]int, len(s.items))
	for i := range s.items {
		index[P(&s.items[i]).EntityID()] = i
	}
	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		seen[doc.ID] = struct{}{}
		var incoming T
		if err := json.Unmarshal(doc.Payload, &incoming); err != nil {
			s.log.Warn("skipping undecodable remote document",
				"collection", s.collection, "id", doc.ID, "err", err)
			continue
		}
		p := P(&incoming)
		p.Stamp(doc.ID, doc.UpdatedAt.UTC())
		p.Normalize()

		i, exists := index[doc.ID]
		if !exists {
			s.items = append(s.items, incoming)
			index[doc.ID] = len(s.items) - 1
			res.Applied = append(res.Applied, doc.ID)
			continue
		}
		local := P(&s.items[i])
		if local.Modified().After(doc.UpdatedAt) {
			res.KeptLocal = append(res.KeptLocal, doc.ID)
			continue
		}
		if !local.Modified().Equal(doc.UpdatedAt) {
			res.DroppedLocal++
		}
		s.items[i] = incoming
		res.Applied = append(res.Applied, doc.ID)
	}

	for i := range s.items {
		id := P(&s.items[i]).EntityID()
		if _, ok := seen[id]; !ok {
			res.LocalOnly = append(res.LocalOnly, id)
		}
	}

	if len(res.Applied) == 0 {
		return res, nil
	}
	if err := s.persist(); err != nil {
		return res, err
	}
	s.publish(bus.RemoteTopic(s.collection), bus.OriginRemote, res.Applied, nil)
	return res, nil
}

// Reload re-reads the collection from the local cache. The daemon calls it
// when the cache watch reports another process wrote our record.
func (s *Store[T, P]) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok, err := s.cache.Get(s.collection)
	if err != nil {
		return fmt.Errorf("store %s: reload: %w", s.collection, err)
	}
	var items []T
	if ok {
		if err := json.Unmarshal(payload, &items); err != nil {
			s.log.Warn("corrupt cache record on reload, keeping in-memory state",
				"collection", s.collection, "err", err)
			return nil
		}
	}
	s.items = items
	s.publish(bus.RemoteTopic(s.collection), bus.OriginRemote, nil, nil)
	return nil
}

func (s *Store[T, P]) check(item T) error {
	if err := s.validate.Struct(item); err != nil {
		return shared.NewValidationError(s.collection, "invalid entity", err)
	}
	if err := P(&item).Validate(); err != nil {
		return shared.NewValidationError(s.collection, err.Error(), nil)
	}
	return nil
}

// persist writes the collection synchronously to the local cache. Callers
// hold the mutex.
func (s *Store[T, P]) persist() error {
	payload, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("store %s: marshal: %w", s.collection, err)
	}
	if payload == nil || string(payload) == "null" {
		payload = []byte("[]")
	}
	if err := s.cache.Put(s.collection, payload); err != nil {
		return fmt.Errorf("store %s: persist: %w", s.collection, err)
	}
	return nil
}

func (s *Store[T, P]) publish(topic bus.Topic, origin bus.Origin, ids, removed []string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Topic:      topic,
		Collection: s.collection,
		Origin:     origin,
		IDs:        ids,
		Removed:    removed,
	})
}
