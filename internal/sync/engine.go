// Package sync reconciles entity stores with the remote document store.
// The engine moves bytes and resolves conflicts by last-write-wins; entity
// interpretation stays with the owning store. Local mutations never block
// on it: pushes are asynchronous, failures degrade to Offline and retry on
// the next trigger or the fallback timer.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarisync/sarisync/internal/auth"
	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/remote"
	"github.com/sarisync/sarisync/internal/store"
)

// State is the per-collection engine state.
type State string

const (
	StateIdle    State = "idle"
	StatePushing State = "pushing"
	StatePulling State = "pulling"
	// StateOffline is entered on any remote failure; the local cache stays
	// the source of truth until the next successful contact.
	StateOffline State = "offline"
)

// Remote is the slice of the remote client the engine needs.
type Remote interface {
	PutMany(ctx context.Context, docs []remote.Document) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]remote.Document, error)
	SeedCategories(ctx context.Context, names []string) error
}

// Feed is the push-style remote change notification channel.
type Feed interface {
	Announce(ctx context.Context, collection string) error
	Subscribe(ctx context.Context) (<-chan string, func())
}

// Syncable is implemented by every entity store the engine reconciles.
type Syncable interface {
	Collection() string
	Documents(ids ...string) ([]remote.Document, error)
	MergeRemote(docs []remote.Document) (store.MergeResult, error)
}

// SessionSource gates remote operations on a signed-in session.
type SessionSource interface {
	Current() *auth.Session
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Pushed       int64
	Pulled       int64
	DroppedLocal int64
	Failures     int64
}

// Config collects engine dependencies.
type Config struct {
	Remote       Remote
	Feed         Feed
	Session      SessionSource
	Bus          *bus.Bus
	Logger       *slog.Logger
	Stores       []Syncable
	Categories   []string
	PullInterval time.Duration
}

type pending struct {
	full   bool
	ids    map[string]struct{}
	remove map[string]struct{}
}

// Engine reconciles registered stores with the remote store.
type Engine struct {
	remote  Remote
	feed    Feed
	session SessionSource
	bus     *bus.Bus
	log     *slog.Logger

	stores       map[string]Syncable
	categories   []string
	pullInterval time.Duration

	mu      sync.Mutex
	states  map[string]State
	pending map[string]*pending
	seeded  bool

	sub         *bus.Subscription
	feedRelease func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	pushed   atomic.Int64
	pulled   atomic.Int64
	dropped  atomic.Int64
	failures atomic.Int64
}

// New constructs the engine.
func New(cfg Config) *Engine {
	e := &Engine{
		remote:       cfg.Remote,
		feed:         cfg.Feed,
		session:      cfg.Session,
		bus:          cfg.Bus,
		log:          cfg.Logger,
		stores:       make(map[string]Syncable, len(cfg.Stores)),
		categories:   cfg.Categories,
		pullInterval: cfg.PullInterval,
		states:       make(map[string]State),
		pending:      make(map[string]*pending),
	}
	if e.pullInterval <= 0 {
		e.pullInterval = 30 * time.Second
	}
	for _, s := range cfg.Stores {
		e.stores[s.Collection()] = s
		e.states[s.Collection()] = StateIdle
		e.pending[s.Collection()] = &pending{
			ids:    make(map[string]struct{}),
			remove: make(map[string]struct{}),
		}
	}
	return e
}

// Start seeds reference data, performs the initial pull and runs the
// reconciliation loop until ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	topics := make([]bus.Topic, 0, len(e.stores))
	for collection := range e.stores {
		topics = append(topics, bus.LocalTopic(collection))
	}
	e.sub = e.bus.Subscribe(topics...)

	var feedCh <-chan string
	if e.feed != nil {
		feedCh, e.feedRelease = e.feed.Subscribe(ctx)
	}

	e.wg.Add(1)
	go e.run(ctx, feedCh)
}

// Close releases all subscriptions; no further remote writes occur after
// it returns.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.sub != nil {
		e.sub.Close()
	}
	if e.feedRelease != nil {
		e.feedRelease()
	}
	e.wg.Wait()
}

// State reports the engine state for one collection.
func (e *Engine) State(collection string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[collection]
}

// Stats snapshots the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Pushed:       e.pushed.Load(),
		Pulled:       e.pulled.Load(),
		DroppedLocal: e.dropped.Load(),
		Failures:     e.failures.Load(),
	}
}

func (e *Engine) run(ctx context.Context, feedCh <-chan string) {
	defer e.wg.Done()

	if e.signedIn() {
		e.ensureSeeded(ctx)
		e.pullAll(ctx)
	}

	ticker := time.NewTicker(e.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-e.sub.C:
			if !ok {
				return
			}
			e.enqueue(evt)
			e.flushPending(ctx)
		case collection, ok := <-feedCh:
			if !ok {
				feedCh = nil
				continue
			}
			e.pull(ctx, collection)
			// A remote contact is also a retry opportunity.
			e.flushPending(ctx)
		case <-ticker.C:
			e.flushPending(ctx)
			e.pullAll(ctx)
		}
	}
}

func (e *Engine) signedIn() bool {
	if e.session == nil {
		return true
	}
	sess := e.session.Current()
	if sess == nil {
		return false
	}
	return sess.ExpiresAt.IsZero() || sess.ExpiresAt.After(time.Now())
}

// ensureSeeded writes the fixed reference data exactly once, tolerating an
// already-seeded remote as success.
func (e *Engine) ensureSeeded(ctx context.Context) bool {
	e.mu.Lock()
	seeded := e.seeded
	e.mu.Unlock()
	if seeded || len(e.categories) == 0 {
		return true
	}
	if err := e.remote.SeedCategories(ctx, e.categories); err != nil {
		e.failures.Add(1)
		e.log.Warn("category seed failed, will retry", "err", err)
		return false
	}
	e.mu.Lock()
	e.seeded = true
	e.mu.Unlock()
	return true
}

func (e *Engine) enqueue(evt bus.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[evt.Collection]
	if !ok {
		return
	}
	if len(evt.IDs) == 0 && len(evt.Removed) == 0 {
		p.full = true
	}
	for _, id := range evt.IDs {
		p.ids[id] = struct{}{}
		// A re-created record supersedes any queued removal, otherwise the
		// recovery flush would put the live document and then delete it.
		delete(p.remove, id)
	}
	for _, id := range evt.Removed {
		delete(p.ids, id)
		p.remove[id] = struct{}{}
	}
}

func (e *Engine) flushPending(ctx context.Context) {
	if !e.signedIn() {
		return
	}
	if !e.ensureSeeded(ctx) {
		return
	}
	for collection := range e.stores {
		e.push(ctx, collection)
	}
}

func (e *Engine) push(ctx context.Context, collection string) {
	e.mu.Lock()
	p := e.pending[collection]
	if p == nil || (!p.full && len(p.ids) == 0 && len(p.remove) == 0) {
		e.mu.Unlock()
		return
	}
	full := p.full
	ids := make([]string, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	removals := make([]string, 0, len(p.remove))
	for id := range p.remove {
		removals = append(removals, id)
	}
	e.states[collection] = StatePushing
	e.mu.Unlock()

	s := e.stores[collection]
	var docs []remote.Document
	var err error
	if full {
		docs, err = s.Documents()
	} else if len(ids) > 0 {
		docs, err = s.Documents(ids...)
	}
	if err == nil && len(docs) > 0 {
		err = e.remote.PutMany(ctx, docs)
	}
	if err == nil {
		for _, id := range removals {
			if err = e.remote.Delete(ctx, collection, id); err != nil {
				break
			}
		}
	}
	if err != nil {
		// Swallowed: the mutation already succeeded locally, the pending
		// set survives for the next trigger.
		e.failures.Add(1)
		e.setState(collection, StateOffline)
		e.log.Warn("push failed, staying offline", "collection", collection, "err", err)
		return
	}

	e.mu.Lock()
	p.full = false
	p.ids = make(map[string]struct{})
	p.remove = make(map[string]struct{})
	e.states[collection] = StateIdle
	e.mu.Unlock()
	e.pushed.Add(int64(len(docs) + len(removals)))

	if e.feed != nil {
		if err := e.feed.Announce(ctx, collection); err != nil {
			e.log.Warn("change announce failed", "collection", collection, "err", err)
		}
	}
}

func (e *Engine) pullAll(ctx context.Context) {
	if !e.signedIn() {
		return
	}
	for collection := range e.stores {
		e.pull(ctx, collection)
	}
}

func (e *Engine) pull(ctx context.Context, collection string) {
	s, ok := e.stores[collection]
	if !ok || !e.signedIn() {
		return
	}
	e.setState(collection, StatePulling)
	docs, err := e.remote.List(ctx, collection)
	if err != nil {
		e.failures.Add(1)
		e.setState(collection, StateOffline)
		e.log.Warn("pull failed, staying offline", "collection", collection, "err", err)
		return
	}
	// Documents with a removal still pending must not resurrect locally.
	e.mu.Lock()
	if p := e.pending[collection]; p != nil && len(p.remove) > 0 {
		kept := docs[:0]
		for _, doc := range docs {
			if _, gone := p.remove[doc.ID]; !gone {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	e.mu.Unlock()
	res, err := s.MergeRemote(docs)
	if err != nil {
		e.failures.Add(1)
		e.setState(collection, StateOffline)
		e.log.Warn("merge failed", "collection", collection, "err", err)
		return
	}
	e.setState(collection, StateIdle)
	e.pulled.Add(int64(len(res.Applied)))
	if res.DroppedLocal > 0 {
		// The known last-write-wins limitation, made observable.
		e.dropped.Add(int64(res.DroppedLocal))
		e.log.Warn("remote copies overwrote newer-looking local edits",
			"collection", collection, "count", res.DroppedLocal)
	}

	// Records the remote has never seen, or where our copy is newer, go
	// back out on the next flush.
	if len(res.KeptLocal) > 0 || len(res.LocalOnly) > 0 {
		e.mu.Lock()
		p := e.pending[collection]
		for _, id := range res.KeptLocal {
			p.ids[id] = struct{}{}
		}
		for _, id := range res.LocalOnly {
			p.ids[id] = struct{}{}
		}
		e.mu.Unlock()
	}
}

func (e *Engine) setState(collection string, st State) {
	e.mu.Lock()
	e.states[collection] = st
	e.mu.Unlock()
}
