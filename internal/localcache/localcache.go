// Package localcache provides the durable local cache: one namespaced
// record per collection, persisted in an SQLite file scoped to the
// profile directory. A record is an opaque serialized payload; the owning
// entity store decides its shape.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Namespaces for the persisted records. An absent record means an empty
// collection, never an error.
const (
	NSInventory      = "inventory"
	NSOrders         = "orders"
	NSPreparedOrders = "prepared-orders"
	NSNotifications  = "notifications"
	NSExpenses       = "expenses"
	// NSSidebar holds presentation-owned UI state; the data layer only
	// persists it.
	NSSidebar = "sidebar"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	ns         TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	rev        INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMP NOT NULL
);`

// Store is the durable local cache backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("localcache: open: %w", err)
	}
	// One connection serializes writers within this process.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localcache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the payload stored under ns. The second return is false when
// no record exists.
func (s *Store) Get(ns string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM records WHERE ns = ?`, ns).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localcache: get %s: %w", ns, err)
	}
	return payload, true, nil
}

// Put stores payload under ns, bumping the record revision.
func (s *Store) Put(ns string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO records (ns, payload, rev, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(ns) DO UPDATE SET
			payload = excluded.payload,
			rev = records.rev + 1,
			updated_at = excluded.updated_at`,
		ns, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("localcache: put %s: %w", ns, err)
	}
	return nil
}

// Delete removes the record under ns. Deleting an absent record is a no-op.
func (s *Store) Delete(ns string) error {
	if _, err := s.db.Exec(`DELETE FROM records WHERE ns = ?`, ns); err != nil {
		return fmt.Errorf("localcache: delete %s: %w", ns, err)
	}
	return nil
}

// Rev returns the current revision of ns, zero when absent.
func (s *Store) Rev(ns string) (int64, error) {
	var rev int64
	err := s.db.QueryRow(`SELECT rev FROM records WHERE ns = ?`, ns).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("localcache: rev %s: %w", ns, err)
	}
	return rev, nil
}

// Watch polls the revision of ns and delivers the new revision whenever it
// changes. This is the bounded fallback for detecting writers outside this
// process (another profile tab); in-process changes travel over the event
// bus instead. The channel closes when ctx is done.
func (s *Store) Watch(ctx context.Context, ns string, interval time.Duration) <-chan int64 {
	out := make(chan int64, 1)
	go func() {
		defer close(out)
		last, _ := s.Rev(ns)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rev, err := s.Rev(ns)
				if err != nil || rev == last {
					continue
				}
				last = rev
				select {
				case out <- rev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
