// Package notifications owns the notification collection. Entries are
// append-only: after creation only the read flag changes, until deletion.
package notifications

import (
	"log/slog"
	"strings"
	"time"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/store"
)

// Type classifies a notification.
type Type string

const (
	TypeOrder     Type = "order"
	TypeInventory Type = "inventory"
	TypeDelivery  Type = "delivery"
	TypeSystem    Type = "system"
)

// Priority orders notifications for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is one panel entry.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type" validate:"oneof=order inventory delivery system"`
	Title     string    `json:"title" validate:"required"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
	Priority  Priority  `json:"priority" validate:"oneof=low medium high"`
	Read      bool      `json:"read"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Notification) EntityID() string    { return n.ID }
func (n *Notification) Modified() time.Time { return n.UpdatedAt }

func (n *Notification) Stamp(id string, at time.Time) {
	n.ID = id
	n.UpdatedAt = at.UTC()
}

func (n *Notification) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	if n.Priority == "" {
		n.Priority = PriorityLow
	}
	if n.Type == "" {
		n.Type = TypeSystem
	}
	if n.At.IsZero() {
		n.At = n.UpdatedAt
	}
	n.At = n.At.UTC()
}

func (n *Notification) Validate() error { return nil }

// Store owns the notifications collection.
type Store struct {
	*store.Store[Notification, *Notification]
}

// NewStore builds the notifications store.
func NewStore(cache *localcache.Store, b *bus.Bus, log *slog.Logger) (*Store, error) {
	inner, err := store.New[Notification, *Notification](localcache.NSNotifications, cache, b, log)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// Unread counts unread notifications.
func (s *Store) Unread() int {
	count := 0
	for _, n := range s.List() {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead flips one notification to read. Unknown ids are a no-op.
func (s *Store) MarkRead(id string) error {
	n, ok := s.Get(id)
	if !ok || n.Read {
		return nil
	}
	n.Read = true
	_, err := s.Upsert(n)
	return err
}

// MarkAllRead flips every unread notification. It is idempotent: a second
// call changes nothing.
func (s *Store) MarkAllRead() error {
	items := s.List()
	changed := false
	for i := range items {
		if !items[i].Read {
			items[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.ReplaceAll(items)
}
