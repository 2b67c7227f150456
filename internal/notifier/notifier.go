// Package notifier watches inventory and order state transitions and
// emits notification entities. It only ever reads the watched stores and
// writes through the notifications store.
package notifier

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/inventory"
	"github.com/sarisync/sarisync/internal/notifications"
	"github.com/sarisync/sarisync/internal/orders"
)

// InventoryReader is the read side of the inventory store.
type InventoryReader interface {
	List() []inventory.Item
	StatusOf(inventory.Item) inventory.Status
}

// OrderReader is the read side of the orders store.
type OrderReader interface {
	List() []orders.Order
}

// Sink receives generated notifications.
type Sink interface {
	Upsert(notifications.Notification) (notifications.Notification, error)
}

// Generator evaluates notification rules on collection-changed events.
type Generator struct {
	bus  *bus.Bus
	inv  InventoryReader
	ord  OrderReader
	sink Sink
	log  *slog.Logger

	sub  *bus.Subscription
	done chan struct{}
	wg   sync.WaitGroup

	// seenStatus dedupes stock notifications by (item id, status): a
	// crossing emits once, repeated observations at the same status do
	// not re-emit within this observation window (process lifetime).
	seenStatus map[string]inventory.Status
	seenOrders map[string]orders.PaymentStatus
}

// New constructs a Generator. Call Start to begin rule evaluation.
func New(b *bus.Bus, inv InventoryReader, ord OrderReader, sink Sink, log *slog.Logger) *Generator {
	return &Generator{
		bus:        b,
		inv:        inv,
		ord:        ord,
		sink:       sink,
		log:        log,
		seenStatus: make(map[string]inventory.Status),
		seenOrders: make(map[string]orders.PaymentStatus),
	}
}

// Start primes the observation window from current state and subscribes to
// inventory and order changes of either origin. State present before Start
// never emits.
func (g *Generator) Start() {
	for _, item := range g.inv.List() {
		g.seenStatus[item.ID] = g.inv.StatusOf(item)
	}
	for _, o := range g.ord.List() {
		g.seenOrders[o.ID] = o.PaymentStatus
	}
	g.sub = g.bus.Subscribe(
		bus.TopicInventory, bus.RemoteTopic("inventory"),
		bus.TopicOrders, bus.RemoteTopic("orders"),
	)
	g.done = make(chan struct{})
	g.wg.Add(1)
	go g.run()
}

// Close releases the bus subscription and stops the rule loop.
func (g *Generator) Close() {
	if g.sub == nil {
		return
	}
	close(g.done)
	g.sub.Close()
	g.wg.Wait()
}

func (g *Generator) run() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case evt, ok := <-g.sub.C:
			if !ok {
				return
			}
			switch evt.Collection {
			case "inventory":
				g.scanInventory()
			case "orders":
				g.scanOrders()
			}
		}
	}
}

func (g *Generator) scanInventory() {
	current := make(map[string]struct{})
	for _, item := range g.inv.List() {
		current[item.ID] = struct{}{}
		status := g.inv.StatusOf(item)
		prev, known := g.seenStatus[item.ID]
		g.seenStatus[item.ID] = status
		if known && prev == status {
			continue
		}
		switch status {
		case inventory.StatusOutOfStock:
			g.emit(notifications.Notification{
				Type:     notifications.TypeInventory,
				Title:    "Out of stock",
				Message:  fmt.Sprintf("%s is out of stock", item.Name),
				Priority: notifications.PriorityHigh,
			})
		case inventory.StatusLowStock:
			g.emit(notifications.Notification{
				Type:     notifications.TypeInventory,
				Title:    "Low stock",
				Message:  fmt.Sprintf("%s is running low (%d left)", item.Name, item.Stock),
				Priority: notifications.PriorityMedium,
			})
		}
	}
	for id := range g.seenStatus {
		if _, ok := current[id]; !ok {
			delete(g.seenStatus, id)
		}
	}
}

func (g *Generator) scanOrders() {
	current := make(map[string]struct{})
	for _, o := range g.ord.List() {
		current[o.ID] = struct{}{}
		prev, known := g.seenOrders[o.ID]
		g.seenOrders[o.ID] = o.PaymentStatus
		if !known {
			g.emit(notifications.Notification{
				Type:     notifications.TypeOrder,
				Title:    "New order",
				Message:  fmt.Sprintf("%s placed by %s", o.Number, o.CustomerName),
				Priority: notifications.PriorityLow,
			})
			// An order that arrives already settled still owes a delivery
			// notice, so treat it as a not-paid to paid transition.
			prev = orders.PaymentNotPaid
		}
		if prev != orders.PaymentPaid && o.PaymentStatus == orders.PaymentPaid {
			g.emit(notifications.Notification{
				Type:     notifications.TypeDelivery,
				Title:    "Ready for delivery",
				Message:  fmt.Sprintf("%s settled, ready to hand over", o.Number),
				Priority: notifications.PriorityMedium,
			})
		}
	}
	for id := range g.seenOrders {
		if _, ok := current[id]; !ok {
			delete(g.seenOrders, id)
		}
	}
}

func (g *Generator) emit(n notifications.Notification) {
	if _, err := g.sink.Upsert(n); err != nil {
		g.log.Warn("notification emit failed", "type", n.Type, "err", err)
	}
}
