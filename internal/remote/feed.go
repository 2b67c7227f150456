package remote

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// feedChannel carries collection names whose remote documents changed.
const feedChannel = "sync.changes"

// Feed is the push-style remote change notification. Clients announce the
// collection they pushed; other clients pull it instead of waiting for the
// fallback timer.
type Feed struct {
	client *redis.Client
}

// NewFeed wraps a Redis client.
func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

// Announce publishes that collection changed remotely.
func (f *Feed) Announce(ctx context.Context, collection string) error {
	if err := f.client.Publish(ctx, feedChannel, collection).Err(); err != nil {
		return fmt.Errorf("remote: announce %s: %w", collection, err)
	}
	return nil
}

// Subscribe delivers changed collection names until release is called. The
// returned channel closes after release.
func (f *Feed) Subscribe(ctx context.Context) (<-chan string, func()) {
	pubsub := f.client.Subscribe(ctx, feedChannel)
	out := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// A slow consumer only delays its own pull; the
					// fallback timer covers the dropped signal.
				}
			}
		}
	}()
	var released bool
	release := func() {
		if released {
			return
		}
		released = true
		close(done)
		_ = pubsub.Close()
	}
	return out, release
}
