package poke

import (
	"context"
	"sync"
)

// Channel naming shared by publishers and stream subscribers. A poke carries
// no payload; it only tells the subscriber to pull again.

// ListChannel returns the poke channel for one list.
func ListChannel(listID string) string {
	return "list/" + listID
}

// UserChannel returns the poke channel for one user.
func UserChannel(userID string) string {
	return "user/" + userID
}

// Notifier is a process-wide, best-effort fan-out of change notifications.
// Publishing never blocks: each subscriber owns a one-slot signal channel,
// so back-to-back pokes coalesce and a slow subscriber cannot delay the
// publisher or its peers.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
}

type subscriber struct {
	id     int64
	signal chan struct{}
}

// NewNotifier constructs an empty notifier. One instance is shared by the
// whole process and lives for the lifetime of the service.
func NewNotifier() *Notifier {
	return &Notifier{
		subscribers: make(map[string]map[int64]*subscriber),
	}
}

// Subscribe registers interest in a channel for the lifetime of ctx. The
// returned cleanup func is idempotent and safe to call from teardown paths;
// ctx cancellation invokes it as well.
func (n *Notifier) Subscribe(ctx context.Context, channel string) (<-chan struct{}, func()) {
	if channel == "" {
		closed := make(chan struct{})
		close(closed)
		return closed, func() {}
	}

	sub := &subscriber{
		id:     n.nextSequence(),
		signal: make(chan struct{}, 1),
	}
	n.register(channel, sub)

	cleanup := func() {
		n.unregister(channel, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.signal, cleanup
}

// Publish fires a notification to every current subscriber on the channel.
// Fire and forget: no queuing, no delivery guarantee, no-op when nobody
// listens.
func (n *Notifier) Publish(channel string) {
	n.mu.RLock()
	subs := n.subscribers[channel]
	if len(subs) == 0 {
		n.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	n.mu.RUnlock()

	for _, sub := range copies {
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

func (n *Notifier) nextSequence() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	return n.nextID
}

func (n *Notifier) register(channel string, sub *subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subscribers[channel]; !ok {
		n.subscribers[channel] = make(map[int64]*subscriber)
	}
	n.subscribers[channel][sub.id] = sub
}

func (n *Notifier) unregister(channel string, subscriberID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subscribers[channel]
	if subs == nil {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(n.subscribers, channel)
	}
}
