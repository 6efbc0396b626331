package events

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

// StoreChanged announces that a partition's content or structure changed.
// Records may be empty: a share-level change manifests with zero ledger
// records, and observers must treat that as "re-derive summary state", not
// "nothing happened".
type StoreChanged struct {
	Partition store.Partition
	Records   []ledger.ChangeRecord
	At        time.Time
}

// Dispatcher fans StoreChanged events out to registered observers. It
// replaces broadcast-style notification with explicit registration and
// typed payloads, decoupling the replay engine from presentation concerns.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[store.Partition]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan StoreChanged
}

// allPartitions subscribes across both partitions.
const allPartitions store.Partition = ""

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[store.Partition]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers an observer for one partition, or for both when
// partition is empty. The stream is unregistered when ctx is cancelled or
// the returned cancel function runs.
func (d *Dispatcher) Subscribe(ctx context.Context, partition store.Partition) (<-chan StoreChanged, func()) {
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan StoreChanged, d.bufferSize),
	}
	d.register(partition, sub)
	cleanup := func() {
		d.unregister(partition, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers the event to partition-scoped and catch-all observers.
// Delivery is non-blocking; a slow observer drops events rather than
// stalling replay.
func (d *Dispatcher) Publish(event StoreChanged) {
	if event.Partition == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*subscriber, 0)
	for _, sub := range d.subscribers[event.Partition] {
		copies = append(copies, sub)
	}
	for _, sub := range d.subscribers[allPartitions] {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(partition store.Partition, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[partition]; !ok {
		d.subscribers[partition] = make(map[int64]*subscriber)
	}
	d.subscribers[partition][sub.id] = sub
}

func (d *Dispatcher) unregister(partition store.Partition, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[partition]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, partition)
		}
	}
	d.mu.Unlock()
}
