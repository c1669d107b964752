package gradebook

import (
	"context"
	"log"
	"strconv"
	"sync"
)

// RecordSyncer posts one grade record to an external grade book.
type RecordSyncer interface {
	SyncRecord(ctx context.Context, key string) error
}

// AsyncPublisher queues changed grade records and hands them to a
// RecordSyncer from a background worker. Records that do not fit the queue
// are dropped; the regrade task picks them up later.
type AsyncPublisher struct {
	syncer RecordSyncer
	queue  chan string

	mu      sync.Mutex
	pending map[string]bool
}

func NewAsyncPublisher(s RecordSyncer, size int) *AsyncPublisher {
	if size <= 0 {
		size = 256
	}
	return &AsyncPublisher{syncer: s, queue: make(chan string, size), pending: map[string]bool{}}
}

func (p *AsyncPublisher) Enqueue(checkmarkID, userID int64) {
	key := strconv.FormatInt(checkmarkID, 10) + ":" + strconv.FormatInt(userID, 10)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[key] {
		return
	}
	select {
	case p.queue <- key:
		p.pending[key] = true
	default:
		log.Printf("gradebook: publish queue full, dropping %s", key)
	}
}

// Run publishes queued records until ctx is done.
func (p *AsyncPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-p.queue:
			p.mu.Lock()
			delete(p.pending, key)
			p.mu.Unlock()
			if err := p.syncer.SyncRecord(ctx, key); err != nil {
				log.Printf("gradebook: publish %s: %v", key, err)
			}
		}
	}
}

// Drain publishes whatever is queued and returns once the queue is empty.
// Short-lived processes call it instead of Run.
func (p *AsyncPublisher) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case key := <-p.queue:
			p.mu.Lock()
			delete(p.pending, key)
			p.mu.Unlock()
			if err := p.syncer.SyncRecord(ctx, key); err != nil {
				log.Printf("gradebook: publish %s: %v", key, err)
				continue
			}
			n++
		default:
			return n
		}
	}
}
