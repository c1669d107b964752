package gradebook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSyncer struct {
	keys []string
	fail map[string]bool
}

func (s *recordingSyncer) SyncRecord(_ context.Context, key string) error {
	s.keys = append(s.keys, key)
	if s.fail[key] {
		return errors.New("platform down")
	}
	return nil
}

func TestAsyncPublisherDedupsAndDrains(t *testing.T) {
	s := &recordingSyncer{fail: map[string]bool{"3:8": true}}
	p := NewAsyncPublisher(s, 2)
	p.Enqueue(3, 7)
	p.Enqueue(3, 7)
	p.Enqueue(3, 8)
	// queue is full
	p.Enqueue(3, 9)

	assert.Equal(t, 1, p.Drain(context.Background()))
	assert.Equal(t, []string{"3:7", "3:8"}, s.keys)

	// a drained key can be queued again
	p.Enqueue(3, 7)
	assert.Equal(t, 1, p.Drain(context.Background()))
	assert.Equal(t, 0, p.Drain(context.Background()))
}

func TestAsyncPublisherRunStopsWithContext(t *testing.T) {
	s := &recordingSyncer{}
	p := NewAsyncPublisher(s, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Empty(t, s.keys)
}
