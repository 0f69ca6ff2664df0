package lock

import (
	"context"
	"sync"
	"time"

	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
)

// Local locks keys within one process.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	start := time.Now()
	keys = normalize(keys)

	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	metrics.LockWaits.WithLabelValues("local").Observe(time.Since(start).Seconds())
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Local) Close() error {
	return nil
}
