package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Topic string

const (
	TopicInvoiceCreated Topic = "invoice.created"
	TopicProductChanged Topic = "product.changed"
	TopicExpenseChanged Topic = "expense.changed"
)

// Change describes one committed write. Version is assigned by the Feed.
type Change struct {
	Topic    Topic     `json:"topic"`
	EntityID uint      `json:"entity_id"`
	Version  uint64    `json:"version"`
	At       time.Time `json:"at"`
}

// Notifier is told about every committed write that changes what readers see.
type Notifier interface {
	Notify(ctx context.Context, ch Change) error
}

// Versioner exposes the current dataset version to readers.
type Versioner interface {
	CurrentVersion(ctx context.Context) (uint64, error)
}

// SharedVersion is a dataset version stored outside the process, so every
// instance and every restart reads the same counter.
type SharedVersion interface {
	Incr(ctx context.Context) (uint64, error)
	Get(ctx context.Context) (uint64, error)
}

// Feed is an in-process version counter with fan-out to subscribers.
// A subscriber whose buffer is full misses the change, but Version
// still reflects it.
type Feed struct {
	mu      sync.Mutex
	version uint64
	nextID  int
	subs    map[int]chan Change
	shared  SharedVersion
	now     func() time.Time
}

type Option func(*Feed)

// WithSharedVersion makes Notify also bump v and CurrentVersion read it.
func WithSharedVersion(v SharedVersion) Option {
	return func(f *Feed) { f.shared = v }
}

func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		subs: make(map[int]chan Change),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Version is the number of changes this process has seen.
func (f *Feed) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// CurrentVersion is the shared version when one is configured, else the
// local one.
func (f *Feed) CurrentVersion(ctx context.Context) (uint64, error) {
	if f.shared == nil {
		return f.Version(), nil
	}
	v, err := f.shared.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("read shared version: %w", err)
	}
	return v, nil
}

// Notify delivers ch to local subscribers, then bumps the shared version.
// Local delivery happens even when the shared bump fails.
func (f *Feed) Notify(ctx context.Context, ch Change) error {
	f.mu.Lock()
	f.version++
	ch.Version = f.version
	if ch.At.IsZero() {
		ch.At = f.now()
	}
	for _, sub := range f.subs {
		select {
		case sub <- ch:
		default:
		}
	}
	f.mu.Unlock()

	if f.shared == nil {
		return nil
	}
	if _, err := f.shared.Incr(ctx); err != nil {
		return fmt.Errorf("bump shared version: %w", err)
	}
	return nil
}

// Subscribe registers a receiver. The returned cancel func closes the
// channel and is safe to call more than once.
func (f *Feed) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}
