package grievance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Feed errors
var (
	ErrFeedClosed = errors.New("grievance feed is closed")
	ErrFeedFull   = shared.NewDomainError("TOO_MANY_STREAMS", "Too many live streams open, try again later")
)

// Scope selects which grievances a subscription receives
type Scope struct {
	OwnerID uuid.UUID
	All     bool
}

func (s Scope) matches(owner uuid.UUID) bool {
	return s.All || s.OwnerID == owner
}

// Change is one update pushed to a subscriber
type Change struct {
	Type      string            `json:"type"`
	Grievance GrievanceResponse `json:"grievance"`
}

// FeedOption configures a Feed
type FeedOption func(*Feed)

// WithBuffer sets the per-subscriber channel size
func WithBuffer(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.buffer = n
		}
	}
}

// WithMaxSubscribers caps concurrent subscriptions; 0 means unlimited
func WithMaxSubscribers(n int) FeedOption {
	return func(f *Feed) {
		f.maxSubscribers = n
	}
}

// Feed fans grievance changes out to live subscribers. It is registered
// on the event bus as a handler. A subscriber whose buffer is full is
// closed rather than left behind on stale state; Evicted tells it apart
// from a shutdown so the stream can ask the client to resubscribe.
type Feed struct {
	mu             sync.Mutex
	subs           map[*Subscription]struct{}
	closed         bool
	buffer         int
	maxSubscribers int
	logger         *zap.Logger
}

var _ shared.EventHandler = (*Feed)(nil)

// NewFeed creates an open Feed
func NewFeed(logger *zap.Logger, opts ...FeedOption) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feed{
		subs:   make(map[*Subscription]struct{}),
		buffer: 32,
		logger: logger.Named("feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe opens a subscription for scope. The caller must Close it.
func (f *Feed) Subscribe(scope Scope) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}
	if f.maxSubscribers > 0 && len(f.subs) >= f.maxSubscribers {
		return nil, ErrFeedFull
	}

	sub := &Subscription{
		id:    uuid.New(),
		scope: scope,
		ch:    make(chan Change, f.buffer),
		feed:  f,
	}
	f.subs[sub] = struct{}{}
	return sub, nil
}

// Len returns the number of open subscriptions
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// EventTypes implements shared.EventHandler
func (f *Feed) EventTypes() []string {
	return []string{
		grievance.EventTypeGrievanceCreated,
		grievance.EventTypeGrievanceStatusChanged,
	}
}

// Handle implements shared.EventHandler
func (f *Feed) Handle(_ context.Context, event shared.DomainEvent) error {
	ev, ok := event.(grievance.ChangeEvent)
	if !ok {
		return nil
	}
	f.Broadcast(ev.EventType(), ev.OwnerID(), FromSnapshot(ev.Current()))
	return nil
}

// Broadcast delivers a change to every matching subscriber. Changes already
// buffered stay readable after an eviction.
func (f *Feed) Broadcast(eventType string, owner uuid.UUID, g GrievanceResponse) {
	change := Change{Type: eventType, Grievance: g}

	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		if !sub.scope.matches(owner) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			sub.dropped.Add(1)
			delete(f.subs, sub)
			sub.closeLocked()
			f.logger.Warn("Slow subscriber, closing subscription",
				zap.String("subscription_id", sub.id.String()),
				zap.String("grievance_id", g.ID.String()),
				zap.String("event_type", eventType),
			)
		}
	}
}

// Close closes every subscription and rejects new ones
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		sub.closeLocked()
	}
	f.subs = make(map[*Subscription]struct{})
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	sub.closeLocked()
}

// Subscription is one live stream's handle on the feed
type Subscription struct {
	id      uuid.UUID
	scope   Scope
	ch      chan Change
	feed    *Feed
	once    sync.Once
	dropped atomic.Int64
}

// ID identifies the subscription in logs
func (s *Subscription) ID() uuid.UUID { return s.id }

// Scope returns what the subscription receives
func (s *Subscription) Scope() Scope { return s.scope }

// Changes is closed when the subscription or the feed closes
func (s *Subscription) Changes() <-chan Change { return s.ch }

// Dropped counts changes lost because the subscriber fell behind
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Evicted reports whether the feed closed the subscription for falling behind
func (s *Subscription) Evicted() bool { return s.dropped.Load() > 0 }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.feed.remove(s)
}

// closeLocked must be called with the feed lock held
func (s *Subscription) closeLocked() {
	s.once.Do(func() { close(s.ch) })
}
