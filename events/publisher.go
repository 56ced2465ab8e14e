package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Topic names the view that should refresh.
type Topic string

const (
	TopicSeasons      Topic = "seasons"
	TopicPlayers      Topic = "players"
	TopicAvailability Topic = "availability"
	TopicFixtures     Topic = "fixtures"
	TopicResults      Topic = "results"
)

// Event is a refresh signal. It carries no data; subscribers re-read.
type Event struct {
	Topic    Topic     `json:"topic"`
	SeasonID int       `json:"season_id,omitempty"`
	Action   string    `json:"action"`
	At       time.Time `json:"at"`
}

// Publisher is what services depend on. Publish never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

type Handler func(ctx context.Context, e Event)

type subscription struct {
	topics  map[Topic]bool
	handler Handler
}

func (s subscription) wants(t Topic) bool {
	return len(s.topics) == 0 || s.topics[t]
}

// Bus fans events out to registered handlers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]subscription
	nextID int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{subs: make(map[int]subscription), logger: logger}
}

// Subscribe registers h for the given topics (all topics when none are
// given) and returns a function that removes it.
func (b *Bus) Subscribe(h Handler, topics ...Topic) (unsubscribe func()) {
	set := make(map[Topic]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{topics: set, handler: h}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers every event to every interested handler concurrently and
// waits for them. A panicking handler is logged and does not affect others.
// Delivery runs detached from ctx cancellation.
func (b *Bus) Publish(ctx context.Context, events ...Event) {
	b.mu.RLock()
	handlers := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		handlers = append(handlers, s)
	}
	b.mu.RUnlock()

	deliveryCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, e := range events {
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		for _, s := range handlers {
			if !s.wants(e.Topic) {
				continue
			}
			e, h := e, s.handler
			g.Go(func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("refresh handler panicked: %v", p)
					}
				}()
				h(deliveryCtx, e)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		b.logger.WarnContext(ctx, "Refresh delivery failed", slog.Any("error", err))
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) {}
