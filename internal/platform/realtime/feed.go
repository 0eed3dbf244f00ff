package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"inphrone-backend/internal/common/logger"
)

const channelPrefix = "realtime:"

// Event says that a row changed. It carries no payload, consumers re-fetch.
type Event struct {
	Table string    `json:"table"`
	ID    string    `json:"id"`
	Op    string    `json:"op"`
	At    time.Time `json:"at"`
}

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Subscription delivers events for one table until closed. The client
// reconnects on its own; Resync fires after each reconnect because events
// published while disconnected are lost. Events is closed once the
// subscription ends.
type Subscription interface {
	Events() <-chan Event
	Resync() <-chan struct{}
	Close() error
}

// Feed is a per-table change feed over Redis Pub/Sub
type Feed struct {
	client redis.UniversalClient
}

func NewFeed(client redis.UniversalClient) *Feed {
	return &Feed{client: client}
}

func Channel(table string) string {
	return channelPrefix + table
}

func (f *Feed) Publish(ctx context.Context, table, id, op string) error {
	payload, err := json.Marshal(Event{Table: table, ID: id, Op: op, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel(table), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s change: %w", table, err)
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, table string) (Subscription, error) {
	ps := f.client.Subscribe(ctx, Channel(table))
	// wait for the subscription confirmation so callers know it is live
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	sub := newPubsubSubscription(ps)
	go sub.pump(table, ps.ChannelWithSubscriptions())
	return sub, nil
}

type pubsubSubscription struct {
	ps     *redis.PubSub
	events chan Event
	resync chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newPubsubSubscription(ps *redis.PubSub) *pubsubSubscription {
	return &pubsubSubscription{
		ps:     ps,
		events: make(chan Event, 16),
		resync: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *pubsubSubscription) Events() <-chan Event {
	return s.events
}

func (s *pubsubSubscription) Resync() <-chan struct{} {
	return s.resync
}

func (s *pubsubSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// pump forwards messages until done. The initial confirmation was consumed
// by Subscribe, so any later subscribe confirmation means go-redis
// reconnected and re-subscribed.
func (s *pubsubSubscription) pump(table string, messages <-chan interface{}) {
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				if m.Kind != "subscribe" {
					continue
				}
				logger.Debug().Str("table", table).Msg("Change feed resubscribed")
				select {
				case s.resync <- struct{}{}:
				default:
				}
			case *redis.Message:
				var event Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logger.Warn().Err(err).Str("table", table).Msg("Dropping malformed change event")
					continue
				}
				select {
				case s.events <- event:
				case <-s.done:
					return
				default:
					// slow consumer, it re-fetches on the next event or poll anyway
				}
			}
		}
	}
}
