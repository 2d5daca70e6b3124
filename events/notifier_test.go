package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Mabdi59/tournapro/metrics"
)

func newTestNotifier() *Notifier {
	return NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.Discard())
}

// TestNotifier_DeliversInPublishOrder checks fan-out, filtering by type and
// ordering across events.
func TestNotifier_DeliversInPublishOrder(t *testing.T) {
	n := newTestNotifier()
	var got []string
	n.Subscribe(MatchUpdate, func(_ context.Context, e Event) {
		got = append(got, "match:"+string(e.Action))
	})
	n.SubscribeAll(func(_ context.Context, e Event) {
		got = append(got, "all:"+string(e.Type))
	})

	n.Publish(context.Background(), Event{Type: MatchUpdate, Action: ActionUpdated, EntityID: 1})
	n.Publish(context.Background(), Event{Type: TeamUpdate, Action: ActionCreated, EntityID: 2})

	assert.Equal(t, []string{"match:updated", "all:MATCH_UPDATE", "all:TEAM_UPDATE"}, got)
}

func TestNotifier_LateSubscriberMissesEarlierEvents(t *testing.T) {
	n := newTestNotifier()
	n.Publish(context.Background(), Event{Type: TournamentUpdate})

	calls := 0
	n.SubscribeAll(func(context.Context, Event) { calls++ })
	assert.Zero(t, calls)

	n.Publish(context.Background(), Event{Type: TournamentUpdate})
	assert.Equal(t, 1, calls)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := newTestNotifier()
	calls := 0
	unsubscribe := n.Subscribe(PlayerUpdate, func(context.Context, Event) { calls++ })

	n.Publish(context.Background(), Event{Type: PlayerUpdate})
	unsubscribe()
	unsubscribe()
	n.Publish(context.Background(), Event{Type: PlayerUpdate})

	assert.Equal(t, 1, calls)
}

// TestNotifier_PanickingHandler checks one bad subscriber cannot break the
// others or the publisher.
func TestNotifier_PanickingHandler(t *testing.T) {
	n := newTestNotifier()
	n.SubscribeAll(func(context.Context, Event) { panic("boom") })
	delivered := false
	n.SubscribeAll(func(context.Context, Event) { delivered = true })

	assert.NotPanics(t, func() {
		n.Publish(context.Background(), Event{Type: MatchUpdate})
	})
	assert.True(t, delivered)
}

func TestNotifier_StampsEvents(t *testing.T) {
	n := newTestNotifier()
	var got Event
	n.SubscribeAll(func(_ context.Context, e Event) { got = e })

	n.Publish(context.Background(), Event{Type: RegistrationUpdate, TournamentID: 7})

	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.OccurredAt.IsZero())
	assert.Equal(t, n.Origin(), got.Origin)
	assert.Equal(t, 7, got.TournamentID)
}

func TestNotifier_ConcurrentUse(t *testing.T) {
	n := newTestNotifier()
	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsubscribe := n.SubscribeAll(func(context.Context, Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			defer unsubscribe()
		}()
		go func() {
			defer wg.Done()
			n.Publish(context.Background(), Event{Type: MatchUpdate})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 20*20)
	n.mu.RLock()
	defer n.mu.RUnlock()
	assert.Empty(t, n.subs)
}

func TestRedisBridge_ForwardDropsWhenFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewRedisBridge(nil, "", "me", 1, logger, metrics.Discard())

	b.Forward(context.Background(), Event{Type: MatchUpdate, Origin: "me"})
	b.Forward(context.Background(), Event{Type: MatchUpdate, Origin: "me"})
	b.Forward(context.Background(), Event{Type: MatchUpdate, Origin: "someone-else"})

	assert.Len(t, b.queue, 1)
	assert.Equal(t, DefaultRedisChannel, b.channel)
}
