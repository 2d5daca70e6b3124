// Package events fans change notifications out to in-process subscribers.
//
// Delivery is best effort: handlers registered when Publish runs are called
// synchronously in registration order, events are not stored, and a
// subscriber added later never sees earlier events. A panicking handler is
// logged and skipped; Publish itself never fails.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mabdi59/tournapro/metrics"
)

type Type string

const (
	MatchUpdate        Type = "MATCH_UPDATE"
	TeamUpdate         Type = "TEAM_UPDATE"
	TournamentUpdate   Type = "TOURNAMENT_UPDATE"
	RegistrationUpdate Type = "REGISTRATION_UPDATE"
	PlayerUpdate       Type = "PLAYER_UPDATE"
)

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionGenerated Action = "generated"
)

type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         Type      `json:"type"`
	Action       Action    `json:"action"`
	TournamentID int       `json:"tournamentId"`
	DivisionID   *int      `json:"divisionId,omitempty"`
	EntityID     int       `json:"entityId"`
	Payload      any       `json:"payload,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
	// Origin identifies the instance that published the event.
	Origin string `json:"origin,omitempty"`
}

type Handler func(ctx context.Context, e Event)

// Publisher is what mutating services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	id      uint64
	typ     Type // empty means every type
	handler Handler
}

type Notifier struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscription
	origin  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewNotifier(logger *slog.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		origin:  uuid.NewString(),
		logger:  logger,
		metrics: m,
	}
}

// Origin is this process's instance id, stamped on every published event.
func (n *Notifier) Origin() string {
	return n.origin
}

// Subscribe registers h for events of type t and returns a function that
// removes it again. Calling the returned function more than once is safe.
func (n *Notifier) Subscribe(t Type, h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, typ: t, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) SubscribeAll(h Handler) (unsubscribe func()) {
	return n.Subscribe("", h)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

func (n *Notifier) Publish(ctx context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Origin == "" {
		e.Origin = n.origin
	}

	n.mu.RLock()
	targets := make([]subscription, 0, len(n.subs))
	for _, s := range n.subs {
		if s.typ == "" || s.typ == e.Type {
			targets = append(targets, s)
		}
	}
	n.mu.RUnlock()

	if n.metrics != nil {
		n.metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
	}
	for _, s := range targets {
		n.deliver(ctx, s, e)
	}
}

func (n *Notifier) deliver(ctx context.Context, s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			if n.metrics != nil {
				n.metrics.HandlerPanics.Inc()
			}
			n.logger.Error("event handler panicked",
				slog.String("event_type", string(e.Type)),
				slog.String("event_id", e.ID.String()),
				slog.Any("panic", r),
			)
		}
	}()
	s.handler(ctx, e)
}
