package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mabdi59/tournapro/metrics"
)

// DivisionLocker serializes mutations of one division. Lock blocks until the
// division is free or the wait times out with ErrConcurrentModification.
type DivisionLocker interface {
	Lock(ctx context.Context, divisionID int) (unlock func(), err error)
}

// lockSlot is the semaphore of one division. refs counts the holder and
// everyone waiting; the slot is dropped when it reaches zero.
type lockSlot struct {
	ch   chan struct{}
	refs int
}

type memoryLocker struct {
	mu      sync.Mutex
	slots   map[int]*lockSlot
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewMemoryLocker returns a process-local locker, enough for a single instance.
func NewMemoryLocker(timeout time.Duration, m *metrics.Metrics) DivisionLocker {
	return &memoryLocker{slots: make(map[int]*lockSlot), timeout: timeout, metrics: m}
}

func (l *memoryLocker) acquire(divisionID int) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[divisionID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[divisionID] = slot
	}
	slot.refs++
	return slot
}

func (l *memoryLocker) release(divisionID int, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, divisionID)
	}
}

func (l *memoryLocker) Lock(ctx context.Context, divisionID int) (func(), error) {
	slot := l.acquire(divisionID)
	start := time.Now()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		l.metrics.LockWait.Observe(time.Since(start).Seconds())
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(divisionID, slot)
			})
		}, nil
	case <-timer.C:
		l.release(divisionID, slot)
		l.metrics.LockTimeouts.Inc()
		return nil, fmt.Errorf("%w: division %d", ErrConcurrentModification, divisionID)
	case <-ctx.Done():
		l.release(divisionID, slot)
		return nil, ctx.Err()
	}
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lease can never release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	redisLockLease = 30 * time.Second
	redisLockRetry = 25 * time.Millisecond
)

type redisLocker struct {
	client  *redis.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRedisLocker returns a locker shared by every instance using the same
// Redis. Locks are leased so a crashed holder frees the division eventually.
func NewRedisLocker(client *redis.Client, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) DivisionLocker {
	return &redisLocker{client: client, timeout: timeout, logger: logger, metrics: m}
}

func divisionLockKey(divisionID int) string {
	return fmt.Sprintf("tournapro:lock:division:%d", divisionID)
}

func (l *redisLocker) Lock(ctx context.Context, divisionID int) (func(), error) {
	key := divisionLockKey(divisionID)
	token := uuid.NewString()
	start := time.Now()
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, redisLockLease).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to acquire lock for division %d: %w", divisionID, err)
		}
		if ok {
			l.metrics.LockWait.Observe(time.Since(start).Seconds())
			var once sync.Once
			return func() {
				once.Do(func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
						l.logger.Error("Failed to release division lock; it stays held until the lease expires",
							slog.Int("division_id", divisionID),
							slog.Duration("lease", redisLockLease),
							slog.Any("error", err),
						)
					}
				})
			}, nil
		}

		select {
		case <-time.After(redisLockRetry):
		case <-deadline.C:
			l.metrics.LockTimeouts.Inc()
			return nil, fmt.Errorf("%w: division %d", ErrConcurrentModification, divisionID)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
