package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// lockTable hands out exclusive per-account mutation rights. Acquisition is
// bounded: a caller that cannot get a lock within the wait budget fails with
// ErrConflict instead of blocking indefinitely. Multi-account acquisitions
// always proceed in ascending account-id order, which makes deadlock between
// opposite-direction transfers on the same pair impossible.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func newLockTable(wait time.Duration) *lockTable {
	return &lockTable{
		locks: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (lt *lockTable) sem(id string) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	s, ok := lt.locks[id]
	if !ok {
		s = make(chan struct{}, 1)
		lt.locks[id] = s
	}
	return s
}

// acquire takes the locks for every id, sorted ascending. On timeout or
// context cancellation the locks already held are released and ErrConflict is
// returned. The returned release function must be called exactly once.
func (lt *lockTable) acquire(ctx context.Context, ids ...string) (func(), error) {
	ordered := make([]string, len(ids))
	copy(ordered, ids)
	sort.Strings(ordered)

	deadline := time.NewTimer(lt.wait)
	defer deadline.Stop()

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ordered {
		s := lt.sem(id)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-deadline.C:
			release()
			return nil, ErrConflict
		case <-ctx.Done():
			release()
			return nil, ErrConflict
		}
	}
	return release, nil
}
