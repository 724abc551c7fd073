// Package service contains the stateful components sitting between
// HTTP handlers and repositories: the bcrypt worker pool, the refresh
// token lifecycle and the security event publisher.
package service

import (
	"context"
	"runtime"

	"github.com/clinicore/access-control/internal/utils"
)

// Hasher gates bcrypt work behind a fixed-capacity semaphore. bcrypt is
// deliberately slow; without the gate a burst of registrations would
// occupy every goroutine scheduler slot and starve unrelated requests.
// Throughput degrades gracefully instead: excess callers wait in line
// or give up when their request context ends.
type Hasher struct {
	cost int
	sem  chan struct{}
}

// NewHasher builds a Hasher with the given bcrypt cost and worker
// budget. A non-positive budget defaults to twice the CPU count.
func NewHasher(cost, workers int) *Hasher {
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: make(chan struct{}, workers)}
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() { <-h.sem }

// Hash produces a bcrypt hash of plain, waiting for a pool slot first.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()
	return utils.HashPassword(plain, h.cost)
}

// Verify compares a stored hash with a candidate password under a pool
// slot. Returns false on pool timeout; a denied comparison must never
// admit anyone.
func (h *Hasher) Verify(ctx context.Context, hash, plain string) bool {
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()
	return utils.VerifyPassword(hash, plain)
}

// Burn spends one comparison against a throwaway hash. The login path
// calls it when the email does not resolve to a user, so both failure
// modes cost the same.
func (h *Hasher) Burn(ctx context.Context, plain string) {
	if err := h.acquire(ctx); err != nil {
		return
	}
	defer h.release()
	utils.BurnVerify(plain)
}
