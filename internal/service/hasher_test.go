package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherHashVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 4)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "swordfish1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify(ctx, hash, "swordfish1") {
		t.Error("correct password rejected")
	}
	if h.Verify(ctx, hash, "swordfish2") {
		t.Error("wrong password accepted")
	}
}

func TestHasherBoundsConcurrency(t *testing.T) {
	const workers = 2
	h := NewHasher(bcrypt.MinCost, workers)

	var inFlight, peak int64
	var mu sync.Mutex
	observe := func(delta int64) {
		mu.Lock()
		defer mu.Unlock()
		inFlight += delta
		if inFlight > peak {
			peak = inFlight
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			observe(1)
			time.Sleep(5 * time.Millisecond)
			observe(-1)
			h.release()
		}()
	}
	wg.Wait()

	if peak > workers {
		t.Fatalf("observed %d concurrent slots, budget is %d", peak, workers)
	}
}

func TestHasherRespectsContext(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)

	// Occupy the only slot.
	if err := h.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer h.release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.Hash(ctx, "whatever"); err == nil {
		t.Error("Hash succeeded although the pool was full and the context expired")
	}
	if h.Verify(ctx, "$2a$04$invalid", "whatever") {
		t.Error("Verify admitted a caller it never compared")
	}
}

func TestHasherDefaultWorkers(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 0)
	if cap(h.sem) <= 0 {
		t.Fatalf("default worker budget = %d, want > 0", cap(h.sem))
	}
}
