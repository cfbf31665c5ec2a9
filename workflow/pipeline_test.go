package workflow

import (
	"sync"
	"testing"
)

// NOTE: These tests are intentionally DB-free. They validate the intended ingest semantics:
// - at-least-once delivery is safe via durable idempotency
// - per-(org, SKU) serialization prevents racey interleavings inside the reconcile section
//
// Full DB+PubSub integration tests should be added in an environment that can run MySQL + Pub/Sub emulator.

type fakePipeline struct {
	muBySku map[string]*sync.Mutex
	mu      sync.Mutex
	seen    map[string]bool
	calls   int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		muBySku: map[string]*sync.Mutex{},
		seen:    map[string]bool{},
	}
}

func (p *fakePipeline) ingest(orgID, sku, messageID string, fn func()) {
	// Serialize per (org, SKU) (models AcquireReconcileLock).
	lockKey := orgID + ":" + sku
	p.mu.Lock()
	sm := p.muBySku[lockKey]
	if sm == nil {
		sm = &sync.Mutex{}
		p.muBySku[lockKey] = sm
	}
	p.mu.Unlock()

	sm.Lock()
	defer sm.Unlock()

	// Deduplicate (models IdempotencyKey).
	key := orgID + "|" + ingestHandlerName + "|" + messageID
	p.mu.Lock()
	if p.seen[key] {
		p.mu.Unlock()
		return
	}
	p.seen[key] = true
	p.mu.Unlock()

	fn()

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func TestIngest_DuplicateDelivery_IsProcessedOnce(t *testing.T) {
	p := newFakePipeline()

	const (
		org       = "org-1"
		sku       = "ABC-100"
		messageID = "msg-123"
	)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.ingest(org, sku, messageID, func() {})
		}()
	}
	wg.Wait()

	if p.calls != 1 {
		t.Fatalf("expected exactly 1 processing call, got %d", p.calls)
	}
}

func TestIngest_Property_DeterministicUnderConcurrency(t *testing.T) {
	for run := 0; run < 100; run++ {
		p := newFakePipeline()
		var wg sync.WaitGroup

		// same document set, delivered concurrently with duplicates
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p.ingest("org-1", "ABC-100", "po-1", func() {})
				p.ingest("org-1", "ABC-100", "bol-2", func() {})
				p.ingest("org-1", "ABC-100", "po-1", func() {}) // duplicate
			}(i)
		}
		wg.Wait()

		if p.calls != 2 {
			t.Fatalf("run=%d expected 2 unique ingests (po-1, bol-2), got %d", run, p.calls)
		}
	}
}
