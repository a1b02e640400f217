package causal

import (
	"testing"
	"time"

	"github.com/causalchat/server/internal/vectorclock"
)

func mustEnv(id, sender string, clock vectorclock.Snapshot, receivedAt time.Time) Envelope {
	return Envelope{ID: id, SenderID: sender, Clock: clock, ReceivedAt: receivedAt, Payload: id}
}

func TestOfferDeliversFirstMessageImmediately(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	res := e.Offer(mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now()))
	if !res.DeliveredNow {
		t.Fatalf("expected immediate delivery, got %+v", res)
	}
}

func TestOfferBuffersOutOfOrderMessage(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	res := e.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	if res.DeliveredNow || res.Reason != ReasonWaitingForCausalDependencies {
		t.Fatalf("expected buffered/waiting, got %+v", res)
	}
	if len(e.Buffered()) != 1 {
		t.Fatalf("expected one buffered entry")
	}
}

func TestDuplicateSuppression(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	first := e.Offer(mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now()))
	if !first.DeliveredNow {
		t.Fatalf("expected first offer delivered")
	}
	second := e.Offer(mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now()))
	if second.DeliveredNow || second.Reason != ReasonDuplicate {
		t.Fatalf("expected duplicate on re-offer, got %+v", second)
	}

	// Duplicate detection also applies while an entry merely sits in the buffer.
	e2 := NewEngine(vectorclock.New("bob"), 0)
	e2.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	dup := e2.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	if dup.DeliveredNow || dup.Reason != ReasonDuplicate {
		t.Fatalf("expected duplicate for buffered id, got %+v", dup)
	}
}

func TestBufferOverflow(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 1)

	e.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	res := e.Offer(mustEnv("m3", "alice", vectorclock.Snapshot{"alice": 3}, time.Now()))
	if res.DeliveredNow || res.Reason != ReasonBufferOverflow {
		t.Fatalf("expected buffer_overflow, got %+v", res)
	}
}

func TestCausalChainReorderedDelivery(t *testing.T) {
	// Scenario 2: Alice sends m1 [1,0,0]. Bob merges, ticks, sends m2 [1,1,0].
	// Carol receives m2 first, then m1. Expect m2 buffered, then both delivered
	// m1 then m2 once m1 arrives.
	clock := vectorclock.New("carol")
	e := NewEngine(clock, 0)

	m2 := mustEnv("m2", "bob", vectorclock.Snapshot{"alice": 1, "bob": 1}, time.Now())
	res := e.Offer(m2)
	if res.DeliveredNow {
		t.Fatalf("expected m2 to be buffered until m1 arrives")
	}

	m1 := mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now().Add(time.Millisecond))
	res = e.Offer(m1)
	if !res.DeliveredNow {
		t.Fatalf("expected m1 to be immediately ready")
	}
	clock.Merge(m1.Clock)

	delivered := e.DrainAll()
	if len(delivered) != 1 || delivered[0].ID != "m2" {
		t.Fatalf("expected m2 delivered from drain, got %+v", delivered)
	}
}

func TestSelfFIFOUnderReordering(t *testing.T) {
	// Scenario 3: Alice sends m1 [1,0,0] then m2 [2,0,0]. Bob receives m2 first.
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	m2 := mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now())
	if res := e.Offer(m2); res.DeliveredNow {
		t.Fatalf("expected m2 buffered ahead of m1")
	}

	m1 := mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now().Add(time.Millisecond))
	res := e.Offer(m1)
	if !res.DeliveredNow {
		t.Fatalf("expected m1 immediately ready")
	}
	clock.Merge(m1.Clock)

	delivered := e.DrainAll()
	if len(delivered) != 1 || delivered[0].ID != "m2" {
		t.Fatalf("expected m2 to drain after m1, got %+v", delivered)
	}
}

func TestConcurrentMessagesBothDeliverImmediately(t *testing.T) {
	// Scenario 1: Alice ticks and sends m1 [1,0,0]; Bob ticks and sends m2
	// [0,1,0], concurrently. Both arrive at Carol in either order and are
	// both immediately deliverable.
	clock := vectorclock.New("carol")
	e := NewEngine(clock, 0)

	m1 := mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now())
	res1 := e.Offer(m1)
	if !res1.DeliveredNow {
		t.Fatalf("expected m1 immediately ready")
	}
	clock.Merge(m1.Clock)

	m2 := mustEnv("m2", "bob", vectorclock.Snapshot{"bob": 1}, time.Now())
	res2 := e.Offer(m2)
	if !res2.DeliveredNow {
		t.Fatalf("expected m2 immediately ready regardless of order")
	}
	clock.Merge(m2.Clock)

	final := clock.Snapshot()
	if final.At("alice") != 1 || final.At("bob") != 1 {
		t.Fatalf("unexpected final clock: %v", final)
	}
}

func TestDrainIsFixpoint(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	e.Offer(mustEnv("m3", "alice", vectorclock.Snapshot{"alice": 3}, time.Now()))
	e.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))

	// Neither is ready yet.
	if got := e.Drain(); len(got) != 0 {
		t.Fatalf("expected no drain before m1 arrives, got %v", got)
	}

	res := e.Offer(mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now()))
	if !res.DeliveredNow {
		t.Fatalf("expected m1 immediately ready")
	}
	clock.Merge(vectorclock.Snapshot{"alice": 1})

	delivered := e.DrainAll()
	if len(delivered) != 2 || delivered[0].ID != "m2" || delivered[1].ID != "m3" {
		t.Fatalf("expected m2 then m3, got %+v", delivered)
	}

	// A further Drain call must return empty: fixpoint reached.
	if got := e.Drain(); len(got) != 0 {
		t.Fatalf("expected empty drain at fixpoint, got %v", got)
	}
}

func TestBufferedAttemptsIncrementOnEachUnsuccessfulScan(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	e.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	e.Drain()
	e.Drain()

	buffered := e.Buffered()
	if len(buffered) != 1 || buffered[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts recorded, got %+v", buffered)
	}
}

func TestResetClearsBufferAndStatsNotClock(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	e.Offer(mustEnv("m2", "alice", vectorclock.Snapshot{"alice": 2}, time.Now()))
	clock.Tick()
	e.Reset()

	if len(e.Buffered()) != 0 {
		t.Fatalf("expected empty buffer after reset")
	}
	if stats := e.Stats(); stats.TotalOffered != 0 {
		t.Fatalf("expected zeroed stats after reset, got %+v", stats)
	}
	if clock.AtPeer("bob") != 1 {
		t.Fatalf("reset must not touch the bound clock")
	}
}

func TestStatsCounters(t *testing.T) {
	clock := vectorclock.New("bob")
	e := NewEngine(clock, 0)

	e.Offer(mustEnv("m1", "alice", vectorclock.Snapshot{"alice": 1}, time.Now()))
	clock.Merge(vectorclock.Snapshot{"alice": 1})
	e.Offer(mustEnv("m3", "alice", vectorclock.Snapshot{"alice": 3}, time.Now()))

	stats := e.Stats()
	if stats.TotalOffered != 2 || stats.DeliveredImmediately != 1 || stats.BufferedTotal != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CurrentBufferSize != 1 || stats.MaxBufferSize != 1 {
		t.Fatalf("unexpected buffer size stats: %+v", stats)
	}
}
