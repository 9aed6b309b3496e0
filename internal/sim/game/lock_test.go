package game

import (
	"testing"
	"time"

	"reeltide.gg/internal/protocol"
)

func TestSessionLockExcludesOthers(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan", "alice")
	bob := f.player("chan", "bob")

	if !g.openSession(alice, ModeStore) {
		t.Fatalf("alice could not open the store")
	}
	f.sink.reset()
	if g.openSession(bob, ModeInventory) {
		t.Fatalf("bob opened a session while alice holds the lock")
	}
	if f.sink.lastCode() != protocol.ErrLocked {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrLocked)
	}
	ev := f.sink.last(protocol.TypeInventory)
	if ev == nil || ev["locked"] != true {
		t.Fatalf("expected locked inventory payload, got %v", ev)
	}
	if ev["remainingMs"].(int64) != 25_000 {
		t.Fatalf("remainingMs = %v, want 25000", ev["remainingMs"])
	}
}

func TestSessionLockIsGlobalAcrossChannels(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan_a", "alice")
	bob := f.player("chan_b", "bob")

	if !g.openSession(alice, ModeStore) {
		t.Fatalf("alice could not open the store")
	}
	// One session slot for the whole process, not per channel.
	if g.openSession(bob, ModeStore) {
		t.Fatalf("lock did not hold across channels")
	}
}

func TestSessionRenewalBudget(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan", "alice")

	g.openSession(alice, ModeStore)

	f.clock.Advance(10 * time.Second)
	g.renewSession(alice.Key)
	f.clock.Advance(10 * time.Second)
	g.renewSession(alice.Key)
	if g.lock.Renewals != 2 {
		t.Fatalf("renewals = %d, want 2", g.lock.Renewals)
	}
	expiry := g.lock.ExpiresAt

	// Past the budget a renewal is a no-op.
	f.clock.Advance(5 * time.Second)
	g.renewSession(alice.Key)
	if !g.lock.ExpiresAt.Equal(expiry) {
		t.Fatalf("expiry extended past renewal budget")
	}
}

func TestSessionExpiryReleasesAndNotifies(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan", "alice")
	bob := f.player("chan", "bob")

	g.openSession(alice, ModeStore)
	f.clock.Advance(26 * time.Second)

	if g.lock != nil {
		t.Fatalf("lock not released on expiry")
	}
	ev := f.sink.last(protocol.TypeStore)
	if ev == nil || ev["locked"] != false {
		t.Fatalf("expected unlock payload, got %v", ev)
	}
	if !g.openSession(bob, ModeStore) {
		t.Fatalf("bob blocked after expiry")
	}
}

func TestNaturalExpiryAppliesCooldown(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan", "alice")

	g.openSession(alice, ModeStore)
	f.clock.Advance(26 * time.Second)

	if _, ok := g.lastCommand[alice.Key]; !ok {
		t.Fatalf("expiry should stamp the per-player cooldown")
	}
}

func TestImplicitCloseOnNonSessionCommand(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g

	f.chat("chan", "alice", "store")
	if g.lock == nil {
		t.Fatalf("store command should open a session")
	}

	// The holder's cast closes the session without a cooldown stamp.
	f.clock.Advance(16 * time.Second) // clear per-player cooldown from "store"
	delete(g.lastCommand, ScopedKey("chan", "alice"))
	f.chat("chan", "alice", "cast")
	if g.lock != nil {
		t.Fatalf("session not closed by holder's non-session command")
	}
}

func TestSameHolderSwitchesMode(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	alice := f.player("chan", "alice")

	g.openSession(alice, ModeStore)
	g.lock.Renewals = 2
	if !g.openSession(alice, ModeInventory) {
		t.Fatalf("holder could not switch modes")
	}
	if g.lock.Mode != ModeInventory {
		t.Fatalf("mode = %q, want inventory", g.lock.Mode)
	}
	if g.lock.Renewals != 2 {
		t.Fatalf("mode switch must keep the renewal budget")
	}
}
