package game

import (
	"testing"
	"time"

	"reeltide.gg/internal/protocol"
)

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "dance")
	if f.sink.lastCode() != protocol.ErrUnknownCommand {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrUnknownCommand)
	}
}

func TestDispatchDisabledCommand(t *testing.T) {
	f := newFixture(fixedDelayTune())
	f.g.SetCommandEnabled("cast", false)

	f.chat("chan", "alice", "cast")
	if f.sink.lastCode() != protocol.ErrDisabled {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrDisabled)
	}

	f.g.SetCommandEnabled("cast", true)
	f.sink.reset()
	f.chat("chan", "alice", "cast")
	if f.sink.last(protocol.TypeCast) == nil {
		t.Fatalf("re-enabled command did not run")
	}
}

func TestFishAliasesToCast(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "fish")
	if f.sink.last(protocol.TypeCast) == nil {
		t.Fatalf("fish did not cast")
	}
	// The alias shares cast's disable switch.
	f.g.SetCommandEnabled("cast", false)
	f.sink.reset()
	f.chat("chan", "bob", "fish")
	if f.sink.lastCode() != protocol.ErrDisabled {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrDisabled)
	}
}

func TestModOnlyCommandRejectsViewers(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "event", "gold", "0.5")
	if f.sink.lastCode() != protocol.ErrNoPermission {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrNoPermission)
	}
	if len(f.g.events) != 0 {
		t.Fatalf("viewer started an event")
	}

	f.mod("chan", "mod", "event", "gold", "0.5")
	if len(f.g.events) != 1 {
		t.Fatalf("mod could not start an event")
	}
}

func TestGlobalCooldownDropsChatSilently(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "level")
	f.sink.reset()

	// Within the channel window: dropped without any notice at all.
	f.chat("chan", "bob", "level")
	if len(f.sink.events) != 0 {
		t.Fatalf("expected silent drop, got %v", f.sink.events)
	}

	// A different channel has its own window.
	f.chat("other", "bob", "level")
	if f.sink.last(protocol.TypeLevel) == nil {
		t.Fatalf("global cooldown leaked across channels")
	}
}

func TestPanelBypassesGlobalCooldown(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "level")
	f.sink.reset()
	f.panel("chan", "bob", "level")
	if f.sink.last(protocol.TypeLevel) == nil {
		t.Fatalf("panel origin should skip the chat-wide cooldown")
	}
}

func TestPerPlayerCooldownNotifies(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.panel("chan", "alice", "level")
	f.sink.reset()
	f.panel("chan", "alice", "level")
	if f.sink.lastCode() != protocol.ErrCooldown {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrCooldown)
	}

	f.clock.Advance(16 * time.Second)
	f.sink.reset()
	f.panel("chan", "alice", "level")
	if f.sink.last(protocol.TypeLevel) == nil {
		t.Fatalf("cooldown did not lapse")
	}
}

func TestPrivilegedCommandsSkipCooldowns(t *testing.T) {
	f := newFixture(fixedDelayTune())

	// Mod commands run straight through both cooldown gates and stamp neither.
	f.mod("chan", "mod", "event", "gold", "0.5")
	f.mod("chan", "mod", "event", "xp", "0.5")
	if len(f.g.events) != 2 {
		t.Fatalf("events = %d, want 2", len(f.g.events))
	}
	if _, ok := f.g.lastCommand[ScopedKey("chan", "mod")]; ok {
		t.Fatalf("privileged dispatch stamped the player cooldown")
	}
}

func TestPanelOnlyCommandRejectsChatOrigin(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.chat("chan", "alice", "theme", "reef")
	if f.sink.lastCode() != protocol.ErrOrigin {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrOrigin)
	}

	f.clock.Advance(16 * time.Second)
	f.sink.reset()
	f.panel("chan", "alice", "theme", "reef")
	if f.sink.lastCode() == protocol.ErrOrigin {
		t.Fatalf("panel origin rejected")
	}
}

func TestRejectionCodesAreRegistered(t *testing.T) {
	f := newFixture(fixedDelayTune())

	// Walk the rejection paths and check every emitted code against the
	// registered set panels key off.
	f.chat("chan", "alice", "dance")
	f.chat("chan", "alice", "event", "gold", "0.5")
	f.panel("chan", "alice", "reel")
	f.panel("chan", "bob", "trade", "board")
	f.chat("chan", "carol", "theme", "reef")

	checked := 0
	for _, ev := range f.sink.ofType(protocol.TypeStatus) {
		code, ok := ev["code"].(string)
		if !ok {
			continue
		}
		if !protocol.IsKnownCode(code) {
			t.Fatalf("unregistered status code %q", code)
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("no rejection codes emitted")
	}
}

func TestLockedSessionRejectsOtherPlayers(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.panel("chan", "alice", "store")
	if f.g.lock == nil {
		t.Fatalf("store did not take the lock")
	}

	f.sink.reset()
	f.panel("chan", "bob", "inventory")
	if f.sink.lastCode() != protocol.ErrLocked {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrLocked)
	}
	ev := f.sink.last(protocol.TypeInventory)
	if ev == nil || ev["locked"] != true {
		t.Fatalf("expected a locked payload for the rejected mode, got %v", ev)
	}
}

func TestSessionCommandRenewsHoldersLock(t *testing.T) {
	f := newFixture(fixedDelayTune())

	f.panel("chan", "alice", "store")
	expiry := f.g.lock.ExpiresAt

	f.clock.Advance(16 * time.Second) // clears per-player cooldown; lock window is 25s
	f.panel("chan", "alice", "inventory")
	if f.g.lock == nil || !f.g.lock.ExpiresAt.After(expiry) {
		t.Fatalf("holder's session command did not renew the lock")
	}
}
