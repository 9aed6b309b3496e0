package game

import (
	"fmt"
	"strings"
	"time"

	"reeltide.gg/internal/protocol"
)

var knownCommands = map[string]bool{
	"fish": true, "cast": true, "reel": true,
	"store": true, "store-refresh": true, "buy": true, "upgrades": true,
	"sell": true, "use": true, "inventory": true, "save": true,
	"equip": true, "enchant": true, "duplicate": true, "level": true,
	"theme": true, "event": true, "cooldown": true, "gcooldown": true,
	"reset-profile": true, "panel": true,
	"craft": true, "trade": true, "prestige": true,
}

// sessionCommands hold or renew the interaction lock.
var sessionCommands = map[string]bool{
	"store": true, "inventory": true, "buy": true, "sell": true,
	"use": true, "upgrades": true, "equip": true,
}

// privileged commands skip cooldown gating and require mod or broadcaster.
var privilegedCommands = map[string]bool{
	"event": true, "cooldown": true, "gcooldown": true, "reset-profile": true,
}

var panelOnlyCommands = map[string]bool{
	"theme": true, "panel": true,
}

// Dispatch runs the fixed gating order, then routes to the handler:
// known/enabled, origin-aware global cooldown, interaction-lock conflict,
// per-player cooldown, origin restriction.
func (g *Game) Dispatch(cmd protocol.Command) {
	g.commands.Add(1)
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "fish" {
		name = "cast"
	}
	key := ScopedKey(cmd.Channel, cmd.Username)
	privileged := privilegedCommands[name] && (cmd.Mod || cmd.Broadcaster)

	// 1. Known and enabled.
	if !knownCommands[name] {
		g.status(cmd.Channel, fmt.Sprintf("@%s unknown command %s", cmd.Username, cmd.Name), protocol.ErrUnknownCommand)
		return
	}
	if g.disabled[name] {
		g.status(cmd.Channel, fmt.Sprintf("@%s %s is disabled", cmd.Username, name), protocol.ErrDisabled)
		return
	}
	if privilegedCommands[name] && !privileged {
		g.status(cmd.Channel, fmt.Sprintf("@%s %s is mod-only", cmd.Username, name), protocol.ErrNoPermission)
		return
	}

	now := g.now()

	// The holder's own non-session command implicitly closes the session
	// without applying cooldown.
	if g.lock != nil && g.lock.Holder == key && !sessionCommands[name] {
		g.closeSession(false)
	}

	// 2. Origin-aware global cooldown; chat only, skipped for privileged.
	if !privileged && cmd.Origin == protocol.OriginChat {
		ch := sanitizeKeyPart(cmd.Channel)
		if last, ok := g.lastGlobal[ch]; ok && now.Sub(last) < g.globalCooldown {
			return // silent: a busy chat should not be spammed with cooldown notices
		}
	}

	// 3. Interaction-lock conflict.
	if sessionCommands[name] {
		if remaining, held := g.lockHeldByOther(key); held {
			mode := ModeStore
			if name == "inventory" {
				mode = ModeInventory
			}
			p := g.ensurePlayer(cmd.Channel, cmd.Username)
			g.rejectLocked(p, mode, remaining)
			return
		}
	}

	// 4. Per-player cooldown.
	if !privileged {
		if last, ok := g.lastCommand[key]; ok && now.Sub(last) < g.playerCooldown {
			wait := g.playerCooldown - now.Sub(last)
			g.status(cmd.Channel,
				fmt.Sprintf("@%s on cooldown for %ds", cmd.Username, int(wait.Round(time.Second)/time.Second)),
				protocol.ErrCooldown)
			return
		}
	}

	// 5. Origin restriction.
	if panelOnlyCommands[name] && cmd.Origin != protocol.OriginPanel {
		g.status(cmd.Channel, fmt.Sprintf("@%s %s is only available from the panel", cmd.Username, name), protocol.ErrOrigin)
		return
	}

	// 6. Dispatch.
	p := g.ensurePlayer(cmd.Channel, cmd.Username)
	g.route(name, p, cmd)

	if !privileged {
		if cmd.Origin == protocol.OriginChat {
			g.lastGlobal[sanitizeKeyPart(cmd.Channel)] = now
		}
		g.lastCommand[key] = now
	}
}

func (g *Game) route(name string, p *PlayerRecord, cmd protocol.Command) {
	switch name {
	case "cast":
		g.handleCast(p)
	case "reel":
		g.handleReel(p)
	case "store":
		g.handleStore(p)
	case "store-refresh":
		g.handleStoreRefresh(p)
	case "buy":
		g.handleBuy(p, cmd.Args)
	case "upgrades":
		g.handleUpgrades(p)
	case "sell":
		g.handleSell(p, cmd.Args)
	case "use":
		g.handleUse(p, cmd.Args)
	case "inventory":
		g.handleInventory(p)
	case "save":
		g.handleSave(p)
	case "equip":
		g.handleEquip(p, cmd.Args)
	case "enchant":
		g.handleEnchant(p, cmd.Args)
	case "duplicate":
		g.handleDuplicate(p, cmd.Args)
	case "level":
		g.handleLevel(p)
	case "theme":
		g.handleTheme(p, cmd.Args)
	case "event":
		g.handleEvent(p, cmd.Args)
	case "cooldown":
		g.handleCooldown(p, cmd.Args, false)
	case "gcooldown":
		g.handleCooldown(p, cmd.Args, true)
	case "reset-profile":
		g.handleResetProfile(p, cmd.Args)
	case "panel":
		g.handlePanel(p)
	case "craft":
		g.handleCraft(p, cmd.Args)
	case "trade":
		g.handleTrade(p, cmd.Args)
	case "prestige":
		g.handlePrestige(p)
	}
}

// SetCommandEnabled toggles a command at runtime (chat-command configuration).
func (g *Game) SetCommandEnabled(name string, enabled bool) {
	g.disabled[strings.ToLower(name)] = !enabled
}
