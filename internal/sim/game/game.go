package game

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/catalogs"
	"reeltide.gg/internal/sim/tuning"
)

// Broadcaster is the outbound event sink. Implemented by the websocket hub;
// tests substitute a recorder.
type Broadcaster interface {
	Broadcast(channel string, ev protocol.Event)
	BroadcastAll(ev protocol.Event)
}

// RecordStore persists player snapshots and trade boards. Save calls are
// fire-and-forget (queued); Flush is synchronous for the explicit save
// command. A nil store disables persistence (tests).
type RecordStore interface {
	LoadPlayer(key string) ([]byte, bool, error)
	SavePlayer(key, channel, username string, data []byte)
	FlushPlayer(key, channel, username string, data []byte) error
	DeletePlayer(key string) error
	LoadBoard(channel string) ([]byte, bool, error)
	SaveBoard(channel string, data []byte)
}

// AuditLogger records catches, trades and resets. May be nil.
type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// AuditEntry is one JSONL audit line.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Key    string    `json:"key"`
	Action string    `json:"action"`
	Item   string    `json:"item,omitempty"`
	Gold   int       `json:"gold,omitempty"`
	XP     int       `json:"xp,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

type Config struct {
	Tune  tuning.Tuning
	Seed  int64
	Clock Clock
}

// Game owns all session state: player records, the timer scheduler, the
// single interaction lock, global events and the store rotation cache. All
// mutation happens on the Run goroutine; command handlers and timer
// callbacks for the same key only ever interleave, never overlap.
type Game struct {
	tune  tuning.Tuning
	cats  *catalogs.Catalogs
	store RecordStore
	audit AuditLogger
	sink  Broadcaster
	log   *log.Logger

	sched *Scheduler
	rng   *rand.Rand

	players map[string]*PlayerRecord
	boards  map[string]*TradeBoard

	lock *InteractionLock

	events       map[string]*GlobalEvent
	nextEventNum uint64

	nextBuffNum    uint64
	nextListingNum uint64

	rotation     *StoreRotation
	rotationSalt uint64
	refreshAt    map[string]time.Time

	playerCooldown time.Duration
	globalCooldown time.Duration
	lastGlobal     map[string]time.Time // channel -> last accepted chat command
	lastCommand    map[string]time.Time // scoped key -> last accepted command

	themes   map[string]string // channel -> overlay theme
	disabled map[string]bool   // command name -> disabled

	inbox chan protocol.Command
	fires chan func()

	commands atomic.Uint64
}

// Metrics is a point-in-time operational snapshot, safe to read from any
// goroutine.
type Metrics struct {
	Commands   uint64
	InboxDepth int
	FiresDepth int
}

func (g *Game) Metrics() Metrics {
	return Metrics{
		Commands:   g.commands.Load(),
		InboxDepth: len(g.inbox),
		FiresDepth: len(g.fires),
	}
}

func New(cfg Config, cats *catalogs.Catalogs, store RecordStore, audit AuditLogger, sink Broadcaster, logger *log.Logger) *Game {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = cfg.Clock.Now().UnixNano()
	}
	if logger == nil {
		logger = log.Default()
	}
	g := &Game{
		tune:    cfg.Tune,
		cats:    cats,
		store:   store,
		audit:   audit,
		sink:    sink,
		log:     logger,
		rng:     rand.New(rand.NewSource(seed)),
		players: map[string]*PlayerRecord{},
		boards:  map[string]*TradeBoard{},
		events:  map[string]*GlobalEvent{},

		refreshAt:   map[string]time.Time{},
		lastGlobal:  map[string]time.Time{},
		lastCommand: map[string]time.Time{},
		themes:      map[string]string{},
		disabled:    map[string]bool{},

		playerCooldown: time.Duration(cfg.Tune.PlayerCooldownSec) * time.Second,
		globalCooldown: time.Duration(cfg.Tune.GlobalCooldownSec) * time.Second,

		inbox: make(chan protocol.Command, 256),
		fires: make(chan func(), 256),
	}
	g.sched = NewScheduler(cfg.Clock, func(f func()) { g.fires <- f })
	return g
}

// newTestGame wires the scheduler to run timer callbacks inline, matching
// the single-threaded interleaving the loop provides in production.
func newTestGame(cfg Config, cats *catalogs.Catalogs, store RecordStore, sink Broadcaster) *Game {
	g := New(cfg, cats, store, nil, sink, nil)
	g.sched = NewScheduler(cfg.Clock, func(f func()) { f() })
	return g
}

// Inbox accepts normalized commands from the transports.
func (g *Game) Inbox() chan<- protocol.Command { return g.inbox }

// Run is the single mutation goroutine. Commands and timer fires are
// processed to completion one at a time.
func (g *Game) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			g.flushAll()
			return ctx.Err()
		case cmd := <-g.inbox:
			g.Dispatch(cmd)
		case f := <-g.fires:
			f()
		}
	}
}

func (g *Game) now() time.Time { return g.sched.Now() }

func (g *Game) emit(channel string, ev protocol.Event) {
	if g.sink != nil {
		g.sink.Broadcast(channel, ev)
	}
}

func (g *Game) emitAll(ev protocol.Event) {
	if g.sink != nil {
		g.sink.BroadcastAll(ev)
	}
}

func (g *Game) status(channel, text, code string) {
	if !protocol.IsKnownCode(code) {
		// Panels key off the code set; never leak an unregistered one.
		g.log.Printf("unknown status code %q", code)
		code = protocol.ErrInternal
	}
	ev := protocol.Event{"type": protocol.TypeStatus, "text": text}
	if code != "" {
		ev["code"] = code
	}
	g.emit(channel, ev)
}

// ensurePlayer loads or creates the record for a scoped key.
func (g *Game) ensurePlayer(channel, username string) *PlayerRecord {
	key := ScopedKey(channel, username)
	if p, ok := g.players[key]; ok {
		return p
	}
	if g.store != nil {
		data, ok, err := g.store.LoadPlayer(key)
		if err != nil {
			g.log.Printf("load player %s: %v", key, err)
		} else if ok {
			p := &PlayerRecord{}
			if err := json.Unmarshal(data, p); err != nil {
				g.log.Printf("decode player %s: %v", key, err)
			} else {
				if p.Materials == nil {
					p.Materials = map[string]int{}
				}
				if p.Essences == nil {
					p.Essences = map[string]int{}
				}
				g.players[key] = p
				return p
			}
		}
	}
	p := g.newPlayer(key, channel, username)
	g.players[key] = p
	return p
}

// persist queues an asynchronous write of the record.
func (g *Game) persist(p *PlayerRecord) {
	if g.store == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		g.log.Printf("encode player %s: %v", p.Key, err)
		return
	}
	g.store.SavePlayer(p.Key, p.Channel, p.Username, data)
}

// flush writes the record synchronously, returning any persistence error.
func (g *Game) flush(p *PlayerRecord) error {
	if g.store == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return g.store.FlushPlayer(p.Key, p.Channel, p.Username, data)
}

func (g *Game) flushAll() {
	for _, p := range g.players {
		if err := g.flush(p); err != nil {
			g.log.Printf("flush player %s: %v", p.Key, err)
		}
	}
	for _, b := range g.boards {
		g.persistBoard(b)
	}
}

func (g *Game) writeAudit(e AuditEntry) {
	if g.audit == nil {
		return
	}
	if err := g.audit.WriteAudit(e); err != nil {
		g.log.Printf("audit: %v", err)
	}
}
