package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"reeltide.gg/internal/protocol"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
	ListingExpired   ListingStatus = "expired"
)

// TradeListing holds an item snapshot while listed; the item leaves the
// seller's inventory for the lifetime of the listing. Status transitions
// are one-way.
type TradeListing struct {
	ID         string        `json:"id"`
	Seller     string        `json:"seller"` // scoped key
	SellerName string        `json:"seller_name"`
	Item       Item          `json:"item"`
	Price      int           `json:"price"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Status     ListingStatus `json:"status"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
}

// TradeBoard is the per-channel source of truth for listings.
type TradeBoard struct {
	Channel  string          `json:"channel"`
	Listings []*TradeListing `json:"listings"`
}

func (g *Game) board(channel string) *TradeBoard {
	ch := sanitizeKeyPart(channel)
	if b, ok := g.boards[ch]; ok {
		return b
	}
	b := &TradeBoard{Channel: ch}
	if g.store != nil {
		if data, ok, err := g.store.LoadBoard(ch); err != nil {
			g.log.Printf("load board %s: %v", ch, err)
		} else if ok {
			if err := json.Unmarshal(data, b); err != nil {
				g.log.Printf("decode board %s: %v", ch, err)
				b = &TradeBoard{Channel: ch}
			}
		}
	}
	g.boards[ch] = b
	g.seedListingCounter(b)
	return b
}

// seedListingCounter keeps the id counter ahead of every listing already on a
// loaded board. Ids must stay unique across restarts; findListing resolves by
// id alone.
func (g *Game) seedListingCounter(b *TradeBoard) {
	for _, l := range b.Listings {
		var n uint64
		if _, err := fmt.Sscanf(l.ID, "L%d", &n); err == nil && n > g.nextListingNum {
			g.nextListingNum = n
		}
	}
}

func (g *Game) persistBoard(b *TradeBoard) {
	if g.store == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		g.log.Printf("encode board %s: %v", b.Channel, err)
		return
	}
	g.store.SaveBoard(b.Channel, data)
}

// expireListings marks overdue active listings expired. Expired items are
// forfeit; the board TTL is generous and sellers are warned up front.
func (g *Game) expireListings(b *TradeBoard) {
	now := g.now()
	changed := false
	for _, l := range b.Listings {
		if l.Status == ListingActive && !l.ExpiresAt.After(now) {
			l.Status = ListingExpired
			l.ResolvedAt = now
			changed = true
		}
	}
	if changed {
		g.persistBoard(b)
	}
}

// pruneBoard trims the board past the size threshold, keeping active
// listings and the most recently resolved entries.
func (g *Game) pruneBoard(b *TradeBoard) {
	if len(b.Listings) <= g.tune.BoardMaxEntries {
		return
	}
	var active, resolved []*TradeListing
	for _, l := range b.Listings {
		if l.Status == ListingActive {
			active = append(active, l)
		} else {
			resolved = append(resolved, l)
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ResolvedAt.After(resolved[j].ResolvedAt) })
	keep := g.tune.BoardMaxEntries - len(active)
	if keep < 0 {
		keep = 0
	}
	if len(resolved) > keep {
		resolved = resolved[:keep]
	}
	b.Listings = append(active, resolved...)
}

func (g *Game) handleTrade(p *PlayerRecord, args []string) {
	if !p.TradingUnlocked {
		g.status(p.Channel, fmt.Sprintf("@%s trading unlocks at prestige 2", p.Username), protocol.ErrFeatureLocked)
		return
	}
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s trade list|buy|cancel|board", p.Username), protocol.ErrBadRequest)
		return
	}
	b := g.board(p.Channel)
	g.expireListings(b)

	switch strings.ToLower(args[0]) {
	case "list":
		g.tradeList(p, b, args[1:])
	case "buy":
		g.tradeBuy(p, b, args[1:])
	case "cancel":
		g.tradeCancel(p, b, args[1:])
	case "board":
		g.tradeBoardView(p, b)
	default:
		g.status(p.Channel, fmt.Sprintf("@%s trade list|buy|cancel|board", p.Username), protocol.ErrBadRequest)
	}
}

func (g *Game) tradeList(p *PlayerRecord, b *TradeBoard, args []string) {
	if len(args) < 2 {
		g.status(p.Channel, fmt.Sprintf("@%s trade list <slot> <price>", p.Username), protocol.ErrBadRequest)
		return
	}
	slot, err1 := strconv.Atoi(args[0])
	price, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || price <= 0 {
		g.status(p.Channel, fmt.Sprintf("@%s trade list <slot> <price>", p.Username), protocol.ErrBadRequest)
		return
	}
	item, ok := p.removeItem(slot - 1)
	if !ok {
		g.status(p.Channel, fmt.Sprintf("@%s no item in slot %d", p.Username, slot), protocol.ErrBadRequest)
		return
	}
	g.nextListingNum++
	now := g.now()
	l := &TradeListing{
		ID:         fmt.Sprintf("L%06d", g.nextListingNum),
		Seller:     p.Key,
		SellerName: p.Username,
		Item:       item,
		Price:      price,
		CreatedAt:  now,
		ExpiresAt:  now.Add(g.tune.ListingTTL()),
		Status:     ListingActive,
	}
	b.Listings = append(b.Listings, l)
	g.pruneBoard(b)
	g.persistBoard(b)
	g.persist(p)
	g.status(p.Channel, fmt.Sprintf("@%s listed %s for %d gold (%s)", p.Username, item.Name, price, l.ID), "")
	g.writeAudit(AuditEntry{At: now, Key: p.Key, Action: "trade_list", Item: item.Name, Gold: price, Detail: l.ID})
}

// tradeBuy validates buyer funds and capacity fully, then mutates both
// records and the board. The two-record mutation is not transactional; a
// persistence failure afterwards is logged, not rolled back.
func (g *Game) tradeBuy(p *PlayerRecord, b *TradeBoard, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s trade buy <id>", p.Username), protocol.ErrBadRequest)
		return
	}
	l := findListing(b, args[0])
	if l == nil || l.Status != ListingActive {
		g.status(p.Channel, fmt.Sprintf("@%s listing %s is not available", p.Username, args[0]), protocol.ErrUnknownItem)
		return
	}
	if l.Seller == p.Key {
		g.status(p.Channel, fmt.Sprintf("@%s that is your own listing", p.Username), protocol.ErrBadRequest)
		return
	}
	if p.Gold < l.Price {
		g.status(p.Channel, fmt.Sprintf("@%s not enough gold (%d needed)", p.Username, l.Price), protocol.ErrNoGold)
		return
	}
	if p.bagFull() {
		g.status(p.Channel, fmt.Sprintf("@%s your bag is full", p.Username), protocol.ErrBagFull)
		return
	}

	seller := g.playerByKey(l.Seller)
	p.Gold -= l.Price
	if seller != nil {
		seller.Gold += l.Price
	}
	p.Inventory = append(p.Inventory, l.Item)
	l.Status = ListingSold
	l.ResolvedAt = g.now()

	g.persist(p)
	if seller != nil {
		g.persist(seller)
	}
	g.persistBoard(b)
	g.status(p.Channel, fmt.Sprintf("@%s bought %s from %s for %d gold", p.Username, l.Item.Name, l.SellerName, l.Price), "")
	g.writeAudit(AuditEntry{At: g.now(), Key: p.Key, Action: "trade_buy", Item: l.Item.Name, Gold: l.Price, Detail: l.ID})
}

func (g *Game) tradeCancel(p *PlayerRecord, b *TradeBoard, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s trade cancel <id>", p.Username), protocol.ErrBadRequest)
		return
	}
	l := findListing(b, args[0])
	if l == nil || l.Status != ListingActive {
		g.status(p.Channel, fmt.Sprintf("@%s listing %s is not available", p.Username, args[0]), protocol.ErrUnknownItem)
		return
	}
	if l.Seller != p.Key {
		g.status(p.Channel, fmt.Sprintf("@%s only the seller can cancel a listing", p.Username), protocol.ErrNoPermission)
		return
	}
	l.Status = ListingCancelled
	l.ResolvedAt = g.now()
	if p.bagFull() {
		// No room to return the item: refund its gold value instead.
		p.Gold += l.Item.Value
		g.status(p.Channel, fmt.Sprintf("@%s bag full, refunded %d gold for %s", p.Username, l.Item.Value, l.Item.Name), "")
	} else {
		p.Inventory = append(p.Inventory, l.Item)
		g.status(p.Channel, fmt.Sprintf("@%s cancelled %s, %s returned", p.Username, l.ID, l.Item.Name), "")
	}
	g.persist(p)
	g.persistBoard(b)
}

func (g *Game) tradeBoardView(p *PlayerRecord, b *TradeBoard) {
	lines := 0
	for _, l := range b.Listings {
		if l.Status != ListingActive {
			continue
		}
		g.emit(p.Channel, protocol.Event{
			"type": protocol.TypeLog,
			"line": fmt.Sprintf("%s: %s - %d gold (by %s)", l.ID, l.Item.Name, l.Price, l.SellerName),
		})
		lines++
	}
	if lines == 0 {
		g.status(p.Channel, "the trading board is empty", "")
	}
}

func findListing(b *TradeBoard, id string) *TradeListing {
	for _, l := range b.Listings {
		if strings.EqualFold(l.ID, id) {
			return l
		}
	}
	return nil
}

// playerByKey returns an already-loaded record or loads it from storage.
// Used for the seller side of a trade purchase.
func (g *Game) playerByKey(key string) *PlayerRecord {
	if p, ok := g.players[key]; ok {
		return p
	}
	if g.store == nil {
		return nil
	}
	data, ok, err := g.store.LoadPlayer(key)
	if err != nil || !ok {
		return nil
	}
	p := &PlayerRecord{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil
	}
	if p.Materials == nil {
		p.Materials = map[string]int{}
	}
	if p.Essences == nil {
		p.Essences = map[string]int{}
	}
	g.players[key] = p
	return p
}
