package protocol

import "encoding/json"

const Version = "1.0"

// Event is a single outbound broadcast payload. Every event carries a
// "type" discriminator from the fixed vocabulary below.
type Event map[string]any

// Event types.
const (
	TypeStatus    = "status"
	TypeLog       = "log"
	TypeCast      = "cast"
	TypeTug       = "tug"
	TypeCatch     = "catch"
	TypeLevel     = "level"
	TypeStore     = "store"
	TypeInventory = "inventory"
	TypeSell      = "sell"
	TypeSave      = "save"
	TypeTheme     = "theme"
	TypeSkin      = "skin"
	TypeBuffs     = "buffs"
	TypeEvents    = "events"
)

func (e Event) Encode() ([]byte, error) { return json.Marshal(e) }

// BaseMessage lets us route unknown inbound JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
