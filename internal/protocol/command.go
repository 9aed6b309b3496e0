package protocol

// Origin identifies where an inbound command came from. Some commands are
// only permitted from the authenticated panel.
type Origin int

const (
	OriginChat Origin = iota
	OriginPanel
)

func (o Origin) String() string {
	if o == OriginPanel {
		return "panel"
	}
	return "chat"
}

// Command is the normalized inbound envelope produced by the chat transport
// or the panel HTTP layer before it reaches the dispatcher.
type Command struct {
	Username    string   `json:"username"`
	Channel     string   `json:"channel"`
	Name        string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Mod         bool     `json:"mod,omitempty"`
	Broadcaster bool     `json:"broadcaster,omitempty"`
	Origin      Origin   `json:"-"`
}

// CommandMsg is the wire shape the chat transport delivers over websocket.
type CommandMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	Username        string   `json:"username"`
	Channel         string   `json:"channel"`
	Command         string   `json:"command"`
	Args            []string `json:"args,omitempty"`
	Mod             bool     `json:"mod,omitempty"`
	Broadcaster     bool     `json:"broadcaster,omitempty"`
}

const TypeCommand = "COMMAND"
