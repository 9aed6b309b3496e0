package protocol

// HelloMsg subscribes a websocket connection to a channel's event stream.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Channel         string `json:"channel"`
}

const TypeHello = "HELLO"
