package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reeltide.gg/internal/protocol"
)

// Server is the chat-transport websocket hub. Each connection subscribes to
// one channel with a HELLO, then streams COMMAND messages in and receives
// that channel's event broadcasts out. The hub implements the engine's
// broadcaster interface.
type Server struct {
	inbox chan<- protocol.Command // set before serving; connections drop commands while nil
	log   *log.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]map[*client]struct{} // channel -> clients
}

type client struct {
	out chan []byte
}

func NewServer(inbox chan<- protocol.Command, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		inbox: inbox,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: map[string]map[*client]struct{}{},
	}
}

// SetInbox wires the engine inbox. The hub is constructed before the engine
// because the engine takes the hub as its broadcaster.
func (s *Server) SetInbox(inbox chan<- protocol.Command) { s.inbox = inbox }

// Broadcast sends an event to every connection subscribed to the channel.
// Slow clients are skipped, never waited on.
func (s *Server) Broadcast(channel string, ev protocol.Event) {
	b, err := ev.Encode()
	if err != nil {
		s.log.Printf("ws encode: %v", err)
		return
	}
	ch := normalizeChannel(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns[ch] {
		select {
		case c.out <- b:
		default:
		}
	}
}

// BroadcastAll sends an event to every connection on every channel.
func (s *Server) BroadcastAll(ev protocol.Event) {
	b, err := ev.Encode()
	if err != nil {
		s.log.Printf("ws encode: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, clients := range s.conns {
		for c := range clients {
			select {
			case c.out <- b:
			default:
			}
		}
	}
}

func (s *Server) subscribe(channel string, c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[channel] == nil {
		s.conns[channel] = map[*client]struct{}{}
	}
	s.conns[channel][c] = struct{}{}
}

func (s *Server) unsubscribe(channel string, c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns[channel], c)
	if len(s.conns[channel]) == 0 {
		delete(s.conns, channel)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		channel, c := s.handshake(conn)
		if channel == "" {
			return
		}
		s.subscribe(channel, c)
		defer s.unsubscribe(channel, c)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-c.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeCommand {
				continue
			}
			var cm protocol.CommandMsg
			if err := json.Unmarshal(msg, &cm); err != nil {
				continue
			}
			if cm.ProtocolVersion != "" && cm.ProtocolVersion != protocol.Version {
				continue
			}
			if cm.Username == "" || cm.Command == "" {
				continue
			}
			ch := cm.Channel
			if ch == "" {
				ch = channel
			}
			if s.inbox == nil {
				continue
			}
			s.inbox <- protocol.Command{
				Username:    cm.Username,
				Channel:     ch,
				Name:        cm.Command,
				Args:        cm.Args,
				Mod:         cm.Mod,
				Broadcaster: cm.Broadcaster,
				Origin:      protocol.OriginChat,
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, *client) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != "" && hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return "", nil
	}
	channel := normalizeChannel(hello.Channel)
	if channel == "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing channel"),
			time.Now().Add(time.Second))
		return "", nil
	}
	return channel, &client{out: make(chan []byte, 64)}
}

func normalizeChannel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
