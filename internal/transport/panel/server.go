package panel

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"reeltide.gg/internal/protocol"
)

// panelEnv holds raw env values before post-parse validation.
type panelEnv struct {
	Secret string `env:"REELTIDE_PANEL_SECRET"`
	Issuer string `env:"REELTIDE_PANEL_ISSUER" envDefault:"reeltide"`
}

// Config defines how panel tokens are verified.
type Config struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

// LoadConfigFromEnv reads panel token verification configuration. The secret
// may be raw or base64.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw panelEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse panel env: %w", err)
	}
	secret := strings.TrimSpace(raw.Secret)
	if secret == "" {
		return Config{}, fmt.Errorf("REELTIDE_PANEL_SECRET is required")
	}
	key := []byte(secret)
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) >= 16 {
		key = decoded
	}
	if now == nil {
		now = time.Now
	}
	return Config{Issuer: strings.TrimSpace(raw.Issuer), Secret: key, Now: now}, nil
}

// Claims carries the viewer identity the panel frontend was issued.
type Claims struct {
	jwt.RegisteredClaims
	Username    string `json:"username"`
	Channel     string `json:"channel"`
	Mod         bool   `json:"mod,omitempty"`
	Broadcaster bool   `json:"broadcaster,omitempty"`
}

// IssueToken signs a panel token. Used by the token minting endpoint of the
// hosting service and by tests.
func IssueToken(cfg Config, username, channel string, mod, broadcaster bool, ttl time.Duration) (string, error) {
	now := cfg.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:    username,
		Channel:     channel,
		Mod:         mod,
		Broadcaster: broadcaster,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// verifyToken parses and validates a bearer token.
func verifyToken(cfg Config, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, errors.New("token is required")
	}
	var parsed Claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return cfg.Now() }),
	)
	if err != nil {
		return Claims{}, err
	}
	if cfg.Issuer != "" && parsed.Issuer != cfg.Issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if strings.TrimSpace(parsed.Username) == "" || strings.TrimSpace(parsed.Channel) == "" {
		return Claims{}, errors.New("token missing identity")
	}
	return parsed, nil
}

// commandRequest is the POST body for /panel/command.
type commandRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Server accepts authenticated panel commands over HTTP and feeds them to
// the engine inbox. Identity comes from the token, never the body.
type Server struct {
	cfg   Config
	inbox chan<- protocol.Command
	log   *log.Logger
}

func NewServer(cfg Config, inbox chan<- protocol.Command, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg, inbox: inbox, log: logger}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST only")
			return
		}
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := verifyToken(s.cfg, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body")
			return
		}
		if strings.TrimSpace(req.Command) == "" {
			writeError(w, http.StatusBadRequest, "command is required")
			return
		}

		id := uuid.NewString()
		s.inbox <- protocol.Command{
			Username:    claims.Username,
			Channel:     claims.Channel,
			Name:        req.Command,
			Args:        req.Args,
			Mod:         claims.Mod,
			Broadcaster: claims.Broadcaster,
			Origin:      protocol.OriginPanel,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true, "requestId": id})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": false, "error": msg})
}
