package media

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrMissingSecret = errors.New("media api secret is required")
	ErrInvalidGrant  = errors.New("invalid media grant")
)

// Role decides what the credential allows inside the media room.
type Role string

const (
	RoleHost     Role = "host"
	RoleCoHost   Role = "cohost"
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

func (r Role) CanPublish() bool {
	return r == RoleHost || r == RoleCoHost || r == RoleSpeaker
}

type Config struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// VideoGrant is the room-scoped permission block of a media token.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
	RoomAdmin    bool   `json:"roomAdmin,omitempty"`
}

type credentialClaims struct {
	Video VideoGrant `json:"video"`
	Role  Role       `json:"role"`
	jwt.RegisteredClaims
}

// Credential is a short-lived token for the third-party media service.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	RoomID    string
	URL       string
	Role      Role
}

// Gateway signs media credentials locally with the shared API secret.
type Gateway struct {
	cfg Config
	now func() time.Time
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.APISecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 10 * time.Minute
	}
	return &Gateway{cfg: cfg, now: time.Now}, nil
}

// IssueCredential returns a credential for one user in one session room.
// Callers must have confirmed the role against the coordinator first.
func (g *Gateway) IssueCredential(sessionID, userID uuid.UUID, roomID string, role Role) (Credential, error) {
	if sessionID == uuid.Nil || userID == uuid.Nil || roomID == "" {
		return Credential{}, ErrInvalidGrant
	}
	now := g.now()
	expires := now.Add(g.cfg.TokenTTL)
	claims := credentialClaims{
		Video: VideoGrant{
			Room:         roomID,
			RoomJoin:     true,
			CanPublish:   role.CanPublish(),
			CanSubscribe: true,
			RoomAdmin:    role == RoleHost || role == RoleCoHost,
		},
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.cfg.APIKey,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.APISecret))
	if err != nil {
		return Credential{}, fmt.Errorf("sign media credential: %w", err)
	}
	return Credential{
		Token:     token,
		ExpiresAt: expires,
		RoomID:    roomID,
		URL:       g.cfg.URL,
		Role:      role,
	}, nil
}

// RoomIDFor derives the media room identifier from a session's own id, so a
// room is never shared between sessions.
func RoomIDFor(sessionID uuid.UUID) string {
	sum := blake2b.Sum256(sessionID[:])
	return "ws-" + hex.EncodeToString(sum[:12])
}
