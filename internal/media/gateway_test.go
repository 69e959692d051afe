package media

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGateway_IssueCredential(t *testing.T) {
	g, err := NewGateway(Config{URL: "wss://media.example.com", APIKey: "key", APISecret: "secret", TokenTTL: 5 * time.Minute})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	sessionID, userID := uuid.New(), uuid.New()
	cred, err := g.IssueCredential(sessionID, userID, RoomIDFor(sessionID), RoleListener)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !cred.ExpiresAt.Equal(fixed.Add(5 * time.Minute)) {
		t.Errorf("unexpected expiry %v", cred.ExpiresAt)
	}

	claims := &credentialClaims{}
	_, err = jwt.ParseWithClaims(cred.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != userID.String() || claims.Issuer != "key" {
		t.Errorf("unexpected registered claims %+v", claims.RegisteredClaims)
	}
	if claims.Video.Room != cred.RoomID || claims.Video.CanPublish || !claims.Video.CanSubscribe {
		t.Errorf("listener grant is wrong: %+v", claims.Video)
	}
}

func TestGateway_PublishRights(t *testing.T) {
	tests := []struct {
		role    Role
		publish bool
	}{
		{RoleHost, true},
		{RoleCoHost, true},
		{RoleSpeaker, true},
		{RoleListener, false},
	}
	for _, tt := range tests {
		if tt.role.CanPublish() != tt.publish {
			t.Errorf("%s: expected publish=%v", tt.role, tt.publish)
		}
	}
}

func TestGateway_Validation(t *testing.T) {
	if _, err := NewGateway(Config{}); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
	g, _ := NewGateway(Config{APISecret: "secret"})
	if _, err := g.IssueCredential(uuid.New(), uuid.New(), "", RoleHost); !errors.Is(err, ErrInvalidGrant) {
		t.Errorf("expected ErrInvalidGrant, got %v", err)
	}
}

func TestRoomIDFor_IsStableAndDistinct(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if RoomIDFor(a) != RoomIDFor(a) {
		t.Error("room id must be deterministic")
	}
	if RoomIDFor(a) == RoomIDFor(b) {
		t.Error("distinct sessions must not share a room")
	}
}
