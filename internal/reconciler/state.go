package reconciler

import (
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionSynced       ConnectionState = "synced"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionOffline      ConnectionState = "offline"
)

type MediaState string

const (
	MediaIdle        MediaState = "idle"
	MediaRequesting  MediaState = "requesting"
	MediaReady       MediaState = "ready"
	MediaUnavailable MediaState = "unavailable"
)

// Member is the client's copy of one roster entry.
type Member struct {
	UserID      uuid.UUID
	DisplayName string
	AvatarURL   string
	IsHost      bool
	IsCoHost    bool
	CanSpeak    bool
	Muted       bool // set by user_muted until acknowledged or re-granted
}

// Mirror is the client-local view of one session. Values are never mutated
// in place; Reduce and the setters return a new Mirror.
type Mirror struct {
	SessionID uuid.UUID
	HostID    uuid.UUID
	Self      uuid.UUID

	// Status is the last confirmed lifecycle state. Pending is an optimistic
	// host start/end awaiting its state_changed.
	Status  models.WorkshopStatus
	Pending models.WorkshopStatus

	Members []Member // join order
	Hands   []uuid.UUID

	Connection ConnectionState
	Media      MediaState

	// Removed is set when this user was removed or banned. Refused holds
	// the code of a join the coordinator turned down.
	Removed   bool
	Refused   string
	LastError string
}

func NewMirror(sessionID, self uuid.UUID) Mirror {
	return Mirror{
		SessionID:  sessionID,
		Self:       self,
		Connection: ConnectionConnecting,
		Media:      MediaIdle,
	}
}

// DisplayStatus is what the UI shows: the pending status while one is in flight.
func (m Mirror) DisplayStatus() models.WorkshopStatus {
	if m.Pending != "" {
		return m.Pending
	}
	return m.Status
}

func (m Mirror) Member(userID uuid.UUID) (Member, bool) {
	for _, mem := range m.Members {
		if mem.UserID == userID {
			return mem, true
		}
	}
	return Member{}, false
}

func (m Mirror) selfCanSpeak() bool {
	self, ok := m.Member(m.Self)
	return ok && self.CanSpeak
}

func (m Mirror) HandRaised(userID uuid.UUID) bool {
	for _, id := range m.Hands {
		if id == userID {
			return true
		}
	}
	return false
}

// Affordances are the controls the UI may enable for the local user.
type Affordances struct {
	RaiseHand     bool
	LowerHand     bool
	Speak         bool
	Moderate      bool // approve/revoke speakers, mute, remove, ban
	ManageCoHosts bool
	Start         bool
	End           bool
	JoinMedia     bool
}

// Affordances derives the local user's controls. Anything that mutates
// roles stays disabled until a snapshot has been applied on this connection.
func (m Mirror) Affordances() Affordances {
	var a Affordances
	if m.Connection != ConnectionSynced || m.Removed || m.Refused != "" {
		return a
	}
	self, ok := m.Member(m.Self)
	if !ok {
		return a
	}
	status := m.DisplayStatus()
	open := !status.IsTerminal()
	queued := m.HandRaised(m.Self)

	a.Speak = open && self.CanSpeak
	a.RaiseHand = open && !self.CanSpeak && !queued
	a.LowerHand = open && queued
	a.Moderate = open && (self.IsHost || self.IsCoHost)
	a.ManageCoHosts = open && self.IsHost
	a.Start = self.IsHost && status.IsPreStart()
	a.End = self.IsHost && status == models.WorkshopStatusLive
	a.JoinMedia = status == models.WorkshopStatusLive && m.Media == MediaReady
	return a
}

func (m Mirror) clone() Mirror {
	m.Members = append([]Member(nil), m.Members...)
	m.Hands = append([]uuid.UUID(nil), m.Hands...)
	return m
}
