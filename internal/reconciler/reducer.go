package reconciler

import (
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

// codeBanned matches the rejection class the coordinator uses for banned users.
const codeBanned = "banned"

// Reduce applies one coordinator event to the mirror and returns the result.
// It has no side effects. A delta naming an identity the mirror does not
// know about adds that identity first.
func Reduce(m Mirror, ev dtos.Event) Mirror {
	m = m.clone()

	switch e := ev.(type) {
	case dtos.SnapshotEvent:
		m.SessionID = e.SessionID
		m.HostID = e.HostID
		m.Status = e.Status
		m.Pending = ""
		m.Members = make([]Member, 0, len(e.Participants))
		for _, p := range e.Participants {
			m.Members = append(m.Members, memberFrom(p))
		}
		m.Hands = append([]uuid.UUID(nil), e.RaisedHands...)
		m.Connection = ConnectionSynced
		m.Removed = false
		m.Refused = ""
		m.LastError = ""

	case dtos.StateChangedEvent:
		m.Status = e.Status
		// Pending survives a stale step it can still follow, and yields to
		// its own confirmation or to any outcome that rules it out.
		if m.Pending != "" && !models.CanTransition(e.Status, m.Pending) {
			m.Pending = ""
		}
		if e.Status.IsTerminal() {
			m.Hands = nil
		}

	case dtos.UserJoinedEvent:
		m.upsert(memberFrom(e.Participant))

	case dtos.UserLeftEvent:
		m.drop(e.UserID)

	case dtos.UserRemovedEvent:
		m.drop(e.UserID)
		if e.UserID == m.Self {
			m.Removed = true
		}

	case dtos.HandRaisedEvent:
		m.ensure(e.UserID)
		if !m.HandRaised(e.UserID) {
			m.Hands = append(m.Hands, e.UserID)
		}

	case dtos.HandLoweredEvent:
		m.ensure(e.UserID)
		m.lowerHand(e.UserID)

	case dtos.SpeakerApprovedEvent:
		// approval is authoritative for queue removal
		mem := m.ensure(e.UserID)
		mem.CanSpeak = true
		mem.Muted = false
		m.lowerHand(e.UserID)

	case dtos.SpeakerRevokedEvent:
		mem := m.ensure(e.UserID)
		mem.CanSpeak = mem.IsHost || mem.IsCoHost

	case dtos.CohostPromotedEvent:
		mem := m.ensure(e.UserID)
		mem.IsCoHost = true
		mem.CanSpeak = true
		mem.Muted = false
		m.lowerHand(e.UserID)

	case dtos.CohostDemotedEvent:
		// canSpeak stays until an explicit speaker_revoked
		mem := m.ensure(e.UserID)
		mem.IsCoHost = false

	case dtos.UserMutedEvent:
		mem := m.ensure(e.UserID)
		mem.Muted = true

	case dtos.ValidationErrorEvent:
		m.LastError = e.Code
		if e.Intent == dtos.IntentStart || e.Intent == dtos.IntentEnd {
			m.Pending = ""
		}
		// any refused join is final for this connection
		if e.Intent == dtos.IntentJoin {
			m.Refused = e.Code
			m.Removed = e.Code == codeBanned
		}

	case dtos.PongEvent:
	}
	return m
}

// BeginTransition records the host's optimistic start or end.
func BeginTransition(m Mirror, next models.WorkshopStatus) Mirror {
	m = m.clone()
	m.Pending = next
	return m
}

// WithConnection moves the transport state. Leaving synced marks the
// mirror stale until the next snapshot.
func WithConnection(m Mirror, state ConnectionState) Mirror {
	m = m.clone()
	m.Connection = state
	return m
}

func WithMedia(m Mirror, state MediaState) Mirror {
	m = m.clone()
	m.Media = state
	return m
}

// ClearMute drops a member's mute flag once the local client has acted on it.
func ClearMute(m Mirror, userID uuid.UUID) Mirror {
	m = m.clone()
	if i := m.index(userID); i >= 0 {
		m.Members[i].Muted = false
	}
	return m
}

func memberFrom(p dtos.Participant) Member {
	return Member{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		IsHost:      p.IsHost,
		IsCoHost:    p.IsCoHost,
		CanSpeak:    p.CanSpeak,
	}
}

func (m *Mirror) index(userID uuid.UUID) int {
	for i := range m.Members {
		if m.Members[i].UserID == userID {
			return i
		}
	}
	return -1
}

// ensure returns the member, adding a bare entry for an unknown identity.
func (m *Mirror) ensure(userID uuid.UUID) *Member {
	if i := m.index(userID); i >= 0 {
		return &m.Members[i]
	}
	m.Members = append(m.Members, Member{UserID: userID, IsHost: userID == m.HostID})
	return &m.Members[len(m.Members)-1]
}

func (m *Mirror) upsert(mem Member) {
	if i := m.index(mem.UserID); i >= 0 {
		m.Members[i] = mem
		return
	}
	m.Members = append(m.Members, mem)
}

func (m *Mirror) drop(userID uuid.UUID) {
	if i := m.index(userID); i >= 0 {
		m.Members = append(m.Members[:i], m.Members[i+1:]...)
	}
	m.lowerHand(userID)
}

func (m *Mirror) lowerHand(userID uuid.UUID) {
	for i, id := range m.Hands {
		if id == userID {
			m.Hands = append(m.Hands[:i], m.Hands[i+1:]...)
			return
		}
	}
}
