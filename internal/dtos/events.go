package dtos

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

// EventType names an event broadcast by the coordinator.
type EventType string

const (
	EventSnapshot        EventType = "snapshot"
	EventStateChanged    EventType = "state_changed"
	EventUserJoined      EventType = "user_joined"
	EventUserLeft        EventType = "user_left"
	EventUserRemoved     EventType = "user_removed"
	EventHandRaised      EventType = "hand_raised"
	EventHandLowered     EventType = "hand_lowered"
	EventSpeakerApproved EventType = "speaker_approved"
	EventSpeakerRevoked  EventType = "speaker_revoked"
	EventCohostPromoted  EventType = "cohost_promoted"
	EventCohostDemoted   EventType = "cohost_demoted"
	EventUserMuted       EventType = "user_muted"
	EventValidationError EventType = "validation_error"
	EventPong            EventType = "pong"
)

// Event is the closed set of coordinator events. Every variant lives in this file.
type Event interface {
	Type() EventType
}

// Participant is the wire form of a roster entry.
type Participant struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsHost      bool      `json:"is_host"`
	IsCoHost    bool      `json:"is_cohost"`
	CanSpeak    bool      `json:"can_speak"`
}

// SnapshotEvent is sent only to a joining connection and replaces its mirror wholesale.
type SnapshotEvent struct {
	SessionID    uuid.UUID             `json:"session_id"`
	HostID       uuid.UUID             `json:"host_id"`
	Status       models.WorkshopStatus `json:"status"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	Participants []Participant         `json:"participants"`
	RaisedHands  []uuid.UUID           `json:"raised_hands"`
	ServerTime   time.Time             `json:"server_time"`
}

type StateChangedEvent struct {
	SessionID uuid.UUID             `json:"session_id"`
	Status    models.WorkshopStatus `json:"status"`
	Previous  models.WorkshopStatus `json:"previous"`
	Reason    string                `json:"reason,omitempty"`
	At        time.Time             `json:"at"`
}

type UserJoinedEvent struct {
	Participant Participant `json:"participant"`
}

type UserLeftEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

type UserRemovedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	By     uuid.UUID `json:"by"`
	Banned bool      `json:"banned"`
	Reason string    `json:"reason,omitempty"`
}

type HandRaisedEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

type HandLoweredEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

type SpeakerApprovedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	By     uuid.UUID `json:"by"`
}

type SpeakerRevokedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	By     uuid.UUID `json:"by"`
}

type CohostPromotedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	By     uuid.UUID `json:"by"`
}

// CohostDemotedEvent reports the speaking right left after demotion.
type CohostDemotedEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	By       uuid.UUID `json:"by"`
	CanSpeak bool      `json:"can_speak"`
}

type UserMutedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	By     uuid.UUID `json:"by"`
}

// ValidationErrorEvent goes only to the connection whose intent was rejected.
type ValidationErrorEvent struct {
	Intent  IntentType `json:"intent"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

type PongEvent struct{}

func (SnapshotEvent) Type() EventType        { return EventSnapshot }
func (StateChangedEvent) Type() EventType    { return EventStateChanged }
func (UserJoinedEvent) Type() EventType      { return EventUserJoined }
func (UserLeftEvent) Type() EventType        { return EventUserLeft }
func (UserRemovedEvent) Type() EventType     { return EventUserRemoved }
func (HandRaisedEvent) Type() EventType      { return EventHandRaised }
func (HandLoweredEvent) Type() EventType     { return EventHandLowered }
func (SpeakerApprovedEvent) Type() EventType { return EventSpeakerApproved }
func (SpeakerRevokedEvent) Type() EventType  { return EventSpeakerRevoked }
func (CohostPromotedEvent) Type() EventType  { return EventCohostPromoted }
func (CohostDemotedEvent) Type() EventType   { return EventCohostDemoted }
func (UserMutedEvent) Type() EventType       { return EventUserMuted }
func (ValidationErrorEvent) Type() EventType { return EventValidationError }
func (PongEvent) Type() EventType            { return EventPong }

// EncodeEvent wraps an event in the standard envelope.
func EncodeEvent(ev Event) (Envelope, error) {
	return MarshalEnvelope(string(ev.Type()), ev)
}

// DecodeEvent turns an envelope back into its typed variant.
func DecodeEvent(env Envelope) (Event, error) {
	switch EventType(env.Type) {
	case EventSnapshot:
		return decodeEvent[SnapshotEvent](env.Payload)
	case EventStateChanged:
		return decodeEvent[StateChangedEvent](env.Payload)
	case EventUserJoined:
		return decodeEvent[UserJoinedEvent](env.Payload)
	case EventUserLeft:
		return decodeEvent[UserLeftEvent](env.Payload)
	case EventUserRemoved:
		return decodeEvent[UserRemovedEvent](env.Payload)
	case EventHandRaised:
		return decodeEvent[HandRaisedEvent](env.Payload)
	case EventHandLowered:
		return decodeEvent[HandLoweredEvent](env.Payload)
	case EventSpeakerApproved:
		return decodeEvent[SpeakerApprovedEvent](env.Payload)
	case EventSpeakerRevoked:
		return decodeEvent[SpeakerRevokedEvent](env.Payload)
	case EventCohostPromoted:
		return decodeEvent[CohostPromotedEvent](env.Payload)
	case EventCohostDemoted:
		return decodeEvent[CohostDemotedEvent](env.Payload)
	case EventUserMuted:
		return decodeEvent[UserMutedEvent](env.Payload)
	case EventValidationError:
		return decodeEvent[ValidationErrorEvent](env.Payload)
	case EventPong:
		return PongEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func decodeEvent[T Event](payload json.RawMessage) (Event, error) {
	var ev T
	if len(payload) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Type(), err)
	}
	return ev, nil
}
