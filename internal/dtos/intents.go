package dtos

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IntentType names an action a client asks the coordinator to perform.
type IntentType string

const (
	IntentJoin           IntentType = "join"
	IntentLeave          IntentType = "leave"
	IntentRaiseHand      IntentType = "raise_hand"
	IntentLowerHand      IntentType = "lower_hand"
	IntentApproveSpeaker IntentType = "approve_speaker"
	IntentRevokeSpeaker  IntentType = "revoke_speaker"
	IntentPromoteCohost  IntentType = "promote_cohost"
	IntentDemoteCohost   IntentType = "demote_cohost"
	IntentMuteUser       IntentType = "mute_user"
	IntentRemoveUser     IntentType = "remove_user"
	IntentBanUser        IntentType = "ban_user"
	IntentStart          IntentType = "start"
	IntentEnd            IntentType = "end"
	IntentCancel         IntentType = "cancel"
	IntentPing           IntentType = "ping"
)

// Targeted reports whether the intent acts on another attendee.
func (t IntentType) Targeted() bool {
	switch t {
	case IntentApproveSpeaker, IntentRevokeSpeaker, IntentPromoteCohost, IntentDemoteCohost,
		IntentMuteUser, IntentRemoveUser, IntentBanUser:
		return true
	}
	return false
}

// IntentPayload is shared by every intent; unused fields stay empty.
type IntentPayload struct {
	Target       *uuid.UUID `json:"target,omitempty"`
	Reason       string     `json:"reason,omitempty" validate:"max=500"`
	DisplayName  string     `json:"display_name,omitempty" validate:"max=80"`
	AvatarURL    string     `json:"avatar_url,omitempty" validate:"omitempty,url"`
	RecordingURL string     `json:"recording_url,omitempty" validate:"omitempty,url"`
}

type Intent struct {
	Type    IntentType    `json:"type" validate:"required,oneof=join leave raise_hand lower_hand approve_speaker revoke_speaker promote_cohost demote_cohost mute_user remove_user ban_user start end cancel ping"`
	Payload IntentPayload `json:"payload"`
}

var intentValidator = validator.New()

// DecodeIntent parses and validates an inbound frame.
func DecodeIntent(env Envelope) (Intent, error) {
	intent := Intent{Type: IntentType(env.Type)}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, &intent.Payload); err != nil {
			return Intent{}, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
		}
	}
	if err := intentValidator.Struct(intent); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	if intent.Type.Targeted() && (intent.Payload.Target == nil || *intent.Payload.Target == uuid.Nil) {
		return Intent{}, fmt.Errorf("%w: %s requires a target", ErrInvalidIntent, intent.Type)
	}
	return intent, nil
}

// EncodeIntent is the client-side counterpart of DecodeIntent.
func EncodeIntent(intent Intent) (Envelope, error) {
	return MarshalEnvelope(string(intent.Type), intent.Payload)
}
