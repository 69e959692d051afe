package workshop

import (
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
)

// Entry is one connected attendee. Host and co-host imply speaking, but an
// explicit speaker grant is tracked separately so demotion can tell them apart.
type Entry struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	DisplayName  string
	AvatarURL    string
	JoinedAt     time.Time

	IsHost         bool
	IsCoHost       bool
	SpeakerGranted bool
}

func (e *Entry) CanSpeak() bool {
	return e.IsHost || e.IsCoHost || e.SpeakerGranted
}

func (e *Entry) CanModerate() bool {
	return e.IsHost || e.IsCoHost
}

func (e *Entry) Participant() dtos.Participant {
	return dtos.Participant{
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
		AvatarURL:   e.AvatarURL,
		IsHost:      e.IsHost,
		IsCoHost:    e.IsCoHost,
		CanSpeak:    e.CanSpeak(),
	}
}

// handQueue is an ordered set: FIFO for display, removable from anywhere.
type handQueue struct {
	order []uuid.UUID
	index map[uuid.UUID]struct{}
}

func newHandQueue() handQueue {
	return handQueue{index: make(map[uuid.UUID]struct{})}
}

func (q *handQueue) has(userID uuid.UUID) bool {
	_, ok := q.index[userID]
	return ok
}

func (q *handQueue) push(userID uuid.UUID) bool {
	if q.has(userID) {
		return false
	}
	q.index[userID] = struct{}{}
	q.order = append(q.order, userID)
	return true
}

func (q *handQueue) remove(userID uuid.UUID) bool {
	if !q.has(userID) {
		return false
	}
	delete(q.index, userID)
	for i, id := range q.order {
		if id == userID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *handQueue) list() []uuid.UUID {
	out := make([]uuid.UUID, len(q.order))
	copy(out, q.order)
	return out
}

// Roster is the in-memory view of one session. It is owned by a single
// coordinator goroutine and is not safe for concurrent use.
type Roster struct {
	hostID  uuid.UUID
	entries map[uuid.UUID]*Entry
	order   []uuid.UUID
	hands   handQueue
}

func NewRoster(hostID uuid.UUID) *Roster {
	return &Roster{
		hostID:  hostID,
		entries: make(map[uuid.UUID]*Entry),
		hands:   newHandQueue(),
	}
}

// Upsert adds an entry or replaces the one held for the same identity.
// The host facet is always derived from the session's host.
func (r *Roster) Upsert(entry *Entry) (previous *Entry) {
	entry.IsHost = entry.UserID == r.hostID
	previous = r.entries[entry.UserID]
	if previous == nil {
		r.order = append(r.order, entry.UserID)
	}
	r.entries[entry.UserID] = entry
	if entry.CanSpeak() {
		r.hands.remove(entry.UserID)
	}
	return previous
}

// Remove drops the entry and any queued hand.
func (r *Roster) Remove(userID uuid.UUID) (*Entry, bool) {
	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.hands.remove(userID)
	return entry, true
}

func (r *Roster) Get(userID uuid.UUID) *Entry {
	return r.entries[userID]
}

func (r *Roster) Len() int {
	return len(r.entries)
}

// Entries returns attendees in join order.
func (r *Roster) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Roster) HandRaised(userID uuid.UUID) bool {
	return r.hands.has(userID)
}

func (r *Roster) RaisedHands() []uuid.UUID {
	return r.hands.list()
}

// RaiseHand queues a non-speaking attendee.
func (r *Roster) RaiseHand(userID uuid.UUID) error {
	entry := r.entries[userID]
	switch {
	case entry == nil:
		return ErrNotOnRoster
	case entry.CanSpeak():
		return ErrAlreadySpeaker
	case !r.hands.push(userID):
		return ErrHandAlreadyRaised
	}
	return nil
}

func (r *Roster) LowerHand(userID uuid.UUID) bool {
	return r.hands.remove(userID)
}

// ApproveSpeaker grants speaking and dequeues in the same step.
func (r *Roster) ApproveSpeaker(userID uuid.UUID) error {
	entry := r.entries[userID]
	if entry == nil {
		return ErrNotOnRoster
	}
	if !r.hands.has(userID) {
		return ErrHandNotRaised
	}
	entry.SpeakerGranted = true
	r.hands.remove(userID)
	return nil
}

// RevokeSpeaker clears an explicit grant. Hosts and co-hosts keep speaking.
func (r *Roster) RevokeSpeaker(userID uuid.UUID) error {
	entry := r.entries[userID]
	switch {
	case entry == nil:
		return ErrNotOnRoster
	case entry.IsHost || entry.IsCoHost:
		return ErrSpeakerIsModerator
	case !entry.SpeakerGranted:
		return ErrNotSpeaker
	}
	entry.SpeakerGranted = false
	return nil
}

func (r *Roster) PromoteCoHost(userID uuid.UUID) error {
	entry := r.entries[userID]
	switch {
	case entry == nil:
		return ErrNotOnRoster
	case entry.IsHost:
		return ErrTargetIsHost
	case entry.IsCoHost:
		return ErrAlreadyCoHost
	}
	entry.IsCoHost = true
	r.hands.remove(userID)
	return nil
}

// DemoteCoHost clears the co-host facet and reports whether the attendee can
// still speak through an explicit grant.
func (r *Roster) DemoteCoHost(userID uuid.UUID) (canSpeak bool, err error) {
	entry := r.entries[userID]
	if entry == nil {
		return false, ErrNotOnRoster
	}
	if !entry.IsCoHost {
		return false, ErrNotCoHost
	}
	entry.IsCoHost = false
	return entry.CanSpeak(), nil
}
