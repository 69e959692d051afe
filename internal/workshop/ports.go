package workshop

import (
	"context"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

// Store is the slice of the session store the coordinator needs.
// UpdateWorkshopStatus must be a compare-and-set on the expected status and
// return repositories.ErrStatusConflict when the row has moved on.
type Store interface {
	GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	UpdateWorkshopStatus(ctx context.Context, id uuid.UUID, expected, next models.WorkshopStatus, update models.StatusUpdate) error
	RecordBan(ctx context.Context, ban models.WorkshopBan) error
	IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error)
	HasRSVP(ctx context.Context, workshopID, userID uuid.UUID) (bool, error)
}

// Transport is the pub/sub side of the realtime channel, rooms keyed by session id.
type Transport interface {
	JoinRoom(sessionID, connectionID uuid.UUID) error
	LeaveRoom(sessionID, connectionID uuid.UUID)
	Broadcast(sessionID uuid.UUID, ev dtos.Event)
	SendToConnection(connectionID uuid.UUID, ev dtos.Event) error
	// Disconnect force-closes a connection; its read loop reports the leave.
	Disconnect(connectionID uuid.UUID)
}
