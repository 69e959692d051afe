package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

type WorkshopRepository struct {
	db *sql.DB
}

func NewWorkshopRepository(db *sql.DB) *WorkshopRepository {
	return &WorkshopRepository{db: db}
}

const workshopColumns = `
		id,
		title,
		description,
		category,
		host_id,
		series_id,
		scheduled_start,
		duration_minutes,
		capacity,
		is_private,
		room_id,
		status,
		started_at,
		ended_at,
		cancel_reason,
		recording_url,
		created_at,
		updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkshop(row rowScanner) (*models.Workshop, error) {
	var w models.Workshop
	err := row.Scan(
		&w.ID,
		&w.Title,
		&w.Description,
		&w.Category,
		&w.HostID,
		&w.SeriesID,
		&w.ScheduledStart,
		&w.DurationMinutes,
		&w.Capacity,
		&w.IsPrivate,
		&w.RoomID,
		&w.Status,
		&w.StartedAt,
		&w.EndedAt,
		&w.CancelReason,
		&w.RecordingURL,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkshopRepository) queryWorkshops(ctx context.Context, query string, args ...any) ([]*models.Workshop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Workshop
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWorkshop inserts a scheduled workshop. A second instance of the same
// series at the same instant returns ErrDuplicate.
func (r *WorkshopRepository) CreateWorkshop(ctx context.Context, w *models.Workshop) error {
	const query = `
	INSERT INTO workshops (
		id,
		title,
		description,
		category,
		host_id,
		series_id,
		scheduled_start,
		duration_minutes,
		capacity,
		is_private,
		room_id,
		status,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		w.ID,
		w.Title,
		w.Description,
		w.Category,
		w.HostID,
		w.SeriesID,
		w.ScheduledStart,
		w.DurationMinutes,
		w.Capacity,
		w.IsPrivate,
		w.RoomID,
		w.Status,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *WorkshopRepository) GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	query := `SELECT` + workshopColumns + `
	FROM workshops
	WHERE id = $1
	`

	w, err := scanWorkshop(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWorkshopStatus moves a workshop from expected to next in one
// conditional write. It returns ErrStatusConflict when the row was no longer
// in the expected status.
func (r *WorkshopRepository) UpdateWorkshopStatus(ctx context.Context, id uuid.UUID, expected, next models.WorkshopStatus, update models.StatusUpdate) error {
	const query = `
	UPDATE workshops
	SET
		status = $1,
		started_at = COALESCE($2, started_at),
		ended_at = COALESCE($3, ended_at),
		cancel_reason = COALESCE($4, cancel_reason),
		recording_url = COALESCE($5, recording_url),
		updated_at = NOW()
	WHERE id = $6 AND status = $7
	`

	res, err := r.db.ExecContext(ctx, query,
		next,
		update.StartedAt,
		update.EndedAt,
		update.CancelReason,
		update.RecordingURL,
		id,
		expected,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM workshops WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

// ListScheduledStartingBetween returns scheduled workshops with from <= start < to.
func (r *WorkshopRepository) ListScheduledStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Workshop, error) {
	query := `SELECT` + workshopColumns + `
	FROM workshops
	WHERE status = $1 AND scheduled_start >= $2 AND scheduled_start < $3
	ORDER BY scheduled_start
	`
	return r.queryWorkshops(ctx, query, models.WorkshopStatusScheduled, from, to)
}

// ListOverdueScheduled returns workshops still scheduled whose start is before cutoff.
func (r *WorkshopRepository) ListOverdueScheduled(ctx context.Context, cutoff time.Time) ([]*models.Workshop, error) {
	query := `SELECT` + workshopColumns + `
	FROM workshops
	WHERE status = $1 AND scheduled_start < $2
	ORDER BY scheduled_start
	`
	return r.queryWorkshops(ctx, query, models.WorkshopStatusScheduled, cutoff)
}

// FindLatestInstance returns the series instance with the latest start.
func (r *WorkshopRepository) FindLatestInstance(ctx context.Context, seriesID uuid.UUID) (*models.Workshop, error) {
	query := `SELECT` + workshopColumns + `
	FROM workshops
	WHERE series_id = $1
	ORDER BY scheduled_start DESC
	LIMIT 1
	`

	w, err := scanWorkshop(r.db.QueryRowContext(ctx, query, seriesID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ListInstanceStarts returns the start instants already materialized for a series in [from, to).
func (r *WorkshopRepository) ListInstanceStarts(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	const query = `
	SELECT scheduled_start
	FROM workshops
	WHERE series_id = $1 AND scheduled_start >= $2 AND scheduled_start < $3
	`

	rows, err := r.db.QueryContext(ctx, query, seriesID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddRSVP records an active RSVP. Repeating it is not an error.
func (r *WorkshopRepository) AddRSVP(ctx context.Context, workshopID, userID uuid.UUID) error {
	const query = `
	INSERT INTO workshop_rsvps (workshop_id, user_id, created_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (workshop_id, user_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, workshopID, userID)
	return err
}

func (r *WorkshopRepository) RemoveRSVP(ctx context.Context, workshopID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workshop_rsvps WHERE workshop_id = $1 AND user_id = $2`, workshopID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WorkshopRepository) HasRSVP(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM workshop_rsvps WHERE workshop_id = $1 AND user_id = $2
	)
	`

	var ok bool
	err := r.db.QueryRowContext(ctx, query, workshopID, userID).Scan(&ok)
	return ok, err
}

func (r *WorkshopRepository) ListRSVPedAttendees(ctx context.Context, workshopID uuid.UUID) ([]uuid.UUID, error) {
	const query = `
	SELECT user_id
	FROM workshop_rsvps
	WHERE workshop_id = $1
	ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RecordBan stores a durable ban and withdraws the user's RSVP.
func (r *WorkshopRepository) RecordBan(ctx context.Context, ban models.WorkshopBan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insert = `
	INSERT INTO workshop_bans (workshop_id, user_id, banned_by, reason, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (workshop_id, user_id) DO UPDATE SET reason = EXCLUDED.reason
	`
	if _, err := tx.ExecContext(ctx, insert, ban.WorkshopID, ban.UserID, ban.BannedBy, ban.Reason, ban.CreatedAt); err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM workshop_rsvps WHERE workshop_id = $1 AND user_id = $2`, ban.WorkshopID, ban.UserID); err != nil {
		return fmt.Errorf("withdraw rsvp: %w", err)
	}
	return tx.Commit()
}

func (r *WorkshopRepository) IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM workshop_bans WHERE workshop_id = $1 AND user_id = $2
	)
	`

	var banned bool
	err := r.db.QueryRowContext(ctx, query, workshopID, userID).Scan(&banned)
	return banned, err
}
