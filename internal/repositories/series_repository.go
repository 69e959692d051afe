package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

type SeriesRepository struct {
	db *sql.DB
}

func NewSeriesRepository(db *sql.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

func (r *SeriesRepository) CreateSeries(ctx context.Context, s *models.Series) error {
	const query = `
	INSERT INTO workshop_series (
		id,
		host_id,
		title,
		description,
		category,
		duration_minutes,
		capacity,
		is_private,
		frequency,
		interval_value,
		weekdays,
		time_of_day,
		timezone,
		starts_on,
		ends_on,
		active,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	weekdays := make([]int64, len(s.Weekdays))
	for i, d := range s.Weekdays {
		weekdays[i] = int64(d)
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		s.ID,
		s.HostID,
		s.Title,
		s.Description,
		s.Category,
		s.DurationMinutes,
		s.Capacity,
		s.IsPrivate,
		s.Frequency,
		s.Interval,
		pq.Array(weekdays),
		s.TimeOfDay,
		s.Timezone,
		s.StartsOn,
		s.EndsOn,
		s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// ListActiveSeries returns every series still materializing instances.
func (r *SeriesRepository) ListActiveSeries(ctx context.Context) ([]*models.Series, error) {
	const query = `
	SELECT
		id,
		host_id,
		title,
		description,
		category,
		duration_minutes,
		capacity,
		is_private,
		frequency,
		interval_value,
		weekdays,
		time_of_day,
		timezone,
		starts_on,
		ends_on,
		active,
		created_at,
		updated_at
	FROM workshop_series
	WHERE active = TRUE
	ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Series
	for rows.Next() {
		var s models.Series
		var weekdays []int64
		err := rows.Scan(
			&s.ID,
			&s.HostID,
			&s.Title,
			&s.Description,
			&s.Category,
			&s.DurationMinutes,
			&s.Capacity,
			&s.IsPrivate,
			&s.Frequency,
			&s.Interval,
			pq.Array(&weekdays),
			&s.TimeOfDay,
			&s.Timezone,
			&s.StartsOn,
			&s.EndsOn,
			&s.Active,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		s.Weekdays = make([]time.Weekday, len(weekdays))
		for i, d := range weekdays {
			s.Weekdays[i] = time.Weekday(d)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
