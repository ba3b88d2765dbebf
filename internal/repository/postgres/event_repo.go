package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventcheckin/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{DB: db}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, title, description, location, status, start_date, end_date, registration_deadline, created_at
		FROM events
		WHERE id = $1
	`
	ev := &domain.Event{}
	var deadline sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Status,
		&ev.StartDate, &ev.EndDate, &deadline, &ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	ev.RegistrationDeadline = nullTimeUTC(deadline)
	ev.StartDate = ev.StartDate.UTC()
	ev.EndDate = ev.EndDate.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}
