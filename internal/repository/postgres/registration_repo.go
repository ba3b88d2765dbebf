package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventcheckin/internal/domain"

	"github.com/lib/pq"
)

const registrationColumns = `id, event_id, full_name, email, phone, age, heard_about,
	wants_future_notifications, submitted_at, status, qr_code, checked_in_at`

type registrationRepository struct {
	DB *sql.DB
}

func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var qrCode sql.NullString
	var checkedInAt sql.NullTime
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.FullName, &reg.Email, &reg.Phone, &reg.Age, &reg.HeardAbout,
		&reg.WantsFutureNotifications, &reg.SubmittedAt, &reg.Status, &qrCode, &checkedInAt,
	)
	if err != nil {
		return nil, err
	}
	reg.SubmittedAt = reg.SubmittedAt.UTC()
	reg.QRCode = qrCode.String
	reg.CheckedInAt = nullTimeUTC(checkedInAt)
	return reg, nil
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (event_id, full_name, email, phone, age, heard_about,
			wants_future_notifications, submitted_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		reg.EventID, reg.FullName, reg.Email, reg.Phone, reg.Age, reg.HeardAbout,
		reg.WantsFutureNotifications, reg.SubmittedAt, string(reg.Status),
	).Scan(&reg.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRegistration
		}
		return err
	}
	return nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByEventAndEmail(ctx context.Context, eventID, email string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND email = $2`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, eventID, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

// filterClause renders the WHERE body for an event-scoped filter. args[0] is eventID.
func filterClause(eventID string, f domain.RegistrationFilter) (string, []any) {
	clauses := []string{"event_id = $1"}
	args := []any{eventID}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CheckedIn != nil {
		if *f.CheckedIn {
			clauses = append(clauses, "checked_in_at IS NOT NULL")
		} else {
			clauses = append(clauses, "checked_in_at IS NULL")
		}
	}
	return strings.Join(clauses, " AND "), args
}

func (r *registrationRepository) ListByEvent(ctx context.Context, eventID string, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, error) {
	where, args := filterClause(eventID, filter)
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE ` + where +
		` ORDER BY submitted_at DESC, id DESC`
	if page.Paged() {
		args = append(args, page.PageSize, page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := []*domain.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *registrationRepository) CountByEvent(ctx context.Context, eventID string, filter domain.RegistrationFilter) (int, error) {
	where, args := filterClause(eventID, filter)
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE `+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountsByEvent reads all counters in one statement so they describe the same snapshot.
func (r *registrationRepository) CountsByEvent(ctx context.Context, eventID string) (*domain.AttendanceCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(checked_in_at)
		FROM registrations
		WHERE event_id = $1
	`
	c := &domain.AttendanceCounts{}
	err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&c.Total, &c.Pending, &c.Approved, &c.Rejected, &c.CheckedIn)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func statusArray(statuses []domain.RegistrationStatus) any {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func (r *registrationRepository) SetApproved(ctx context.Context, id, qrCode string) (*domain.Registration, error) {
	query := `
		UPDATE registrations SET status = $2, qr_code = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING ` + registrationColumns
	row := r.DB.QueryRowContext(ctx, query, id, string(domain.StatusApproved), qrCode,
		statusArray(domain.SourceStatuses(domain.TransitionApprove)))
	return r.finishTransition(ctx, id, domain.TransitionApprove, row)
}

func (r *registrationRepository) SetRejected(ctx context.Context, id string) (*domain.Registration, error) {
	query := `
		UPDATE registrations SET status = $2
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + registrationColumns
	row := r.DB.QueryRowContext(ctx, query, id, string(domain.StatusRejected),
		statusArray(domain.SourceStatuses(domain.TransitionReject)))
	return r.finishTransition(ctx, id, domain.TransitionReject, row)
}

// finishTransition scans the updated row. When the guarded UPDATE matched
// nothing it re-reads the row to report why.
func (r *registrationRepository) finishTransition(ctx context.Context, id string, t domain.Transition, row rowScanner) (*domain.Registration, error) {
	reg, err := scanRegistration(row)
	if err == nil {
		return reg, nil
	}
	if isInvalidUUID(err) {
		return nil, domain.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := domain.NextStatus(current.Status, t); err != nil {
		return nil, err
	}
	return nil, domain.ErrInvalidTransition
}

func (r *registrationRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time) (*domain.Registration, error) {
	query := `
		UPDATE registrations SET checked_in_at = $2
		WHERE id = $1 AND status = 'approved' AND checked_in_at IS NULL
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id, at))
	if err == nil {
		return reg, nil
	}
	if isInvalidUUID(err) {
		return nil, domain.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckInAllowed(current); err != nil {
		return nil, err
	}
	return nil, domain.ErrAlreadyCheckedIn
}
