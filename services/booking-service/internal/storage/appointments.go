package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Gabi10k2/gabibrx/libs/db"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

// queryTimeout bounds every single store call; a slow database surfaces as a
// storage error instead of a hung request.
const queryTimeout = 3 * time.Second

// pgxDB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it in tests.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AppointmentRepository persists appointments in Postgres. Overlap protection
// lives in the schema: a GiST exclusion constraint on tstzrange(start_time,
// end_time) rejects any insert that would double-book, which closes the
// check-then-insert race between concurrent bookers.
type AppointmentRepository struct {
	db pgxDB
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{db: pool}
}

func newAppointmentRepositoryWithDB(db pgxDB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

const appointmentColumns = `id, owner_id, client_name, client_phone, service, price, start_time, end_time, created_at`

// Insert persists the appointment inside the given transaction and fills in
// the store-assigned id and created_at. An exclusion-constraint violation is
// reported through IsConflict.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := tx.QueryRow(ctx, `
		INSERT INTO appointments (owner_id, client_name, client_phone, service, price, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, appt.OwnerID, appt.ClientName, appt.ClientPhone, appt.Service, appt.Price,
		appt.StartTime, appt.EndTime).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return 0, err
	}
	return appt.ID, nil
}

// ListByDay returns appointments starting within [from, to), ascending by start.
func (r *AppointmentRepository) ListByDay(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *AppointmentRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1
		ORDER BY start_time ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// Delete removes the row if present and reports whether anything was removed.
// Deleting a missing id is not an error.
func (r *AppointmentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetOwner returns the owner of the appointment, for authorization before
// deletion. A missing id surfaces through IsNotFound.
func (r *AppointmentRepository) GetOwner(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var owner int64
	err := r.db.QueryRow(ctx, `SELECT owner_id FROM appointments WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return 0, err
	}
	return owner, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.OwnerID,
			&a.ClientName,
			&a.ClientPhone,
			&a.Service,
			&a.Price,
			&a.StartTime,
			&a.EndTime,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// IsConflict reports an exclusion-constraint violation (23P01): the interval
// overlaps an existing appointment.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
