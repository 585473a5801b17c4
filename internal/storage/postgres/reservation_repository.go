package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository создаёт PostgreSQL-реализацию ReservationRepository.
func NewReservationRepository(store *Store) domain.ReservationRepository {
	return &reservationRepository{db: store.DB()}
}

// Create сохраняет бронирование. Exclusion-ограничение по
// (customer_id, tstzrange(start_at, end_at)) — последний рубеж против
// гонки двух конкурентных запросов на один и тот же слот.
func (r *reservationRepository) Create(reservation domain.Reservation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (
			id, customer_id, start_at, end_at, party_size, status, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		reservation.ID, reservation.CustomerID,
		reservation.StartAt, reservation.EndAt,
		reservation.PartySize, string(reservation.Status), reservation.Notes,
		reservation.CreatedAt, reservation.UpdatedAt,
	)
	if err != nil {
		switch {
		case isExclusionViolation(err):
			return domain.ErrOverlappingReservation
		case isReferentialViolation(err):
			return domain.ErrInvalidCustomer
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

func (r *reservationRepository) Get(id string) (domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	reservation, err := r.scanReservation(r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, start_at, end_at, party_size, status, notes, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}

	return reservation, nil
}

func (r *reservationRepository) List(filter domain.ReservationFilter) ([]domain.Reservation, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	where, args := buildReservationFilter(filter)

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, customer_id, start_at, end_at, party_size, status, notes, created_at, updated_at
		FROM reservations
		%s
		ORDER BY start_at DESC, id DESC
		OFFSET $%d
	`, where, len(args)+1)
	args = append(args, maxInt(filter.Page.Skip, 0))
	if filter.Page.Take > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Page.Take)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		reservation, err := r.scanReservation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reservation rows: %w", err)
	}

	return reservations, total, nil
}

// FindOverlapping ищет активные брони клиента, пересекающиеся с
// полуоткрытым интервалом [startAt, endAt). Брони встык не считаются
// пересечением.
func (r *reservationRepository) FindOverlapping(customerID string, startAt, endAt time.Time) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, start_at, end_at, party_size, status, notes, created_at, updated_at
		FROM reservations
		WHERE customer_id = $1
		  AND status IN ('PENDING', 'CONFIRMED')
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at ASC, id ASC
	`, customerID, startAt, endAt)
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		reservation, err := r.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}

	return reservations, nil
}

func (r *reservationRepository) scanReservation(row rowScanner) (domain.Reservation, error) {
	var (
		reservation domain.Reservation
		status      string
	)
	err := row.Scan(
		&reservation.ID, &reservation.CustomerID,
		&reservation.StartAt, &reservation.EndAt,
		&reservation.PartySize, &status, &reservation.Notes,
		&reservation.CreatedAt, &reservation.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	reservation.Status = domain.ReservationStatus(status)
	return reservation, nil
}

func buildReservationFilter(filter domain.ReservationFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.DateFrom != nil {
		add("start_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("end_at <= $%d", *filter.DateTo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	where := "WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}

var _ domain.ReservationRepository = (*reservationRepository)(nil)
