package domain

import "time"

// ReservationStatus отражает статус бронирования временного слота.
type ReservationStatus string

const (
	// ReservationStatusPending — бронирование создано, но не подтверждено.
	ReservationStatusPending ReservationStatus = "PENDING"
	// ReservationStatusConfirmed — бронирование подтверждено.
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	// ReservationStatusCancelled — бронирование отменено и слот освобождён.
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCancelled:
		return true
	default:
		return false
	}
}

// Reservation описывает бронирование временного интервала клиентом.
// Интервал полуоткрытый: [StartAt, EndAt).
type Reservation struct {
	ID         string
	CustomerID string
	StartAt    time.Time
	EndAt      time.Time
	// PartySize — размер группы, всегда > 0 (по умолчанию 1).
	PartySize int32
	Status    ReservationStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active сообщает, занимает ли бронирование календарь клиента.
// Отменённые брони в проверке пересечений не участвуют.
func (r *Reservation) Active() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusConfirmed
}

// Overlaps проверяет пересечение с кандидатным интервалом [startAt, endAt).
// Полуоткрытая семантика: брони встык (EndAt == startAt) не пересекаются.
func (r *Reservation) Overlaps(startAt, endAt time.Time) bool {
	return r.StartAt.Before(endAt) && r.EndAt.After(startAt)
}

// Validate проверяет, корректно ли заполнены ключевые поля бронирования.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if !r.StartAt.Before(r.EndAt) {
		errs = append(errs, ErrStartAfterEnd)
	}
	if r.PartySize <= 0 {
		errs = append(errs, ErrPartySizeInvalid)
	}
	if !r.Status.Valid() {
		errs = append(errs, ErrReservationStatusInvalid)
	}

	return errs
}
