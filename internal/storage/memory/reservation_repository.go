package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// reservationRepositoryInMemory — простая in-memory реализация ReservationRepository.
type reservationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Reservation

	customers domain.CustomerRepository
}

// NewReservationRepository возвращает in-memory репозиторий бронирований.
// customers может быть nil — тогда ссылочная целостность не проверяется.
func NewReservationRepository(customers domain.CustomerRepository) domain.ReservationRepository {
	return &reservationRepositoryInMemory{
		items:     make(map[string]domain.Reservation),
		customers: customers,
	}
}

// Create сохраняет бронирование, повторяя exclusion-ограничение PostgreSQL:
// даже если проверка пересечений в сервисе проскочила, запись с
// конфликтующим интервалом не пройдёт.
func (r *reservationRepositoryInMemory) Create(reservation domain.Reservation) error {
	if r.customers != nil {
		if _, err := r.customers.Get(reservation.CustomerID); err != nil {
			return domain.ErrInvalidCustomer
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reservation.Active() {
		for _, existing := range r.items {
			if existing.CustomerID != reservation.CustomerID || !existing.Active() {
				continue
			}
			if existing.Overlaps(reservation.StartAt, reservation.EndAt) {
				return domain.ErrOverlappingReservation
			}
		}
	}

	r.items[reservation.ID] = reservation
	return nil
}

// Get возвращает бронирование или ErrReservationNotFound.
func (r *reservationRepositoryInMemory) Get(id string) (domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, ok := r.items[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return reservation, nil
}

// List применяет фильтр и возвращает страницу бронирований.
func (r *reservationRepositoryInMemory) List(filter domain.ReservationFilter) ([]domain.Reservation, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Reservation, 0, len(r.items))
	for _, reservation := range r.items {
		if filter.CustomerID != "" && reservation.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && reservation.Status != filter.Status {
			continue
		}
		if filter.DateFrom != nil && reservation.StartAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && reservation.EndAt.After(*filter.DateTo) {
			continue
		}
		result = append(result, reservation)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartAt.Equal(result[j].StartAt) {
			return result[i].StartAt.After(result[j].StartAt)
		}
		return result[i].ID > result[j].ID
	})

	total := len(result)
	return slicePage(result, filter.Page), total, nil
}

// FindOverlapping возвращает активные брони клиента, пересекающиеся
// с полуоткрытым интервалом [startAt, endAt).
func (r *reservationRepositoryInMemory) FindOverlapping(customerID string, startAt, endAt time.Time) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	for _, reservation := range r.items {
		if reservation.CustomerID != customerID || !reservation.Active() {
			continue
		}
		if reservation.Overlaps(startAt, endAt) {
			result = append(result, reservation)
		}
	}
	return result, nil
}

var _ domain.ReservationRepository = (*reservationRepositoryInMemory)(nil)
