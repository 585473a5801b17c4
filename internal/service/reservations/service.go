// Package reservations реализует контроль допуска бронирований:
// проверку пересечений интервалов в календаре клиента и создание брони.
package reservations

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// EventReservationCreated публикуется через outbox при создании брони.
const (
	EventReservationCreated = "reservation.created"

	aggregateReservation = "reservation"
)

// DefaultPartySize применяется, когда размер группы не указан.
const DefaultPartySize = 1

// CreateInput — входные данные бронирования. PartySize и Status уже
// нормализованы на входной границе (нулевые значения здесь не ожидаются).
type CreateInput struct {
	CustomerID string
	StartAt    time.Time
	EndAt      time.Time
	PartySize  int32
	Status     domain.ReservationStatus
	Notes      string
}

// Service выполняет проверку пересечений и запись бронирований.
type Service struct {
	reservations domain.ReservationRepository
	outbox       domain.OutboxRepository
	logger       *log.Entry

	// locks сериализует check-then-insert по клиенту: два конкурентных
	// запроса на пересекающиеся окна одного клиента не могут оба пройти
	// проверку до вставки. Вторая линия обороны — exclusion-ограничение
	// в хранилище.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService конструирует сервис бронирований.
func NewService(reservations domain.ReservationRepository, outbox domain.OutboxRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "reservation-service")
	}
	return &Service{
		reservations: reservations,
		outbox:       outbox,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Create проверяет интервал кандидата против активных броней клиента
// и создаёт бронь, если пересечений нет.
func (s *Service) Create(_ context.Context, in CreateInput) (domain.Reservation, error) {
	now := time.Now().UTC()
	reservation := domain.Reservation{
		ID:         uuid.NewString(),
		CustomerID: in.CustomerID,
		StartAt:    in.StartAt,
		EndAt:      in.EndAt,
		PartySize:  in.PartySize,
		Status:     in.Status,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if reservation.PartySize == 0 {
		reservation.PartySize = DefaultPartySize
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationStatusPending
	}

	if errs := reservation.Validate(); len(errs) > 0 {
		return domain.Reservation{}, errs[0]
	}

	unlock := s.lockCustomer(in.CustomerID)
	defer unlock()

	overlapping, err := s.reservations.FindOverlapping(in.CustomerID, in.StartAt, in.EndAt)
	if err != nil {
		return domain.Reservation{}, err
	}
	if len(overlapping) > 0 {
		return domain.Reservation{}, domain.ErrOverlappingReservation
	}

	if err := s.reservations.Create(reservation); err != nil {
		return domain.Reservation{}, err
	}

	s.enqueueEvent(reservation)

	s.logger.WithFields(log.Fields{
		"reservation_id": reservation.ID,
		"customer_id":    reservation.CustomerID,
		"start_at":       reservation.StartAt,
		"end_at":         reservation.EndAt,
	}).Info("reservation created")

	return reservation, nil
}

// Get возвращает бронирование по идентификатору.
func (s *Service) Get(_ context.Context, id string) (domain.Reservation, error) {
	return s.reservations.Get(id)
}

// List возвращает страницу бронирований по фильтру.
func (s *Service) List(_ context.Context, filter domain.ReservationFilter) ([]domain.Reservation, int, error) {
	return s.reservations.List(filter)
}

// lockCustomer берёт мьютекс календаря клиента на время check-then-insert.
func (s *Service) lockCustomer(customerID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[customerID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[customerID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// reservationEvent — payload события бронирования для внешних потребителей.
type reservationEvent struct {
	ReservationID string                   `json:"reservation_id"`
	CustomerID    string                   `json:"customer_id"`
	StartAt       time.Time                `json:"start_at"`
	EndAt         time.Time                `json:"end_at"`
	PartySize     int32                    `json:"party_size"`
	Status        domain.ReservationStatus `json:"status"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

func (s *Service) enqueueEvent(reservation domain.Reservation) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(reservationEvent{
		ReservationID: reservation.ID,
		CustomerID:    reservation.CustomerID,
		StartAt:       reservation.StartAt,
		EndAt:         reservation.EndAt,
		PartySize:     reservation.PartySize,
		Status:        reservation.Status,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal reservation event")
		return
	}

	_, err = s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateReservation,
		AggregateID:   reservation.ID,
		EventType:     EventReservationCreated,
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithField("reservation_id", reservation.ID).Warn("failed to enqueue outbox event")
	}
}
