package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

func makeStoredReservation(id, customerID string, startHour, endHour int) domain.Reservation {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	return domain.Reservation{
		ID:         id,
		CustomerID: customerID,
		StartAt:    day.Add(time.Duration(startHour) * time.Hour),
		EndAt:      day.Add(time.Duration(endHour) * time.Hour),
		PartySize:  1,
		Status:     domain.ReservationStatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestReservationRepository_CreateEnforcesExclusion(t *testing.T) {
	customers := memory.NewCustomerRepository()
	seedCustomer(t, customers, "customer-1")
	repo := memory.NewReservationRepository(customers)

	if err := repo.Create(makeStoredReservation("res-1", "customer-1", 10, 11)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Пересечение активного интервала того же клиента отбивается хранилищем.
	err := repo.Create(makeStoredReservation("res-2", "customer-1", 10, 12))
	if !errors.Is(err, domain.ErrOverlappingReservation) {
		t.Fatalf("expected ErrOverlappingReservation, got %v", err)
	}

	// Встык — не пересечение.
	if err := repo.Create(makeStoredReservation("res-3", "customer-1", 11, 12)); err != nil {
		t.Fatalf("back-to-back create: %v", err)
	}

	// Отменённая бронь календарь не занимает.
	cancelled := makeStoredReservation("res-4", "customer-1", 14, 15)
	cancelled.Status = domain.ReservationStatusCancelled
	if err := repo.Create(cancelled); err != nil {
		t.Fatalf("cancelled create: %v", err)
	}
	if err := repo.Create(makeStoredReservation("res-5", "customer-1", 14, 15)); err != nil {
		t.Fatalf("create over cancelled: %v", err)
	}
}

func TestReservationRepository_CreateRejectsUnknownCustomer(t *testing.T) {
	repo := memory.NewReservationRepository(memory.NewCustomerRepository())

	err := repo.Create(makeStoredReservation("res-1", "ghost", 10, 11))
	if !errors.Is(err, domain.ErrInvalidCustomer) {
		t.Fatalf("expected ErrInvalidCustomer, got %v", err)
	}
}

func TestReservationRepository_FindOverlapping(t *testing.T) {
	customers := memory.NewCustomerRepository()
	seedCustomer(t, customers, "customer-1")
	seedCustomer(t, customers, "customer-2")
	repo := memory.NewReservationRepository(customers)

	if err := repo.Create(makeStoredReservation("res-1", "customer-1", 10, 11)); err != nil {
		t.Fatalf("create: %v", err)
	}

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	overlapping, err := repo.FindOverlapping("customer-1", day.Add(10*time.Hour+30*time.Minute), day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(overlapping) != 1 {
		t.Fatalf("expected one overlap, got %d", len(overlapping))
	}

	// Другой клиент тот же интервал занимает свободно.
	overlapping, err = repo.FindOverlapping("customer-2", day.Add(10*time.Hour), day.Add(11*time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(overlapping) != 0 {
		t.Fatalf("expected no overlaps for another customer, got %d", len(overlapping))
	}
}
