package reservations_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/service/reservations"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func newService(t *testing.T) (*reservations.Service, domain.ReservationRepository) {
	t.Helper()

	customers := memory.NewCustomerRepository()
	require.NoError(t, customers.Create(domain.Customer{
		ID: "customer-x", Email: "x@example.com", Name: "X",
	}))
	require.NoError(t, customers.Create(domain.Customer{
		ID: "customer-y", Email: "y@example.com", Name: "Y",
	}))

	repo := memory.NewReservationRepository(customers)
	return reservations.NewService(repo, memory.NewOutboxRepository(), testLogger()), repo
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newService(t)

	res, err := svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(10, 0),
		EndAt:      at(11, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), res.PartySize)
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.NotEmpty(t, res.ID)
}

func TestCreate_OverlapScenarios(t *testing.T) {
	svc, _ := newService(t)

	// Существующая подтверждённая бронь [10:00, 11:00) клиента X.
	_, err := svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(10, 0),
		EndAt:      at(11, 0),
		Status:     domain.ReservationStatusConfirmed,
	})
	require.NoError(t, err)

	// [10:30, 11:30) того же клиента пересекается.
	_, err = svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(10, 30),
		EndAt:      at(11, 30),
	})
	require.ErrorIs(t, err, domain.ErrOverlappingReservation)

	// [11:00, 12:00) встык — допускается.
	_, err = svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(11, 0),
		EndAt:      at(12, 0),
	})
	require.NoError(t, err)

	// [10:30, 11:30) другого клиента — допускается.
	_, err = svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-y",
		StartAt:    at(10, 30),
		EndAt:      at(11, 30),
	})
	require.NoError(t, err)
}

func TestCreate_RejectsInvertedInterval(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(12, 0),
		EndAt:      at(11, 0),
	})
	require.ErrorIs(t, err, domain.ErrStartAfterEnd)

	_, err = svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "customer-x",
		StartAt:    at(12, 0),
		EndAt:      at(12, 0),
	})
	require.ErrorIs(t, err, domain.ErrStartAfterEnd)
}

func TestCreate_RejectsUnknownCustomer(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), reservations.CreateInput{
		CustomerID: "ghost",
		StartAt:    at(10, 0),
		EndAt:      at(11, 0),
	})
	require.ErrorIs(t, err, domain.ErrInvalidCustomer)
}

// Конкурентные запросы на одно окно одного клиента: ровно один проходит.
func TestCreate_ConcurrentSameWindow(t *testing.T) {
	svc, repo := newService(t)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), reservations.CreateInput{
				CustomerID: "customer-x",
				StartAt:    at(10, 0),
				EndAt:      at(11, 0),
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			require.ErrorIs(t, err, domain.ErrOverlappingReservation)
		}
	}
	assert.Equal(t, 1, created)

	_, total, err := repo.List(domain.ReservationFilter{CustomerID: "customer-x"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
