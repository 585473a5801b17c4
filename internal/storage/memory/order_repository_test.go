package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

func seedCustomer(t *testing.T, repo domain.CustomerRepository, id string) {
	t.Helper()
	err := repo.Create(domain.Customer{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "customer " + id,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func makeStoredOrder(customerID string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		CustomerID:    customerID,
		Status:        domain.OrderStatusOpen,
		SubtotalCents: 1000,
		TaxRate:       0.21,
		TaxCents:      210,
		TotalCents:    1210,
		CurrencyCode:  "EUR",
		Items: []domain.OrderItem{
			{ID: "item-1", OrderID: "order-1", ProductID: "product-1", Qty: 2, UnitCents: 500, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	customers := memory.NewCustomerRepository()
	seedCustomer(t, customers, "customer-1")
	repo := memory.NewOrderRepository(customers)

	order := makeStoredOrder("customer-1")
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].UnitCents != 500 {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestOrderRepository_CreateRejectsUnknownCustomer(t *testing.T) {
	customers := memory.NewCustomerRepository()
	repo := memory.NewOrderRepository(customers)

	err := repo.Create(makeStoredOrder("ghost"))
	if !errors.Is(err, domain.ErrInvalidCustomerOrProduct) {
		t.Fatalf("expected ErrInvalidCustomerOrProduct, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	customers := memory.NewCustomerRepository()
	seedCustomer(t, customers, "customer-1")
	repo := memory.NewOrderRepository(customers)

	order := makeStoredOrder("customer-1")
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	order.Status = domain.OrderStatusPaid
	if err := repo.Save(order); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Повторное сохранение со старой версией должно конфликтовать.
	order.Status = domain.OrderStatusCancelled
	if err := repo.Save(order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ListFilters(t *testing.T) {
	customers := memory.NewCustomerRepository()
	seedCustomer(t, customers, "customer-1")
	seedCustomer(t, customers, "customer-2")
	repo := memory.NewOrderRepository(customers)

	first := makeStoredOrder("customer-1")
	second := makeStoredOrder("customer-2")
	second.ID = "order-2"
	second.Status = domain.OrderStatusPaid
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	got, total, err := repo.List(domain.OrderFilter{CustomerID: "customer-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != "order-1" {
		t.Fatalf("unexpected customer filter result: total=%d items=%+v", total, got)
	}

	got, total, err = repo.List(domain.OrderFilter{Status: domain.OrderStatusPaid})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || got[0].ID != "order-2" {
		t.Fatalf("unexpected status filter result: total=%d items=%+v", total, got)
	}
}
