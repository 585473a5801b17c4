package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		CustomerID:    "customer-1",
		Status:        domain.OrderStatusOpen,
		SubtotalCents: 500,
		TaxRate:       0.21,
		TaxCents:      105,
		TotalCents:    605,
		CurrencyCode:  "EUR",
		Items: []domain.OrderItem{
			{
				ID:        "item-1",
				OrderID:   "order-1",
				ProductID: "product-1",
				Qty:       5,
				UnitCents: 100,
				CreatedAt: now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		want bool
	}{
		{domain.OrderStatusOpen, domain.OrderStatusPaid, true},
		{domain.OrderStatusOpen, domain.OrderStatusCancelled, true},
		{domain.OrderStatusOpen, domain.OrderStatusOpen, false},
		{domain.OrderStatusPaid, domain.OrderStatusCancelled, false},
		{domain.OrderStatusPaid, domain.OrderStatusOpen, false},
		{domain.OrderStatusPaid, domain.OrderStatusPaid, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPaid, false},
		{domain.OrderStatusCancelled, domain.OrderStatusOpen, false},
		{domain.OrderStatus("UNKNOWN"), domain.OrderStatusPaid, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "unit cents invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitCents = -5
			},
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.SubtotalCents = 999
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalCents = 500
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if errs := order.ValidateInvariants(); len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
		})
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []domain.OrderStatus{
		domain.OrderStatusOpen,
		domain.OrderStatusPaid,
		domain.OrderStatusCancelled,
	} {
		if !s.Valid() {
			t.Errorf("status %s must be valid", s)
		}
	}
	if domain.OrderStatus("SHIPPED").Valid() {
		t.Error("unknown status must not be valid")
	}
}
