package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusOpen — заказ создан, единственное начальное состояние.
	OrderStatusOpen OrderStatus = "OPEN"
	// OrderStatusPaid — оплата отмечена авторизованным вызовом; терминальное состояние.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusCancelled — заказ отменён; терминальное состояние.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// validNext перечисляет разрешённые переходы; всё остальное запрещено.
// Из PAID и CANCELLED выхода нет.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusOpen:      {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {},
	OrderStatusCancelled: {},
}

// CanTransition отвечает, допустим ли переход статуса from -> to.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPaid, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
// На каждый товар в заказе существует ровно одна позиция: дубликаты
// запроса сливаются до записи.
type OrderItem struct {
	ID      string
	OrderID string
	// ProductID — ссылка на товар каталога.
	ProductID string
	// Qty — количество единиц товара, всегда > 0.
	Qty int32
	// UnitCents — цена за единицу, замороженная в момент создания заказа.
	// Последующие изменения каталога на неё не влияют.
	UnitCents int64
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
// После создания меняется только Status; денежные поля, TaxRate и
// CurrencyCode фиксируются навсегда.
type Order struct {
	ID            string
	CustomerID    string
	Status        OrderStatus
	SubtotalCents int64
	// TaxRate — доля налога [0,1], снятая с конфигурации процесса при создании.
	TaxRate  float64
	TaxCents int64
	// TotalCents всегда равен SubtotalCents + TaxCents.
	TotalCents int64
	// CurrencyCode — ISO-4217 код, снятый с конфигурации процесса при создании.
	CurrencyCode string
	Items        []OrderItem
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем subtotal с суммой позиций qty * unit_cents.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, NewItemError(ErrInvalidQty, item.ProductID))
		}
		if item.UnitCents < 0 {
			errs = append(errs, NewItemError(ErrInvalidUnitCents, item.ProductID))
		}
		calc += int64(item.Qty) * item.UnitCents
	}
	if calc != o.SubtotalCents {
		errs = append(errs, ErrAmountMismatch)
	}
	if o.TotalCents != o.SubtotalCents+o.TaxCents {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
