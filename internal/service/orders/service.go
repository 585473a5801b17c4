// Package orders реализует протокол создания заказа: нормализацию позиций,
// заморозку цен, расчёт итогов и атомарную запись, а также машину
// состояний статуса.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/money"
)

// События, публикуемые сервисом через transactional outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"

	aggregateOrder = "order"
)

// ItemInput — запрошенная позиция заказа. Количество уже нормализовано
// на входной границе (отсутствующее qty = 1).
type ItemInput struct {
	ProductID string
	Qty       int32
}

// CreateInput — входные данные создания заказа.
type CreateInput struct {
	CustomerID string
	Items      []ItemInput
}

// Service оркестрирует создание заказов и переходы статусов.
type Service struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	cfg      money.Config
	logger   *log.Entry
}

// NewService конструирует сервис. outbox и timeline могут быть nil —
// тогда события не записываются.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	cfg money.Config,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:   orders,
		products: products,
		timeline: timeline,
		outbox:   outbox,
		cfg:      cfg,
		logger:   logger,
	}
}

// Create проводит запрос через весь протокол создания заказа.
//
// Порядок шагов фиксирован: существование товаров, активность, заморозка
// цен, валидация полей, слияние дубликатов, расчёт итогов, атомарная
// запись. Любая ошибка до записи не оставляет следов; ошибка записи
// откатывается хранилищем целиком.
func (s *Service) Create(_ context.Context, in CreateInput) (domain.Order, error) {
	if in.CustomerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if len(in.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	merged, err := s.normalizeItems(in.Items)
	if err != nil {
		return domain.Order{}, err
	}

	lines := make([]money.Line, 0, len(merged))
	for _, item := range merged {
		lines = append(lines, money.Line{UnitCents: item.UnitCents, Qty: item.Qty})
	}
	totals := money.ComputeTotals(lines, s.cfg.TaxRate)

	now := time.Now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerID:    in.CustomerID,
		Status:        domain.OrderStatusOpen,
		SubtotalCents: totals.SubtotalCents,
		TaxRate:       s.cfg.TaxRate,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		CurrencyCode:  s.cfg.CurrencyCode,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Items = make([]domain.OrderItem, 0, len(merged))
	for _, item := range merged {
		item.ID = uuid.NewString()
		item.OrderID = order.ID
		item.CreatedAt = now
		order.Items = append(order.Items, item)
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := s.orders.Create(order); err != nil {
		return domain.Order{}, err
	}

	s.appendTimeline(order.ID, domain.TimelineOrderCreated, string(order.Status), now)
	s.enqueueEvent(EventOrderCreated, order)

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total_cents": order.TotalCents,
	}).Info("order created")

	return order, nil
}

// normalizeItems превращает сырые позиции запроса в дедуплицированные
// строки с замороженной ценой каталога.
func (s *Service) normalizeItems(items []ItemInput) ([]domain.OrderItem, error) {
	// Уникальные productId в порядке первого появления.
	distinct := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			distinct = append(distinct, item.ProductID)
		}
	}

	products, err := s.products.GetBatch(distinct)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	if len(products) < len(distinct) {
		return nil, domain.ErrInvalidProductInItems
	}

	priceByID := make(map[string]int64, len(products))
	for _, product := range products {
		if !product.Active {
			return nil, domain.NewItemError(domain.ErrProductInactive, product.ID)
		}
		priceByID[product.ID] = product.PriceCents
	}

	// Заморозка цены и повалидационная проверка каждой строки.
	// Дубликаты сливаются в одну позицию с суммарным qty, порядок
	// первого появления сохраняется.
	merged := make([]domain.OrderItem, 0, len(distinct))
	index := make(map[string]int, len(distinct))
	for _, item := range items {
		unitCents, ok := priceByID[item.ProductID]
		if !ok {
			return nil, domain.NewItemError(domain.ErrProductPriceMissing, item.ProductID)
		}
		if unitCents < 0 {
			return nil, domain.NewItemError(domain.ErrInvalidUnitCents, item.ProductID)
		}
		if item.Qty <= 0 {
			return nil, domain.NewItemError(domain.ErrInvalidQty, item.ProductID)
		}

		if at, ok := index[item.ProductID]; ok {
			merged[at].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, domain.OrderItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitCents: unitCents,
		})
	}

	return merged, nil
}

// ChangeStatus применяет переход статуса заказа.
// Статус — единственное поле, которое когда-либо меняется после создания.
func (s *Service) ChangeStatus(_ context.Context, id string, to domain.OrderStatus) (domain.Order, error) {
	order, err := s.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}

	from := order.Status
	if !domain.CanTransition(from, to) {
		return domain.Order{}, &domain.TransitionError{From: from, To: to}
	}

	now := time.Now().UTC()
	order.Status = to
	order.UpdatedAt = now
	if err := s.orders.Save(order); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	s.appendTimeline(order.ID, domain.TimelineOrderStatusChanged, fmt.Sprintf("%s -> %s", from, to), now)
	s.enqueueEvent(EventOrderStatusChanged, order)

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       to,
	}).Info("order status changed")

	return order, nil
}

// Get возвращает заказ с позициями.
func (s *Service) Get(_ context.Context, id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// List возвращает страницу заказов по фильтру.
func (s *Service) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return s.orders.List(filter)
}

// Timeline возвращает историю событий заказа.
func (s *Service) Timeline(_ context.Context, id string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return nil, nil
	}
	if _, err := s.orders.Get(id); err != nil {
		return nil, err
	}
	return s.timeline.List(id)
}

func (s *Service) appendTimeline(orderID, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
	}
}

// orderEvent — payload событий заказа для внешних потребителей.
type orderEvent struct {
	OrderID      string             `json:"order_id"`
	CustomerID   string             `json:"customer_id"`
	Status       domain.OrderStatus `json:"status"`
	TotalCents   int64              `json:"total_cents"`
	CurrencyCode string             `json:"currency_code"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

func (s *Service) enqueueEvent(eventType string, order domain.Order) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(orderEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		Status:       order.Status,
		TotalCents:   order.TotalCents,
		CurrencyCode: order.CurrencyCode,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal order event")
		return
	}

	_, err = s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue outbox event")
	}
}
