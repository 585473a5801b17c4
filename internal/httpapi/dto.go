package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/money"
)

const (
	defaultTake = 50
	maxTake     = 200
)

// listResponse — общий конверт списочных ответов.
type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Take  int `json:"take"`
	Skip  int `json:"skip"`
}

// parsePage читает take/skip из query. take зажимается в [0, 200],
// skip — неотрицателен.
func parsePage(r *http.Request) domain.Page {
	take := defaultTake
	if raw := r.URL.Query().Get("take"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			take = parsed
		}
	}
	if take < 0 {
		take = 0
	}
	if take > maxTake {
		take = maxTake
	}

	skip := 0
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			skip = parsed
		}
	}

	return domain.Page{Take: take, Skip: skip}
}

type customerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Email:     c.Email,
		Name:      c.Name,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type productResponse struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"orderId"`
	ProductID string           `json:"productId"`
	Qty       int32            `json:"qty"`
	UnitCents int64            `json:"unitCents"`
	CreatedAt time.Time        `json:"createdAt"`
	Product   *productResponse `json:"product,omitempty"`
}

// orderResponse — декорированный заказ: авторитетные *Cents целые плюс
// производные дробные суммы и локализованные строки.
type orderResponse struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customerId"`
	Customer      *customerResponse   `json:"customer,omitempty"`
	Status        string              `json:"status"`
	SubtotalCents int64               `json:"subtotalCents"`
	TaxRate       float64             `json:"taxRate"`
	TaxCents      int64               `json:"taxCents"`
	TotalCents    int64               `json:"totalCents"`
	CurrencyCode  string              `json:"currencyCode"`
	Version       int64               `json:"version"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`

	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`

	SubtotalFormatted string `json:"subtotalFormatted"`
	TaxFormatted      string `json:"taxFormatted"`
	TotalFormatted    string `json:"totalFormatted"`
}

func decorateOrder(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitCents: item.UnitCents,
			CreatedAt: item.CreatedAt,
		})
	}

	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Status:        string(o.Status),
		SubtotalCents: o.SubtotalCents,
		TaxRate:       o.TaxRate,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
		CurrencyCode:  o.CurrencyCode,
		Version:       o.Version,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,

		Subtotal: float64(o.SubtotalCents) / 100,
		Tax:      float64(o.TaxCents) / 100,
		Total:    float64(o.TotalCents) / 100,

		SubtotalFormatted: money.Format(o.SubtotalCents, o.CurrencyCode),
		TaxFormatted:      money.Format(o.TaxCents, o.CurrencyCode),
		TotalFormatted:    money.Format(o.TotalCents, o.CurrencyCode),
	}
}

// decorateOrderDetailed дополняет декорированный заказ карточкой
// покупателя и карточками товаров из каталога.
func (s *Server) decorateOrderDetailed(o domain.Order) orderResponse {
	return s.decorateOrdersDetailed([]domain.Order{o})[0]
}

// decorateOrdersDetailed декорирует страницу заказов, разрешая товары
// одним batch-запросом на всю страницу. Ошибка разрешения не рушит
// ответ: заказ отдаётся без вложенной карточки.
func (s *Server) decorateOrdersDetailed(list []domain.Order) []orderResponse {
	seen := make(map[string]bool)
	productIDs := make([]string, 0, len(list))
	for _, o := range list {
		for _, item := range o.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}

	productByID := make(map[string]productResponse, len(productIDs))
	if len(productIDs) > 0 {
		if products, err := s.products.GetBatch(productIDs); err == nil {
			for _, p := range products {
				productByID[p.ID] = toProductResponse(p)
			}
		}
	}

	customerByID := make(map[string]*customerResponse, len(list))
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		resp := decorateOrder(o)

		if cached, ok := customerByID[o.CustomerID]; ok {
			resp.Customer = cached
		} else if customer, err := s.customers.Get(o.CustomerID); err == nil {
			c := toCustomerResponse(customer)
			customerByID[o.CustomerID] = &c
			resp.Customer = &c
		} else {
			customerByID[o.CustomerID] = nil
		}

		for i := range resp.Items {
			if p, ok := productByID[resp.Items[i].ProductID]; ok {
				card := p
				resp.Items[i].Product = &card
			}
		}

		out = append(out, resp)
	}
	return out
}

type reservationResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
	PartySize  int32     `json:"partySize"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:         res.ID,
		CustomerID: res.CustomerID,
		StartAt:    res.StartAt,
		EndAt:      res.EndAt,
		PartySize:  res.PartySize,
		Status:     string(res.Status),
		Notes:      res.Notes,
		CreatedAt:  res.CreatedAt,
		UpdatedAt:  res.UpdatedAt,
	}
}

type timelineEventResponse struct {
	OrderID  string    `json:"orderId"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurredAt"`
}

func toTimelineResponse(events []domain.TimelineEvent) []timelineEventResponse {
	out := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, timelineEventResponse{
			OrderID:  event.OrderID,
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return out
}
