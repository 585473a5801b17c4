package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/service/orders"
)

const (
	// idempotencyHeader — ключ повторяемого POST /orders.
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	maxBodyBytes = 1 << 20
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	// Qty — указатель, чтобы отличить отсутствующее qty (по умолчанию 1)
	// от явного нуля.
	Qty *int32 `json:"qty"`
}

type orderCreateRequest struct {
	CustomerID string             `json:"customerId"`
	Items      []orderItemRequest `json:"items"`
}

func (req *orderCreateRequest) validate() []string {
	var details []string
	if req.CustomerID == "" {
		details = append(details, "customerId: must not be empty")
	}
	if len(req.Items) == 0 {
		details = append(details, "items: must contain at least one item")
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			details = append(details, fmt.Sprintf("items[%d].productId: must not be empty", i))
		}
	}
	return details
}

type orderStatusPatchRequest struct {
	Status string `json:"status"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeValidationError(w, "cannot read request body")
		return
	}

	idemKey := r.Header.Get(idempotencyHeader)
	if idemKey != "" && s.idempotency != nil {
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		record, err := s.idempotency.CreateProcessing(idemKey, requestHash, idempotencyTTL)
		if err != nil {
			if errors.Is(err, domain.ErrIdempotencyInProgress) && record.Status != domain.IdempotencyStatusProcessing {
				// Повтор уже завершённого запроса: отдаём сохранённый ответ.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(record.HTTPStatus)
				_, _ = w.Write(record.ResponseBody)
				return
			}
			writeDomainError(w, s.logger, err)
			return
		}

		status, payload := s.handleCreateOrder(r, body)
		responseBody, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			writeErrorCode(w, http.StatusInternalServerError, "InternalError")
			return
		}
		if status == http.StatusCreated {
			if markErr := s.idempotency.MarkDone(idemKey, responseBody, status); markErr != nil {
				s.logger.WithError(markErr).Warn("failed to persist idempotent response")
			}
		} else {
			if markErr := s.idempotency.MarkFailed(idemKey, responseBody, status); markErr != nil {
				s.logger.WithError(markErr).Warn("failed to persist idempotent failure")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(responseBody)
		return
	}

	status, payload := s.handleCreateOrder(r, body)
	writeJSON(w, status, payload)
}

// handleCreateOrder выполняет создание заказа и возвращает HTTP-статус
// с телом ответа; запись в ResponseWriter остаётся за вызывающим,
// чтобы ответ можно было сохранить для идемпотентного повтора.
func (s *Server) handleCreateOrder(r *http.Request, body []byte) (int, any) {
	var req orderCreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, errorBody{Error: "ValidationError", Details: "invalid json body"}
	}
	if details := req.validate(); len(details) > 0 {
		return http.StatusBadRequest, errorBody{Error: "ValidationError", Details: details}
	}

	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		qty := int32(1)
		if item.Qty != nil {
			qty = *item.Qty
		}
		items = append(items, orders.ItemInput{ProductID: item.ProductID, Qty: qty})
	}

	started := time.Now()
	order, err := s.orders.Create(r.Context(), orders.CreateInput{
		CustomerID: req.CustomerID,
		Items:      items,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOrderCreateFailed(errorReason(err))
		}
		return errorResponse(s.logger, err)
	}
	if s.metrics != nil {
		s.metrics.RecordOrderCreated(time.Since(started))
	}

	return http.StatusCreated, s.decorateOrderDetailed(order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.decorateOrderDetailed(order))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.OrderFilter{
		CustomerID: query.Get("customerId"),
		Status:     domain.OrderStatus(query.Get("status")),
		Page:       parsePage(r),
	}

	if raw := query.Get("dateFrom"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "InvalidDateFrom")
			return
		}
		filter.DateFrom = &parsed
	}
	if raw := query.Get("dateTo"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "InvalidDateTo")
			return
		}
		filter.DateTo = &parsed
	}
	if raw := query.Get("updatedSince"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "InvalidUpdatedSince")
			return
		}
		filter.UpdatedSince = &parsed
	}

	orderList, total, err := s.orders.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	items := s.decorateOrdersDetailed(orderList)
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Take: filter.Page.Take, Skip: filter.Page.Skip})
}

func (s *Server) patchOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}

	to := domain.OrderStatus(req.Status)
	// Извне можно запросить только переход в PAID или CANCELLED.
	if to != domain.OrderStatusPaid && to != domain.OrderStatusCancelled {
		writeValidationError(w, "status: must be PAID or CANCELLED")
		return
	}

	id := chi.URLParam(r, "id")
	// Метрика помечается статусом до перехода, поэтому читаем заказ
	// перед записью.
	previous, err := s.orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	order, err := s.orders.ChangeStatus(r.Context(), id, to)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(previous.Status), string(to))
	}

	writeJSON(w, http.StatusOK, s.decorateOrderDetailed(order))
}

func (s *Server) getOrderTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.orders.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(events))
}
