package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/service/reservations"
)

type reservationCreateRequest struct {
	CustomerID string `json:"customerId"`
	StartAt    string `json:"startAt"`
	EndAt      string `json:"endAt"`
	PartySize  *int32 `json:"partySize"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}

	var details []string
	if req.CustomerID == "" {
		details = append(details, "customerId: must not be empty")
	}
	if req.StartAt == "" {
		details = append(details, "startAt: is required")
	}
	if req.EndAt == "" {
		details = append(details, "endAt: is required")
	}
	if req.Status != "" && !domain.ReservationStatus(req.Status).Valid() {
		details = append(details, "status: must be PENDING, CONFIRMED or CANCELLED")
	}
	if len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidDate")
		return
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidDate")
		return
	}
	if !startAt.Before(endAt) {
		writeErrorCode(w, http.StatusBadRequest, "startAt_must_be_before_endAt")
		return
	}

	var partySize int32
	if req.PartySize != nil {
		partySize = *req.PartySize
	}

	reservation, err := s.reservations.Create(r.Context(), reservations.CreateInput{
		CustomerID: req.CustomerID,
		StartAt:    startAt,
		EndAt:      endAt,
		PartySize:  partySize,
		Status:     domain.ReservationStatus(req.Status),
		Notes:      req.Notes,
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrOverlappingReservation) {
			s.metrics.RecordReservationConflict()
		}
		writeDomainError(w, s.logger, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordReservationCreated()
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.reservations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(reservation))
}

func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ReservationFilter{
		CustomerID: query.Get("customerId"),
		Status:     domain.ReservationStatus(query.Get("status")),
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

	reservationList, total, err := s.reservations.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	items := make([]reservationResponse, 0, len(reservationList))
	for _, reservation := range reservationList {
		items = append(items, toReservationResponse(reservation))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Take: filter.Page.Take, Skip: filter.Page.Skip})
}
