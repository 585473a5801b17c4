package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

type customerCreateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (req *customerCreateRequest) validate() []string {
	var details []string
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		details = append(details, "email: must be a valid email address")
	}
	if req.Name == "" {
		details = append(details, "name: must not be empty")
	}
	if len(req.Phone) > 30 {
		details = append(details, "phone: must be at most 30 characters")
	}
	return details
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	if details := req.validate(); len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.customers.Create(customer); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	customers, total, err := s.customers.List(q, page)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	items := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		items = append(items, toCustomerResponse(customer))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Take: page.Take, Skip: page.Skip})
}
