package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

type productCreateRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  *int64 `json:"priceCents"`
	Active      *bool  `json:"active"`
}

func (req *productCreateRequest) validate() []string {
	var details []string
	if req.SKU == "" {
		details = append(details, "sku: must not be empty")
	}
	if req.Name == "" {
		details = append(details, "name: must not be empty")
	}
	if req.PriceCents == nil {
		details = append(details, "priceCents: is required")
	} else if *req.PriceCents < 0 {
		details = append(details, "priceCents: must be a non-negative integer")
	}
	return details
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	if details := req.validate(); len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  *req.PriceCents,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(product); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	products, total, err := s.products.List(q, page)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Take: page.Take, Skip: page.Skip})
}
