package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// errorBody — единый формат тела ошибки: {"error": "<код>", ...}.
type errorBody struct {
	Error     string `json:"error"`
	Details   any    `json:"details,omitempty"`
	ProductID string `json:"productId,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, code int, errCode string) {
	writeJSON(w, code, errorBody{Error: errCode})
}

func writeValidationError(w http.ResponseWriter, details any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "ValidationError", Details: details})
}

// writeDomainError переводит доменную ошибку в HTTP-ответ.
func writeDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	status, body := errorResponse(logger, err)
	writeJSON(w, status, body)
}

// itemErrorCodes — коды ошибок нормализации позиций, которые API отдаёт
// вместе с оскорбившим productId.
var itemErrorCodes = map[error]string{
	domain.ErrProductInactive:     "ProductInactive",
	domain.ErrProductPriceMissing: "ProductPriceMissing",
	domain.ErrInvalidUnitCents:    "InvalidUnitCents",
	domain.ErrInvalidQty:          "InvalidQty",
}

// errorResponse отображает доменную ошибку на HTTP-статус и тело с
// машинно-читаемым кодом. Неузнанные ошибки логируются и прячутся
// за InternalError — внутренние детали наружу не утекают.
func errorResponse(logger *log.Entry, err error) (int, errorBody) {
	var itemErr *domain.ItemError
	if errors.As(err, &itemErr) {
		for sentinel, code := range itemErrorCodes {
			if errors.Is(itemErr.Err, sentinel) {
				return http.StatusBadRequest, errorBody{Error: code, ProductID: itemErr.ProductID}
			}
		}
	}

	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, errorBody{
			Error: "InvalidStatusTransition",
			From:  string(transitionErr.From),
			To:    string(transitionErr.To),
		}
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorBody{Error: "OrderNotFound"}
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound, errorBody{Error: "CustomerNotFound"}
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, errorBody{Error: "ProductNotFound"}
	case errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound, errorBody{Error: "ReservationNotFound"}
	case errors.Is(err, domain.ErrInvalidProductInItems):
		return http.StatusBadRequest, errorBody{Error: "InvalidProductInItems"}
	case errors.Is(err, domain.ErrInvalidCustomerOrProduct):
		return http.StatusBadRequest, errorBody{Error: "InvalidCustomerOrProduct"}
	case errors.Is(err, domain.ErrInvalidCustomer):
		return http.StatusBadRequest, errorBody{Error: "InvalidCustomer"}
	case errors.Is(err, domain.ErrStartAfterEnd):
		return http.StatusBadRequest, errorBody{Error: "startAt_must_be_before_endAt"}
	case errors.Is(err, domain.ErrOverlappingReservation):
		return http.StatusConflict, errorBody{Error: "OverlappingReservation"}
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: "Conflict", Details: "Email already exists"}
	case errors.Is(err, domain.ErrSKUTaken):
		return http.StatusConflict, errorBody{Error: "Conflict", Details: "SKU already exists"}
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, errorBody{Error: "Conflict"}
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return http.StatusConflict, errorBody{Error: "IdempotencyKeyReuse"}
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, errorBody{Error: "RequestInProgress"}
	case errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrPartySizeInvalid),
		errors.Is(err, domain.ErrReservationStatusInvalid):
		return http.StatusBadRequest, errorBody{Error: "ValidationError", Details: err.Error()}
	default:
		if logger != nil {
			logger.WithError(err).Error("unhandled error in http handler")
		}
		return http.StatusInternalServerError, errorBody{Error: "InternalError"}
	}
}

// errorReason возвращает машинно-читаемый код ошибки для метрик.
func errorReason(err error) string {
	_, body := errorResponse(nil, err)
	return body.Error
}
