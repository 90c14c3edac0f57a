package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// errorResponse — единый формат ошибок API.
type errorResponse struct {
	Error string `json:"error"`
	// Details заполняется для ошибок наличия: каких товаров не хватило.
	Details interface{} `json:"details,omitempty"`
}

type stockErrorDetails struct {
	ProductID string `json:"product_id"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// writeError переводит доменную ошибку в HTTP-статус и тело ответа.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	resp := errorResponse{Error: err.Error()}

	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = stockErrorDetails{
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
	}

	writeJSON(w, status, resp)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case domain.IsNotFound(err) || errors.Is(err, domain.ErrIdempotencyKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOrderNotCancellable),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists),
		domain.IsVersionConflict(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case isValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// validationErrors — доменные ошибки, означающие некорректный запрос клиента.
var validationErrors = []error{
	domain.ErrBuyerRequired,
	domain.ErrItemsRequired,
	domain.ErrAmountNegative,
	domain.ErrItemQtyInvalid,
	domain.ErrItemPriceInvalid,
	domain.ErrAmountMismatch,
	domain.ErrAddressIncomplete,
	domain.ErrPaymentMethodInvalid,
	domain.ErrOrderStatusInvalid,
	domain.ErrProductNameRequired,
	domain.ErrProductDescriptionRequired,
	domain.ErrProductCategoryRequired,
	domain.ErrProductPriceNegative,
	domain.ErrProductStockNegative,
	domain.ErrDiscountPercentInvalid,
	domain.ErrDiscountPeriodInvalid,
	domain.ErrUserNameRequired,
	domain.ErrEmailInvalid,
	domain.ErrPasswordTooShort,
	domain.ErrNoFieldsToUpdate,
	domain.ErrIdempotencyKeyRequired,
	domain.ErrMoneyInvalid,
	domain.ErrMoneyNegative,
	domain.ErrMoneyPrecision,
}

func isValidation(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// decodeBody читает JSON-тело запроса с жёсткой схемой.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
