package rest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	maxOrderBody = 1 << 20 // 1 MiB
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	var body placeOrderRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	input := toPlaceInput(req.UserID, body)

	key := r.Header.Get(idempotencyHeader)
	if key == "" || s.idempotency == nil {
		order, err := s.orders.PlaceOrder(input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(order))
		return
	}

	// Хэш привязан к покупателю: чужой запрос с тем же ключом
	// не может получить чужой сохранённый ответ.
	hash := requestHash(req.UserID, raw)

	record, err := s.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			s.replayIdempotent(w, record)
		default:
			writeError(w, err)
		}
		return
	}

	placed, err := s.orders.PlaceOrder(input)
	if err != nil {
		status := statusForError(err)
		respBody, _ := json.Marshal(errorResponse{Error: err.Error()})
		if markErr := s.idempotency.MarkFailed(key, respBody, status); markErr != nil {
			s.logger.WithError(markErr).WithField("key", key).Warn("failed to mark idempotency record failed")
		}
		writeError(w, err)
		return
	}

	resp := toOrderResponse(placed)
	respBody, _ := json.Marshal(resp)
	if markErr := s.idempotency.MarkDone(key, respBody, http.StatusCreated); markErr != nil {
		s.logger.WithError(markErr).WithField("key", key).Warn("failed to mark idempotency record done")
	}
	writeJSON(w, http.StatusCreated, resp)
}

// replayIdempotent возвращает сохранённый ответ на повторный запрос.
func (s *Server) replayIdempotent(w http.ResponseWriter, record domain.IdempotencyRecord) {
	if !record.Status.Terminal() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "request with this idempotency key is being processed"})
		return
	}

	s.logger.WithFields(log.Fields{
		"key":    record.Key,
		"status": record.Status,
	}).Info("replaying idempotent response")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

func (s *Server) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	orders, err := s.orders.ListByBuyer(req.UserID, limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	found, err := s.orders.Get(chi.URLParam(r, "id"), req.UserID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(found))
}

func (s *Server) handleOrderTimeline(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	events, err := s.orders.Timeline(chi.URLParam(r, "id"), req.UserID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponses(events))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	reason := decodeCancelReason(r)
	cancelled, err := s.orders.Cancel(chi.URLParam(r, "id"), req.UserID, req.Role, reason, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(cancelled))
}

func (s *Server) handleAdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	req, _ := requesterFrom(r.Context())

	reason := decodeCancelReason(r)
	// Админская отмена дополнительно помечает оплату как failed.
	cancelled, err := s.orders.Cancel(chi.URLParam(r, "id"), req.UserID, req.Role, reason, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(cancelled))
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAll(limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body updateStatusRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	updated, err := s.orders.UpdateStatus(chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func toPlaceInput(buyerID string, body placeOrderRequest) order.PlaceOrderInput {
	items := make([]order.PlaceOrderItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, order.PlaceOrderItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
		})
	}
	return order.PlaceOrderInput{
		BuyerID: buyerID,
		Items:   items,
		ShippingAddress: domain.ShippingAddress{
			Street:     body.ShippingAddress.Street,
			City:       body.ShippingAddress.City,
			State:      body.ShippingAddress.State,
			PostalCode: body.ShippingAddress.PostalCode,
			Country:    body.ShippingAddress.Country,
		},
		Payment: domain.PaymentInfo{
			Method:        body.Payment.Method,
			Status:        body.Payment.Status,
			TransactionID: body.Payment.TransactionID,
		},
	}
}

// decodeCancelReason читает опциональное тело {"reason": "..."}.
// Пустое тело допустимо.
func decodeCancelReason(r *http.Request) string {
	var body cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Reason
}

func requestHash(buyerID string, body []byte) string {
	sum := sha256.Sum256(append([]byte(buyerID+"\n"), body...))
	return hex.EncodeToString(sum[:])
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
