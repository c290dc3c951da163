package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/service/checkout"
)

const idempotencyTTL = 24 * time.Hour

// flowTracker хранит активные платёжные потоки по идентификатору платежа,
// чтобы их можно было отменить отдельным запросом.
type flowTracker struct {
	mu    sync.Mutex
	flows map[string]*checkout.Flow
}

func newFlowTracker() *flowTracker {
	return &flowTracker{flows: make(map[string]*checkout.Flow)}
}

func (t *flowTracker) put(flow *checkout.Flow) {
	t.mu.Lock()
	t.flows[flow.PaymentID] = flow
	t.mu.Unlock()

	go func() {
		<-flow.Done()
		t.mu.Lock()
		delete(t.flows, flow.PaymentID)
		t.mu.Unlock()
	}()
}

func (t *flowTracker) get(paymentID string) (*checkout.Flow, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	flow, ok := t.flows[paymentID]
	return flow, ok
}

type checkoutRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	OrderID     string `json:"order_id"`
	OrderName   string `json:"order_name"`
	Customer    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
}

type checkoutResponse struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	WindowBlocked bool   `json:"window_blocked"`
}

func (s *Server) initiateCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body.Close()

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, domain.ErrAmountInvalid)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		record, err := s.cfg.Idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
		switch {
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			writeError(w, r, err)
			return
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			if record.Status == domain.IdempotencyStatusProcessing {
				writeJSON(w, http.StatusConflict, errorBody{
					Error:     "request with this idempotency key is still processing",
					RequestID: requestIDFromContext(r.Context()),
				})
				return
			}
			writeRaw(w, record.HTTPStatus, record.ResponseBody)
			return
		case err != nil:
			writeError(w, r, err)
			return
		}
	}

	status, payload := s.runCheckout(r, req)
	if key != "" {
		raw, _ := json.Marshal(payload)
		if status < http.StatusBadRequest {
			if err := s.cfg.Idempotency.MarkDone(key, raw, status); err != nil {
				s.logger.WithError(err).Warn("failed to mark idempotency record done")
			}
		} else {
			if err := s.cfg.Idempotency.MarkFailed(key, raw, status); err != nil {
				s.logger.WithError(err).Warn("failed to mark idempotency record failed")
			}
		}
	}
	writeJSON(w, status, payload)
}

// runCheckout выполняет платёжный поток и возвращает статус с телом
// ответа — в таком виде результат можно сохранить для replay.
func (s *Server) runCheckout(r *http.Request, req checkoutRequest) (int, interface{}) {
	flow, err := s.cfg.Checkout.Initiate(
		r.Context(),
		userIDFromContext(r.Context()),
		req.AmountMinor,
		req.OrderID,
		req.OrderName,
		domain.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	)
	if err != nil {
		return statusFromError(err), errorBody{
			Error:     err.Error(),
			RequestID: requestIDFromContext(r.Context()),
		}
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordPaymentInitiated()
		go func() {
			<-flow.Done()
			s.cfg.Metrics.RecordPaymentFinished()
			if status, outcomeErr := flow.Outcome(); outcomeErr == nil && status != "" {
				s.cfg.Metrics.RecordPaymentVerified(string(status))
			}
		}()
	}
	s.flows.put(flow)

	return http.StatusAccepted, checkoutResponse{
		PaymentID:     flow.PaymentID,
		TransactionID: flow.TransactionID,
		RedirectURL:   flow.Session.RedirectURL,
		WindowBlocked: flow.WindowBlocked(),
	}
}

func (s *Server) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flows.get(chi.URLParam(r, "paymentID"))
	if !ok {
		writeError(w, r, domain.ErrPaymentNotFound)
		return
	}

	flow.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// paymentCallback вызывается шлюзом после возвращения пользователя.
// Закрытие «окна» запускает верификацию в соответствующем потоке.
func (s *Server) paymentCallback(w http.ResponseWriter, r *http.Request) {
	pidx := r.URL.Query().Get("pidx")
	if pidx == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pidx query parameter is required"})
		return
	}

	if !s.cfg.Windows.Complete(pidx) {
		s.logger.WithField("pidx", pidx).Warn("callback for unknown payment session")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.cfg.Payments.ListByUser(r.Context(), userIDFromContext(r.Context()), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.cfg.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if payment.UserID != userIDFromContext(r.Context()) {
		writeError(w, r, domain.ErrPaymentNotFound)
		return
	}

	var timeline []domain.TimelineEvent
	if s.cfg.Timeline != nil {
		timeline, err = s.cfg.Timeline.List(payment.ID)
		if err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to load payment timeline")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":  payment,
		"timeline": timeline,
	})
}
