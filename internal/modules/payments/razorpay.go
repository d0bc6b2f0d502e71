package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Razorpay is the order/signature-based variant: CreatePaymentRequest opens a
// provider-side order, the client completes payment with the provider SDK and
// comes back with {order_id, payment_id, signature} for synchronous HMAC
// verification. Webhooks carry their own HMAC over the raw body.
type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type Razorpay struct {
	cfg RazorpayConfig
	hc  *http.Client
}

func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Razorpay{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

func (r *Razorpay) Name() string { return "razorpay" }

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (r *Razorpay) CreatePaymentRequest(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   req.AmountPaise,
		"currency": req.Currency,
		"receipt":  req.MerchantTxnID,
		"notes": map[string]string{
			"order_id":        req.OrderID,
			"user_id":         req.UserID,
			"merchant_txn_id": req.MerchantTxnID,
		},
	})
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)

	resp, err := r.hc.Do(httpReq)
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return CreateResponse{}, &GatewayError{
			Gateway: r.Name(), Op: "create",
			Err: fmt.Errorf("status=%d", resp.StatusCode),
		}
	}

	var out razorpayOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: err}
	}
	if out.ID == "" {
		return CreateResponse{}, &GatewayError{Gateway: r.Name(), Op: "create", Err: fmt.Errorf("no order id in response")}
	}

	// No redirect URL: the client completes payment through the provider SDK
	// keyed on GatewayOrderID.
	return CreateResponse{GatewayOrderID: out.ID}, nil
}

type razorpayCallback struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyPaymentResponse checks HMAC-SHA256(order_id|payment_id, key secret)
// against the signature the client brought back. The HMAC makes the payload
// self-authenticating, so no status re-check is needed. A mismatch is a
// failed verification, not a transport error.
func (r *Razorpay) VerifyPaymentResponse(_ context.Context, payload []byte) (VerificationResult, error) {
	var cb razorpayCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return VerificationResult{}, ErrMalformedPayload
	}
	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return VerificationResult{}, ErrMalformedPayload
	}

	expected := hmacHex([]byte(r.cfg.KeySecret), []byte(cb.OrderID+"|"+cb.PaymentID))
	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		return VerificationResult{
			GatewayOrderID: cb.OrderID,
			GatewayTxnID:   cb.PaymentID,
			RawStatus:      "signature_mismatch",
		}, nil
	}

	return VerificationResult{
		Success:        true,
		GatewayOrderID: cb.OrderID,
		GatewayTxnID:   cb.PaymentID,
		RawStatus:      "captured",
	}, nil
}

type razorpayPaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	Notes   struct {
		MerchantTxnID string `json:"merchant_txn_id"`
	} `json:"notes"`
}

type razorpayPaymentList struct {
	Count int                     `json:"count"`
	Items []razorpayPaymentEntity `json:"items"`
}

func (r *Razorpay) CheckStatus(ctx context.Context, q StatusQuery) (VerificationResult, error) {
	if q.GatewayOrderID == "" {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: ErrMissingCorrelation}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/v1/orders/"+q.GatewayOrderID+"/payments", nil)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: err}
	}
	httpReq.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)

	resp, err := r.hc.Do(httpReq)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: fmt.Errorf("status=%d", resp.StatusCode)}
	}

	var list razorpayPaymentList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return VerificationResult{}, &GatewayError{Gateway: r.Name(), Op: "status", Err: err}
	}

	// Most recent settled attempt wins; an order with only created/authorized
	// attempts is still pending.
	res := VerificationResult{Pending: true, RawStatus: "no_payments"}
	for _, it := range list.Items {
		switch it.Status {
		case "captured":
			return VerificationResult{
				Success:        true,
				GatewayOrderID: it.OrderID,
				GatewayTxnID:   it.ID,
				RawStatus:      it.Status,
			}, nil
		case "failed":
			res = VerificationResult{
				GatewayOrderID: it.OrderID,
				GatewayTxnID:   it.ID,
				RawStatus:      it.Status,
			}
		default:
			res = VerificationResult{
				Pending:        true,
				GatewayOrderID: it.OrderID,
				GatewayTxnID:   it.ID,
				RawStatus:      it.Status,
			}
		}
	}
	return res, nil
}

// VerifyWebhookSignature checks X-Razorpay-Signature: HMAC-SHA256 over the
// raw body with the webhook secret, hex encoded. Before any parsing.
func (r *Razorpay) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	expected := hmacHex([]byte(r.cfg.WebhookSecret), rawBody)
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

type razorpayWebhookBody struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`

	// some deliveries flatten the entity to the top level
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	MerchantTxnID string `json:"merchant_txn_id"`
}

// ParseWebhook normalizes the delivery. Precedence, nested entity first, then
// top-level fallback:
//
//	payment id      <- payload.payment.entity.id, else payment_id
//	order id        <- payload.payment.entity.order_id, else order_id
//	status          <- event, else payload.payment.entity.status, else status
//	merchant txn id <- payload.payment.entity.notes.merchant_txn_id, else merchant_txn_id
func (r *Razorpay) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var wb razorpayWebhookBody
	if err := json.Unmarshal(rawBody, &wb); err != nil {
		return WebhookEvent{}, ErrMalformedPayload
	}

	ent := wb.Payload.Payment.Entity
	paymentID := ent.ID
	if paymentID == "" {
		paymentID = wb.PaymentID
	}
	orderID := ent.OrderID
	if orderID == "" {
		orderID = wb.OrderID
	}
	status := wb.Event
	if status == "" {
		status = ent.Status
	}
	if status == "" {
		status = wb.Status
	}
	mtid := ent.Notes.MerchantTxnID
	if mtid == "" {
		mtid = wb.MerchantTxnID
	}

	if status == "" || (paymentID == "" && orderID == "" && mtid == "") {
		return WebhookEvent{}, ErrMalformedPayload
	}

	eventID := wb.ID
	if eventID == "" {
		eventID = bodyEventID(rawBody)
	}

	return WebhookEvent{
		EventID:        eventID,
		EventType:      status,
		Success:        status == "payment.captured" || status == "captured",
		Pending:        razorpayPendingStatus(status),
		RawStatus:      status,
		MerchantTxnID:  mtid,
		GatewayOrderID: orderID,
		GatewayTxnID:   paymentID,
		AmountPaise:    ent.Amount,
	}, nil
}

// razorpayPendingStatus: the provider webhooks every attempt state; only
// captured and failed are terminal, everything in between holds the order.
func razorpayPendingStatus(status string) bool {
	switch status {
	case "payment.authorized", "authorized",
		"payment.created", "created",
		"payment.pending", "pending":
		return true
	}
	return false
}

func hmacHex(secret, payload []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}
