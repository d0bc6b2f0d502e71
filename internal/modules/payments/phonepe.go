package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PhonePe is the redirect-based, webhook-driven variant: CreatePaymentRequest
// returns a hosted payment page URL and the final state arrives later via a
// signed webhook (or the status-poll API).
const phonePePayPath = "/pg/v1/pay"

type PhonePeConfig struct {
	BaseURL     string
	MerchantID  string
	SaltKey     string
	SaltIndex   string
	RedirectURL string
	CallbackURL string
	Timeout     time.Duration
}

type PhonePe struct {
	cfg PhonePeConfig
	hc  *http.Client
}

func NewPhonePe(cfg PhonePeConfig) *PhonePe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PhonePe{cfg: cfg, hc: &http.Client{Timeout: timeout}}
}

func (p *PhonePe) Name() string { return "phonepe" }

type phonePePayRequest struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	MerchantUserID        string `json:"merchantUserId"`
	Amount                int64  `json:"amount"`
	RedirectURL           string `json:"redirectUrl"`
	RedirectMode          string `json:"redirectMode"`
	CallbackURL           string `json:"callbackUrl"`
	PaymentInstrument     struct {
		Type string `json:"type"`
	} `json:"paymentInstrument"`
}

type phonePePayResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (p *PhonePe) CreatePaymentRequest(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	payload := phonePePayRequest{
		MerchantID:            p.cfg.MerchantID,
		MerchantTransactionID: req.MerchantTxnID,
		MerchantUserID:        req.UserID,
		Amount:                req.AmountPaise,
		RedirectURL:           p.cfg.RedirectURL,
		RedirectMode:          "POST",
		CallbackURL:           p.cfg.CallbackURL,
	}
	payload.PaymentInstrument.Type = "PAY_PAGE"

	raw, err := json.Marshal(payload)
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(map[string]string{"request": b64})
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+phonePePayPath, bytes.NewReader(body))
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", p.checksum(b64+phonePePayPath))

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}

	var out phonePePayResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: err}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return CreateResponse{}, &GatewayError{
			Gateway: p.Name(), Op: "create",
			Err: fmt.Errorf("status=%d code=%s", resp.StatusCode, out.Code),
		}
	}
	payURL := out.Data.InstrumentResponse.RedirectInfo.URL
	if payURL == "" {
		return CreateResponse{}, &GatewayError{Gateway: p.Name(), Op: "create", Err: fmt.Errorf("no redirect url in response")}
	}

	return CreateResponse{
		PaymentURL:   payURL,
		GatewayTxnID: out.Data.TransactionID,
	}, nil
}

type phonePeCallback struct {
	Code                  string `json:"code"`
	MerchantID            string `json:"merchantId"`
	TransactionID         string `json:"transactionId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	ProviderReferenceID   string `json:"providerReferenceId"`
}

// VerifyPaymentResponse handles the redirect-back POST. The payload is
// client-posted and unsigned, so its result code is never trusted: it only
// supplies the correlation id, the authoritative state comes from the
// status API.
func (p *PhonePe) VerifyPaymentResponse(ctx context.Context, payload []byte) (VerificationResult, error) {
	var cb phonePeCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return VerificationResult{}, ErrMalformedPayload
	}
	if cb.MerchantTransactionID == "" {
		return VerificationResult{}, ErrMalformedPayload
	}
	return p.CheckStatus(ctx, StatusQuery{MerchantTxnID: cb.MerchantTransactionID})
}

type phonePeStatusResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		TransactionID string `json:"transactionId"`
		State         string `json:"state"`
	} `json:"data"`
}

func (p *PhonePe) CheckStatus(ctx context.Context, q StatusQuery) (VerificationResult, error) {
	path := "/pg/v1/status/" + p.cfg.MerchantID + "/" + q.MerchantTxnID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: p.Name(), Op: "status", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", p.checksum(path))
	httpReq.Header.Set("X-MERCHANT-ID", p.cfg.MerchantID)

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: p.Name(), Op: "status", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerificationResult{}, &GatewayError{Gateway: p.Name(), Op: "status", Err: err}
	}

	var out phonePeStatusResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return VerificationResult{}, &GatewayError{Gateway: p.Name(), Op: "status", Err: err}
	}

	return VerificationResult{
		Success:      out.Code == "PAYMENT_SUCCESS",
		Pending:      out.Code == "PAYMENT_PENDING",
		GatewayTxnID: out.Data.TransactionID,
		RawStatus:    out.Code,
	}, nil
}

// VerifyWebhookSignature checks the X-VERIFY style checksum over the raw body
// bytes. Constant-time compare; runs strictly before any JSON decoding.
func (p *PhonePe) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	expected := p.checksum(string(rawBody))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

type phonePeWebhookBody struct {
	Response string `json:"response"`
}

type phonePeWebhookPayload struct {
	Code                  string `json:"code"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Data                  struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
	} `json:"data"`
}

// ParseWebhook normalizes the delivery. The same logical event arrives either
// with top-level fields or wrapped in a nested data object; precedence is
// fixed here, top-level first, then data:
//
//	code                  <- code, else data.state
//	merchantTransactionId <- top-level, else data.merchantTransactionId
//	transactionId         <- top-level, else data.transactionId
func (p *PhonePe) ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var outer phonePeWebhookBody
	if err := json.Unmarshal(rawBody, &outer); err != nil {
		return WebhookEvent{}, ErrMalformedPayload
	}

	inner := rawBody
	if outer.Response != "" {
		decoded, err := base64.StdEncoding.DecodeString(outer.Response)
		if err != nil {
			return WebhookEvent{}, ErrMalformedPayload
		}
		inner = decoded
	}

	var pl phonePeWebhookPayload
	if err := json.Unmarshal(inner, &pl); err != nil {
		return WebhookEvent{}, ErrMalformedPayload
	}

	code := pl.Code
	if code == "" {
		code = pl.Data.State
	}
	mtid := pl.MerchantTransactionID
	if mtid == "" {
		mtid = pl.Data.MerchantTransactionID
	}
	txn := pl.TransactionID
	if txn == "" {
		txn = pl.Data.TransactionID
	}
	if code == "" || (mtid == "" && txn == "") {
		return WebhookEvent{}, ErrMalformedPayload
	}

	return WebhookEvent{
		EventID:       bodyEventID(rawBody),
		EventType:     code,
		Success:       code == "PAYMENT_SUCCESS" || code == "COMPLETED",
		Pending:       phonePePendingCode(code),
		RawStatus:     code,
		MerchantTxnID: mtid,
		GatewayTxnID:  txn,
		AmountPaise:   pl.Data.Amount,
	}, nil
}

// phonePePendingCode: codes the provider delivers before the payment settles.
// They must never fail the order; the terminal webhook follows.
func phonePePendingCode(code string) bool {
	switch code {
	case "PAYMENT_PENDING", "PENDING", "PAYMENT_INITIATED":
		return true
	}
	return false
}

func (p *PhonePe) checksum(payload string) string {
	sum := sha256.Sum256([]byte(payload + p.cfg.SaltKey))
	return hex.EncodeToString(sum[:]) + "###" + p.cfg.SaltIndex
}
