package payments

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPhonePe(baseURL string) *PhonePe {
	return NewPhonePe(PhonePeConfig{
		BaseURL:     baseURL,
		MerchantID:  "MERCHANT1",
		SaltKey:     "salt-key-1",
		SaltIndex:   "1",
		RedirectURL: "http://localhost:8080/payment/return",
		CallbackURL: "http://localhost:8080/webhooks/phonepe",
	})
}

func phonePeSign(payload, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(payload + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

func TestPhonePeCreatePaymentRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pg/v1/pay", r.URL.Path)

		var body struct {
			Request string `json:"request"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		// checksum covers base64(payload) + pay path
		assert.Equal(t, phonePeSign(body.Request+"/pg/v1/pay", "salt-key-1", "1"), r.Header.Get("X-VERIFY"))

		raw, err := base64.StdEncoding.DecodeString(body.Request)
		require.NoError(t, err)
		var pay map[string]any
		require.NoError(t, json.Unmarshal(raw, &pay))
		assert.Equal(t, "MERCHANT1", pay["merchantId"])
		assert.Equal(t, "MT123", pay["merchantTransactionId"])
		assert.Equal(t, float64(49900), pay["amount"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    "PAYMENT_INITIATED",
			"data": map[string]any{
				"merchantTransactionId": "MT123",
				"transactionId":         "T999",
				"instrumentResponse": map[string]any{
					"redirectInfo": map[string]any{"url": "https://pay.example/redirect/abc"},
				},
			},
		})
	}))
	defer srv.Close()

	gw := testPhonePe(srv.URL)
	resp, err := gw.CreatePaymentRequest(context.Background(), CreateRequest{
		OrderID:       "o1",
		MerchantTxnID: "MT123",
		UserID:        "u1",
		AmountPaise:   49900,
		Currency:      "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/redirect/abc", resp.PaymentURL)
	assert.Equal(t, "T999", resp.GatewayTxnID)
}

func TestPhonePeCreatePaymentRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "code": "BAD_REQUEST"})
	}))
	defer srv.Close()

	gw := testPhonePe(srv.URL)
	_, err := gw.CreatePaymentRequest(context.Background(), CreateRequest{MerchantTxnID: "MT1", AmountPaise: 100})
	require.Error(t, err)

	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "phonepe", ge.Gateway)
	assert.Equal(t, "create", ge.Op)
}

func TestPhonePeVerifyPaymentResponse(t *testing.T) {
	// the redirect-back payload only supplies the correlation id; the result
	// comes from the status API
	var statusCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		require.Equal(t, "/pg/v1/status/MERCHANT1/MT1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    "PAYMENT_SUCCESS",
			"data":    map[string]any{"transactionId": "T1"},
		})
	}))
	defer srv.Close()

	gw := testPhonePe(srv.URL)
	ctx := context.Background()

	vr, err := gw.VerifyPaymentResponse(ctx, []byte(`{"code":"PAYMENT_SUCCESS","merchantTransactionId":"MT1","transactionId":"T1"}`))
	require.NoError(t, err)
	require.Equal(t, 1, statusCalls)
	assert.True(t, vr.Success)
	assert.Equal(t, "T1", vr.GatewayTxnID)
}

func TestPhonePeVerifyPaymentResponseForgedCode(t *testing.T) {
	// a client-posted success code must not flip the outcome when the provider
	// reports otherwise
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"code":    "PAYMENT_ERROR",
			"data":    map[string]any{"transactionId": "T1"},
		})
	}))
	defer srv.Close()

	gw := testPhonePe(srv.URL)
	vr, err := gw.VerifyPaymentResponse(context.Background(), []byte(`{"code":"PAYMENT_SUCCESS","merchantTransactionId":"MT1"}`))
	require.NoError(t, err)
	assert.False(t, vr.Success)
	assert.Equal(t, "PAYMENT_ERROR", vr.RawStatus)
}

func TestPhonePeVerifyPaymentResponseMalformed(t *testing.T) {
	gw := testPhonePe("http://unused")

	_, err := gw.VerifyPaymentResponse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	// no merchant transaction id means nothing to confirm against
	_, err = gw.VerifyPaymentResponse(context.Background(), []byte(`{"code":"PAYMENT_SUCCESS"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestPhonePeCheckStatusPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pg/v1/status/MERCHANT1/MT1", r.URL.Path)
		assert.Equal(t, phonePeSign("/pg/v1/status/MERCHANT1/MT1", "salt-key-1", "1"), r.Header.Get("X-VERIFY"))
		assert.Equal(t, "MERCHANT1", r.Header.Get("X-MERCHANT-ID"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    "PAYMENT_PENDING",
			"data":    map[string]any{"transactionId": "T1", "state": "PENDING"},
		})
	}))
	defer srv.Close()

	gw := testPhonePe(srv.URL)
	vr, err := gw.CheckStatus(context.Background(), StatusQuery{MerchantTxnID: "MT1"})
	require.NoError(t, err)
	assert.False(t, vr.Success)
	assert.True(t, vr.Pending)
	assert.Equal(t, "PAYMENT_PENDING", vr.RawStatus)
}

func TestPhonePeVerifyWebhookSignature(t *testing.T) {
	gw := testPhonePe("http://unused")
	body := []byte(`{"response":"abc"}`)

	good := phonePeSign(string(body), "salt-key-1", "1")
	assert.True(t, gw.VerifyWebhookSignature(body, good))

	assert.False(t, gw.VerifyWebhookSignature(body, ""))
	assert.False(t, gw.VerifyWebhookSignature(body, good+"x"))

	// flipping a single body byte must invalidate the signature
	tampered := append([]byte{}, body...)
	tampered[2] ^= 0x01
	assert.False(t, gw.VerifyWebhookSignature(tampered, good))
}

func TestPhonePeParseWebhookWrapped(t *testing.T) {
	gw := testPhonePe("http://unused")

	inner := `{"code":"PAYMENT_SUCCESS","merchantTransactionId":"MT1","transactionId":"T1","data":{"amount":49900,"state":"COMPLETED"}}`
	body := []byte(`{"response":"` + base64.StdEncoding.EncodeToString([]byte(inner)) + `"}`)

	ev, err := gw.ParseWebhook(body)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.Equal(t, "MT1", ev.MerchantTxnID)
	assert.Equal(t, "T1", ev.GatewayTxnID)
	assert.Equal(t, int64(49900), ev.AmountPaise)
	assert.NotEmpty(t, ev.EventID)
}

func TestPhonePeParseWebhookPendingCodes(t *testing.T) {
	gw := testPhonePe("http://unused")

	for _, code := range []string{"PAYMENT_PENDING", "PENDING", "PAYMENT_INITIATED"} {
		body := []byte(`{"code":"` + code + `","merchantTransactionId":"MT1","transactionId":"T1"}`)
		ev, err := gw.ParseWebhook(body)
		require.NoError(t, err)
		assert.False(t, ev.Success, code)
		assert.True(t, ev.Pending, code)
	}

	// terminal failure is not pending
	ev, err := gw.ParseWebhook([]byte(`{"code":"PAYMENT_ERROR","merchantTransactionId":"MT1"}`))
	require.NoError(t, err)
	assert.False(t, ev.Pending)
}

func TestPhonePeParseWebhookPrecedence(t *testing.T) {
	gw := testPhonePe("http://unused")

	// top-level fields win over the nested data object
	body := []byte(`{"code":"PAYMENT_ERROR","merchantTransactionId":"MT-top","data":{"merchantTransactionId":"MT-nested","transactionId":"T-nested","state":"COMPLETED"}}`)
	ev, err := gw.ParseWebhook(body)
	require.NoError(t, err)
	assert.False(t, ev.Success)
	assert.Equal(t, "PAYMENT_ERROR", ev.RawStatus)
	assert.Equal(t, "MT-top", ev.MerchantTxnID)
	assert.Equal(t, "T-nested", ev.GatewayTxnID)

	// nested-only delivery still resolves
	body = []byte(`{"data":{"merchantTransactionId":"MT2","transactionId":"T2","state":"COMPLETED"}}`)
	ev, err = gw.ParseWebhook(body)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.Equal(t, "MT2", ev.MerchantTxnID)
}

func TestPhonePeParseWebhookMalformed(t *testing.T) {
	gw := testPhonePe("http://unused")

	_, err := gw.ParseWebhook([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = gw.ParseWebhook([]byte(`{"response":"%%%not-base64%%%"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	// status present but no correlation ids
	_, err = gw.ParseWebhook([]byte(`{"code":"PAYMENT_SUCCESS"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
