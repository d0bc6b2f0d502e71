package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type CreateRequest struct {
	OrderID       string
	MerchantTxnID string
	UserID        string
	AmountPaise   int64
	Currency      string
}

type CreateResponse struct {
	PaymentURL     string // empty for gateways completed by a client-side SDK
	GatewayOrderID string // provider order id (Razorpay)
	GatewayTxnID   string // provider transaction id (PhonePe)
}

type VerificationResult struct {
	Success        bool
	Pending        bool // provider has not settled yet; no transition applies
	GatewayOrderID string
	GatewayTxnID   string
	RawStatus      string
}

// StatusQuery carries every correlation id an order holds; each gateway picks
// the one its status API is keyed on.
type StatusQuery struct {
	MerchantTxnID  string
	GatewayOrderID string
	GatewayTxnID   string
}

// WebhookEvent is the normalized form of a provider delivery. Adapters own
// the per-provider field-precedence rules; nothing downstream re-parses.
// Pending marks non-terminal deliveries (authorized, created, in-flight):
// they must leave the order untouched, not fail it.
type WebhookEvent struct {
	EventID        string
	EventType      string
	Success        bool
	Pending        bool
	RawStatus      string
	MerchantTxnID  string
	GatewayOrderID string
	GatewayTxnID   string
	AmountPaise    int64
}

type Gateway interface {
	// Name is the stable discriminator stored on the order.
	Name() string

	// CreatePaymentRequest issues the provider "start payment" call. It is
	// side-effecting exactly once per call; the orchestrator never retries it.
	CreatePaymentRequest(ctx context.Context, req CreateRequest) (CreateResponse, error)

	// VerifyPaymentResponse handles the synchronous confirmation path (client
	// redirected back with provider parameters). Implementations must not
	// trust unsigned client-posted state: adapters without a cryptographic
	// signature in the payload re-confirm against the provider's status API.
	VerifyPaymentResponse(ctx context.Context, payload []byte) (VerificationResult, error)

	// CheckStatus is the polling fallback when neither redirect nor webhook
	// arrived.
	CheckStatus(ctx context.Context, q StatusQuery) (VerificationResult, error)

	// VerifyWebhookSignature runs over the raw, unparsed body bytes. It must
	// be called before any JSON decoding.
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool

	// ParseWebhook normalizes a (signature-checked) delivery.
	ParseWebhook(rawBody []byte) (WebhookEvent, error)
}

// bodyEventID derives a deterministic dedupe key for providers that do not
// send an explicit event id: identical replays hash identically.
func bodyEventID(rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	return "sha_" + hex.EncodeToString(sum[:16])
}
