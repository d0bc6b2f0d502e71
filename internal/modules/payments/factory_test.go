package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneonone97/Ecom-sub000/internal/modules/orders"
)

type stubGateway struct{ name string }

func (s stubGateway) Name() string { return s.name }
func (s stubGateway) CreatePaymentRequest(context.Context, CreateRequest) (CreateResponse, error) {
	return CreateResponse{}, nil
}
func (s stubGateway) VerifyPaymentResponse(context.Context, []byte) (VerificationResult, error) {
	return VerificationResult{}, nil
}
func (s stubGateway) CheckStatus(context.Context, StatusQuery) (VerificationResult, error) {
	return VerificationResult{}, nil
}
func (s stubGateway) VerifyWebhookSignature([]byte, string) bool { return false }
func (s stubGateway) ParseWebhook([]byte) (WebhookEvent, error) {
	return WebhookEvent{}, nil
}

func TestFactoryResolve(t *testing.T) {
	f := NewFactory("phonepe", stubGateway{name: "phonepe"}, stubGateway{name: "razorpay"})

	gw, err := f.Resolve("razorpay")
	require.NoError(t, err)
	assert.Equal(t, "razorpay", gw.Name())

	// empty name selects the configured default
	gw, err = f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "phonepe", gw.Name())

	_, err = f.Resolve("stripe")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}

func TestVerifierDetermineStatus(t *testing.T) {
	var v Verifier
	assert.Equal(t, orders.StatusPaid, v.DetermineStatus(VerificationResult{Success: true}))
	assert.Equal(t, orders.StatusFailed, v.DetermineStatus(VerificationResult{Success: false, RawStatus: "PAYMENT_ERROR"}))
}
