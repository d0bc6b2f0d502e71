package payments

import "github.com/oneonone97/Ecom-sub000/internal/modules/orders"

// Verifier is the single place a verification result becomes an order status.
// It is gateway-agnostic on purpose: adapters normalize, this decides.
type Verifier struct{}

// DetermineStatus maps success onto paid and anything else onto failed.
// Pending results never reach here; the orchestrator short-circuits them.
func (Verifier) DetermineStatus(vr VerificationResult) string {
	if vr.Success {
		return orders.StatusPaid
	}
	return orders.StatusFailed
}
