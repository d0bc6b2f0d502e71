package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
	"github.com/oneonone97/Ecom-sub000/internal/modules/orders"
	"github.com/oneonone97/Ecom-sub000/internal/modules/payments"
	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
	"github.com/oneonone97/Ecom-sub000/pkg/metrics"
)

const DefaultCurrency = "INR"

type OrderStore interface {
	CreateWithItems(ctx context.Context, in orders.CreateOrderInput) (orders.Order, error)
	GetByID(ctx context.Context, id string) (orders.Order, error)
	GetByMerchantTxnID(ctx context.Context, merchantTxnID string) (orders.Order, error)
	GetByGatewayRef(ctx context.Context, gateway, ref string) (orders.Order, error)
	SaveGatewayRefs(ctx context.Context, orderID string, refs orders.GatewayRefs) error
	TransitionFromPending(ctx context.Context, in orders.TransitionInput) (bool, error)
	StockLines(ctx context.Context, orderID string) ([]catalog.StockLine, error)
	Items(ctx context.Context, orderID string) ([]orders.OrderItem, error)
	MarkShipped(ctx context.Context, orderID string) error
}

type ProductCatalog interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type StockRestorer interface {
	Restore(ctx context.Context, lines []catalog.StockLine) error
}

type CartClearer interface {
	ClearForUser(ctx context.Context, userID string) error
}

type EventRecorder interface {
	Record(ctx context.Context, provider string, ev payments.WebhookEvent, rawBody []byte) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string, applyErr error) error
}

type Deps struct {
	Store    OrderStore
	Catalog  ProductCatalog
	Stock    StockRestorer
	Carts    CartClearer
	Events   EventRecorder
	Gateways *payments.Factory
	Logger   *slog.Logger
	Metrics  *metrics.CheckoutMetrics // optional

	GatewayTimeout time.Duration
	// ReserveStockOnFailure keeps the decrement when the gateway call (or the
	// payment itself) fails, instead of the default compensating restore.
	ReserveStockOnFailure bool
}

// Service is the checkout orchestrator: it owns initiate, verify, poll,
// webhook and cancel, and is the only writer of order status after creation.
type Service struct {
	store    OrderStore
	catalog  ProductCatalog
	stock    StockRestorer
	carts    CartClearer
	events   EventRecorder
	gateways *payments.Factory
	verifier payments.Verifier
	logger   *slog.Logger
	metrics  *metrics.CheckoutMetrics

	gatewayTimeout time.Duration
	reserveStock   bool
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.GatewayTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		store:          d.Store,
		catalog:        d.Catalog,
		stock:          d.Stock,
		carts:          d.Carts,
		events:         d.Events,
		gateways:       d.Gateways,
		logger:         logger,
		metrics:        d.Metrics,
		gatewayTimeout: timeout,
		reserveStock:   d.ReserveStockOnFailure,
	}
}

type InitiateInput struct {
	UserID  string
	Items   []Item
	Address Address
	Gateway string // empty => configured default
	Notes   string
}

type InitiateResult struct {
	OrderID       string `json:"order_id"`
	PaymentURL    string `json:"payment_url,omitempty"`
	MerchantTxnID string `json:"merchant_txn_id"`
	Gateway       string `json:"gateway"`
	GatewayOrder  string `json:"gateway_order_id,omitempty"`
	AmountPaise   int64  `json:"amount_paise"`
	Currency      string `json:"currency"`
}

// InitiateCheckout: validate → commit order+items+stock in one tx → provider
// call outside the tx → persist correlation ids, or compensate on failure.
func (s *Service) InitiateCheckout(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if err := ValidateCartItems(in.Items); err != nil {
		return InitiateResult{}, err
	}
	if err := ValidateShippingAddress(in.Address); err != nil {
		return InitiateResult{}, err
	}

	gw, err := s.gateways.Resolve(in.Gateway)
	if err != nil {
		return InitiateResult{}, apperr.InvalidErr("Unsupported payment gateway.", map[string]string{"gateway": in.Gateway})
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return InitiateResult{}, apperr.Wrap(err)
	}

	missing := map[string]string{}
	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.Active {
			missing[it.ProductID] = "product unavailable"
		}
	}
	if len(missing) > 0 {
		return InitiateResult{}, apperr.InvalidErr("Some products are unavailable.", missing)
	}

	// Advisory stock pre-check with every shortfall aggregated; the
	// authoritative check re-runs under FOR UPDATE inside the tx.
	err = ValidateStockAvailability(ctx, in.Items, func(_ context.Context, productID string) (int, error) {
		return products[productID].Stock, nil
	})
	if err != nil {
		return InitiateResult{}, stockErr(err)
	}

	var total int64
	items := make([]orders.NewItem, 0, len(in.Items))
	for _, it := range in.Items {
		p := products[it.ProductID]
		unit := p.EffectivePricePaise() // sale price wins when present
		total += unit * int64(it.Quantity)
		items = append(items, orders.NewItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Description:    p.Description,
			UnitPricePaise: unit,
			Quantity:       it.Quantity,
		})
	}

	addrJSON, err := json.Marshal(in.Address)
	if err != nil {
		return InitiateResult{}, apperr.Wrap(err)
	}

	var notes *string
	if n := strings.TrimSpace(in.Notes); n != "" {
		notes = &n
	}

	mtid := newMerchantTxnID()

	// Transaction boundary A
	o, err := s.store.CreateWithItems(ctx, orders.CreateOrderInput{
		UserID:              in.UserID,
		Gateway:             gw.Name(),
		MerchantTxnID:       mtid,
		AmountPaise:         total,
		Currency:            DefaultCurrency,
		ShippingAddressJSON: addrJSON,
		Notes:               notes,
		Items:               items,
	})
	if err != nil {
		return InitiateResult{}, stockErr(err)
	}

	// Provider call: outside the tx by necessity, never retried here.
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	started := time.Now()
	resp, gerr := gw.CreatePaymentRequest(gctx, payments.CreateRequest{
		OrderID:       o.ID,
		MerchantTxnID: o.MerchantTxnID,
		UserID:        o.UserID,
		AmountPaise:   o.AmountPaise,
		Currency:      o.Currency,
	})
	s.observeGateway(gw.Name(), "create", started)

	if gerr != nil {
		s.compensateGatewayFailure(ctx, o, gw.Name(), gerr)
		s.countCheckout(gw.Name(), "gateway_failed")
		return InitiateResult{}, apperr.GatewayErr("Payment could not be started.", gerr)
	}

	refs := orders.GatewayRefs{}
	if resp.GatewayOrderID != "" {
		v := resp.GatewayOrderID
		refs.OrderID = &v
	}
	if resp.GatewayTxnID != "" {
		v := resp.GatewayTxnID
		refs.TxnID = &v
	}
	if refs.OrderID != nil || refs.TxnID != nil {
		if err := s.store.SaveGatewayRefs(ctx, o.ID, refs); err != nil {
			// correlation loss is recoverable via merchant txn id; log and go on
			s.logger.Error("failed to persist gateway refs", "order_id", o.ID, "err", err)
		}
	}

	s.countCheckout(gw.Name(), "initiated")
	s.logger.Info("checkout initiated",
		"order_id", o.ID, "user_id", o.UserID, "gateway", gw.Name(),
		"merchant_txn_id", o.MerchantTxnID, "amount_paise", o.AmountPaise)

	return InitiateResult{
		OrderID:       o.ID,
		PaymentURL:    resp.PaymentURL,
		MerchantTxnID: o.MerchantTxnID,
		Gateway:       gw.Name(),
		GatewayOrder:  resp.GatewayOrderID,
		AmountPaise:   o.AmountPaise,
		Currency:      o.Currency,
	}, nil
}

// compensateGatewayFailure marks the order failed and, unless the
// reserve-on-failure policy is on, puts the decremented stock back.
func (s *Service) compensateGatewayFailure(ctx context.Context, o orders.Order, gateway string, gerr error) {
	applied, err := s.store.TransitionFromPending(ctx, orders.TransitionInput{
		OrderID: o.ID,
		To:      orders.StatusFailed,
		Actor:   "gateway:" + gateway,
		Note:    "createPaymentRequest failed: " + gerr.Error(),
	})
	if err != nil {
		s.logger.Error("failed to mark order failed after gateway error", "order_id", o.ID, "err", err)
		return
	}
	if applied {
		s.countTransition(gateway, orders.StatusFailed)
		s.restoreStockForOrder(ctx, o.ID)
	}
}

func (s *Service) restoreStockForOrder(ctx context.Context, orderID string) {
	if s.reserveStock {
		return
	}
	lines, err := s.store.StockLines(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to load stock lines for restore", "order_id", orderID, "err", err)
		return
	}
	if err := s.stock.Restore(ctx, lines); err != nil {
		s.logger.Error("failed to restore stock", "order_id", orderID, "err", err)
	}
}

type VerifyResult struct {
	Success          bool   `json:"success"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Gateway          string `json:"gateway"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

// VerifyPayment is the synchronous confirmation path. A non-pending order is
// returned as-is: duplicate callbacks are a no-op, not an error.
func (s *Service) VerifyPayment(ctx context.Context, orderID string, payload []byte) (VerifyResult, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return VerifyResult{}, notFoundErr(err)
	}
	if o.Status != orders.StatusPending {
		return alreadyProcessed(o), nil
	}

	gw, err := s.gateways.Resolve(o.Gateway)
	if err != nil {
		return VerifyResult{}, apperr.Wrap(err)
	}

	// may re-confirm against the provider's status API, so it gets the
	// gateway timeout
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	started := time.Now()
	vr, err := gw.VerifyPaymentResponse(gctx, payload)
	s.observeGateway(gw.Name(), "verify", started)
	if err != nil {
		if errors.Is(err, payments.ErrMalformedPayload) {
			return VerifyResult{}, apperr.InvalidErr("Invalid payment confirmation payload.", nil)
		}
		return VerifyResult{}, apperr.GatewayErr("Payment confirmation failed.", err)
	}

	return s.applyVerification(ctx, o, vr, "client")
}

// CheckPaymentStatus is the polling fallback for orders where neither the
// redirect nor the webhook arrived.
func (s *Service) CheckPaymentStatus(ctx context.Context, merchantTxnID string) (VerifyResult, error) {
	o, err := s.store.GetByMerchantTxnID(ctx, merchantTxnID)
	if err != nil {
		return VerifyResult{}, notFoundErr(err)
	}
	if o.Status != orders.StatusPending {
		return alreadyProcessed(o), nil
	}

	gw, err := s.gateways.Resolve(o.Gateway)
	if err != nil {
		return VerifyResult{}, apperr.Wrap(err)
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	started := time.Now()
	vr, err := gw.CheckStatus(gctx, payments.StatusQuery{
		MerchantTxnID:  o.MerchantTxnID,
		GatewayOrderID: deref(o.GatewayOrderID),
		GatewayTxnID:   deref(o.GatewayTxnID),
	})
	s.observeGateway(gw.Name(), "status", started)
	if err != nil {
		return VerifyResult{}, apperr.GatewayErr("Payment status check failed.", err)
	}

	return s.applyVerification(ctx, o, vr, "poller")
}

type WebhookResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// HandleWebhook: signature over raw bytes first, then normalize, then resolve
// the order, then the shared pending-guarded apply. Terminal failure at any
// stage short-circuits with no side effects beyond logging.
func (s *Service) HandleWebhook(ctx context.Context, gatewayName, signatureHeader string, rawBody []byte) (WebhookResult, error) {
	gw, err := s.gateways.Resolve(gatewayName)
	if err != nil {
		return WebhookResult{}, apperr.InvalidErr("Unsupported payment gateway.", nil)
	}

	if !gw.VerifyWebhookSignature(rawBody, signatureHeader) {
		// security event; deliberately no detail about what failed
		s.logger.Warn("webhook signature rejected", "gateway", gw.Name())
		s.countWebhook(gw.Name(), "invalid_signature")
		return WebhookResult{}, apperr.SignatureErr()
	}

	ev, err := gw.ParseWebhook(rawBody)
	if err != nil {
		s.countWebhook(gw.Name(), "malformed")
		return WebhookResult{}, apperr.InvalidErr("Invalid webhook payload.", nil)
	}

	o, err := s.resolveWebhookOrder(ctx, gw.Name(), ev)
	if err != nil {
		s.countWebhook(gw.Name(), "unmatched")
		return WebhookResult{}, err
	}

	fresh, err := s.events.Record(ctx, gw.Name(), ev, rawBody)
	if err != nil {
		return WebhookResult{}, apperr.Wrap(err)
	}
	if !fresh && o.Status != orders.StatusPending {
		// replayed delivery, already settled: guaranteed no-op
		s.countWebhook(gw.Name(), "duplicate")
		return WebhookResult{Success: true, OrderID: o.ID, Status: o.Status}, nil
	}

	vres, applyErr := s.applyVerification(ctx, o, payments.VerificationResult{
		Success:        ev.Success,
		Pending:        ev.Pending,
		GatewayOrderID: ev.GatewayOrderID,
		GatewayTxnID:   ev.GatewayTxnID,
		RawStatus:      ev.RawStatus,
	}, "webhook:"+gw.Name())

	if err := s.events.MarkProcessed(ctx, gw.Name(), ev.EventID, applyErr); err != nil {
		s.logger.Error("failed to mark provider event processed", "gateway", gw.Name(), "event_id", ev.EventID, "err", err)
	}
	if applyErr != nil {
		s.countWebhook(gw.Name(), "apply_failed")
		return WebhookResult{}, applyErr
	}

	s.countWebhook(gw.Name(), "processed")
	return WebhookResult{Success: true, OrderID: vres.OrderID, Status: vres.Status}, nil
}

func (s *Service) resolveWebhookOrder(ctx context.Context, gateway string, ev payments.WebhookEvent) (orders.Order, error) {
	for _, ref := range []string{ev.GatewayTxnID, ev.GatewayOrderID} {
		if ref == "" {
			continue
		}
		o, err := s.store.GetByGatewayRef(ctx, gateway, ref)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, orders.ErrOrderNotFound) {
			return orders.Order{}, apperr.Wrap(err)
		}
	}
	// provider may not echo its own id yet; fall back to our key
	if ev.MerchantTxnID != "" {
		o, err := s.store.GetByMerchantTxnID(ctx, ev.MerchantTxnID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, orders.ErrOrderNotFound) {
			return orders.Order{}, apperr.Wrap(err)
		}
	}
	return orders.Order{}, apperr.NotFoundErr("Order not found for webhook.")
}

// CancelOrder: forward-only pending→cancelled, only before shipment, same CAS
// discipline as every other transition. Released stock always goes back.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (VerifyResult, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return VerifyResult{}, notFoundErr(err)
	}
	if userID != "" && o.UserID != userID {
		return VerifyResult{}, apperr.NotFoundErr("Order not found.")
	}
	if o.ShippedAt != nil || o.Status != orders.StatusPending {
		return VerifyResult{}, apperr.ConflictErr("Order can no longer be cancelled.")
	}

	applied, err := s.store.TransitionFromPending(ctx, orders.TransitionInput{
		OrderID: o.ID,
		To:      orders.StatusCancelled,
		Actor:   "client",
		Note:    "cancelled by customer",
	})
	if err != nil {
		return VerifyResult{}, apperr.Wrap(err)
	}
	if !applied {
		return VerifyResult{}, apperr.ConflictErr("Order can no longer be cancelled.")
	}

	s.countTransition(o.Gateway, orders.StatusCancelled)

	// a cancelled reservation is always released, whatever the failure policy
	lines, lerr := s.store.StockLines(ctx, o.ID)
	if lerr != nil {
		s.logger.Error("failed to load stock lines for restore", "order_id", o.ID, "err", lerr)
	} else if err := s.stock.Restore(ctx, lines); err != nil {
		s.logger.Error("failed to restore stock", "order_id", o.ID, "err", err)
	}

	return VerifyResult{Success: true, OrderID: o.ID, Status: orders.StatusCancelled, Gateway: o.Gateway}, nil
}

// MarkOrderShipped is the fulfilment hook. Only a paid, not-yet-shipped order
// ships; once shipped, cancellation is closed off for good.
func (s *Service) MarkOrderShipped(ctx context.Context, orderID string) error {
	if err := s.store.MarkShipped(ctx, orderID); err != nil {
		if errors.Is(err, orders.ErrInvalidTransition) {
			return apperr.ConflictErr("Order cannot be shipped.")
		}
		return apperr.Wrap(err)
	}
	s.logger.Info("order shipped", "order_id", orderID)
	return nil
}

// GetOrder is a read-through for the HTTP layer.
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (orders.Order, []orders.OrderItem, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return orders.Order{}, nil, notFoundErr(err)
	}
	if userID != "" && o.UserID != userID {
		return orders.Order{}, nil, apperr.NotFoundErr("Order not found.")
	}
	items, err := s.store.Items(ctx, o.ID)
	if err != nil {
		return orders.Order{}, nil, apperr.Wrap(err)
	}
	return o, items, nil
}

// applyVerification is the one pending→terminal apply path shared by verify,
// polling and webhooks. The CAS in the store closes the race between them.
func (s *Service) applyVerification(ctx context.Context, o orders.Order, vr payments.VerificationResult, actor string) (VerifyResult, error) {
	if vr.Pending {
		// provider has not settled; stay pending
		return VerifyResult{OrderID: o.ID, Status: o.Status, Gateway: o.Gateway}, nil
	}

	to := s.verifier.DetermineStatus(vr)

	refs := orders.GatewayRefs{}
	if vr.GatewayOrderID != "" {
		v := vr.GatewayOrderID
		refs.OrderID = &v
	}
	if vr.GatewayTxnID != "" {
		v := vr.GatewayTxnID
		refs.TxnID = &v
	}

	applied, err := s.store.TransitionFromPending(ctx, orders.TransitionInput{
		OrderID: o.ID,
		To:      to,
		Actor:   actor,
		Note:    vr.RawStatus,
		Refs:    refs,
	})
	if err != nil {
		return VerifyResult{}, apperr.Wrap(err)
	}
	if !applied {
		// a concurrent caller won; report whatever is terminal now
		cur, err := s.store.GetByID(ctx, o.ID)
		if err != nil {
			return VerifyResult{}, apperr.Wrap(err)
		}
		return alreadyProcessed(cur), nil
	}

	s.countTransition(o.Gateway, to)
	s.logger.Info("order transition applied",
		"order_id", o.ID, "to", to, "actor", actor, "raw_status", vr.RawStatus)

	switch to {
	case orders.StatusPaid:
		// best-effort: never undo payment state over a cart failure
		if err := s.carts.ClearForUser(ctx, o.UserID); err != nil {
			s.logger.Error("failed to clear cart after payment", "order_id", o.ID, "user_id", o.UserID, "err", err)
		}
	case orders.StatusFailed:
		s.restoreStockForOrder(ctx, o.ID)
	}

	return VerifyResult{
		Success: to == orders.StatusPaid,
		OrderID: o.ID,
		Status:  to,
		Gateway: o.Gateway,
	}, nil
}

func alreadyProcessed(o orders.Order) VerifyResult {
	return VerifyResult{
		Success:          o.Status == orders.StatusPaid,
		OrderID:          o.ID,
		Status:           o.Status,
		Gateway:          o.Gateway,
		AlreadyProcessed: true,
	}
}

func stockErr(err error) error {
	var oos *catalog.OutOfStockError
	if errors.As(err, &oos) {
		return apperr.StockErr("Some items are out of stock.", oos.Fields(), err)
	}
	return apperr.Wrap(err)
}

func notFoundErr(err error) error {
	if errors.Is(err, orders.ErrOrderNotFound) {
		return apperr.NotFoundErr("Order not found.")
	}
	return apperr.Wrap(err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newMerchantTxnID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "MT" + hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return "MT" + strings.ToUpper(hex.EncodeToString(b))
}

// --- metrics helpers (nil-safe; metrics are optional in tests) ---

func (s *Service) countCheckout(gateway, outcome string) {
	if s.metrics != nil {
		s.metrics.Checkouts.WithLabelValues(gateway, outcome).Inc()
	}
}

func (s *Service) countTransition(gateway, status string) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(gateway, status).Inc()
	}
}

func (s *Service) countWebhook(gateway, result string) {
	if s.metrics != nil {
		s.metrics.Webhooks.WithLabelValues(gateway, result).Inc()
	}
}

func (s *Service) observeGateway(gateway, op string, started time.Time) {
	if s.metrics != nil {
		s.metrics.GatewayLatency.WithLabelValues(gateway, op).Observe(float64(time.Since(started).Milliseconds()))
	}
}
