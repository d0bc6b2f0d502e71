package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
	"github.com/oneonone97/Ecom-sub000/internal/modules/events"
)

type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

type NewItem struct {
	ProductID      string
	ProductName    string
	Description    *string
	UnitPricePaise int64
	Quantity       int
}

type CreateOrderInput struct {
	UserID              string
	Gateway             string
	MerchantTxnID       string
	AmountPaise         int64
	Currency            string
	ShippingAddressJSON []byte
	Notes               *string
	Items               []NewItem
}

// CreateWithItems is transaction boundary A: order, items, stock decrement and
// the order.created outbox record commit atomically. On any failure nothing
// is visible. Retried on deadlock since the stock deduct takes row locks.
func (s *Store) CreateWithItems(ctx context.Context, in CreateOrderInput) (Order, error) {
	now := time.Now()
	o := Order{
		ID:                  uuid.NewString(),
		UserID:              in.UserID,
		Status:              StatusPending,
		Gateway:             in.Gateway,
		MerchantTxnID:       in.MerchantTxnID,
		AmountPaise:         in.AmountPaise,
		Currency:            in.Currency,
		ShippingAddressJSON: in.ShippingAddressJSON,
		Notes:               in.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := catalog.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&o).Error; err != nil {
			return err
		}

		lines := make([]catalog.StockLine, 0, len(in.Items))
		for _, it := range in.Items {
			item := OrderItem{
				ID:             uuid.NewString(),
				OrderID:        o.ID,
				ProductID:      it.ProductID,
				ProductName:    it.ProductName,
				Description:    it.Description,
				UnitPricePaise: it.UnitPricePaise,
				Quantity:       it.Quantity,
				LineTotalPaise: it.UnitPricePaise * int64(it.Quantity),
				CreatedAt:      now,
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}
			lines = append(lines, catalog.StockLine{ProductID: it.ProductID, Qty: it.Quantity})
		}

		if err := catalog.DeductStockInTx(ctx, tx, lines); err != nil {
			return err
		}

		ev := OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Actor:      "checkout",
			Action:     "create",
			FromStatus: "",
			ToStatus:   StatusPending,
			CreatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
			return err
		}

		return events.EnqueueInTx(ctx, tx, events.TopicOrderLifecycle, o.ID, LifecycleEvent{
			Type:          "order.created",
			OrderID:       o.ID,
			UserID:        o.UserID,
			Status:        o.Status,
			Gateway:       o.Gateway,
			MerchantTxnID: o.MerchantTxnID,
			AmountPaise:   o.AmountPaise,
			Currency:      o.Currency,
		})
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (s *Store) GetByMerchantTxnID(ctx context.Context, merchantTxnID string) (Order, error) {
	var o Order
	if err := s.db.WithContext(ctx).First(&o, "merchant_txn_id = ?", merchantTxnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// GetByGatewayRef resolves an order by a provider-issued id (transaction id
// first, then order id) for webhook deliveries that don't echo our key.
func (s *Store) GetByGatewayRef(ctx context.Context, gateway, ref string) (Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		First(&o, "gateway = ? AND (gateway_txn_id = ? OR gateway_order_id = ?)", gateway, ref, ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (s *Store) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&items, "order_id = ?", orderID).Error
	return items, err
}

// StockLines rebuilds the deduction lines for compensation.
func (s *Store) StockLines(ctx context.Context, orderID string) ([]catalog.StockLine, error) {
	items, err := s.Items(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines := make([]catalog.StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, catalog.StockLine{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return lines, nil
}

type GatewayRefs struct {
	OrderID *string // provider order id (Razorpay)
	TxnID   *string // provider transaction/payment id
}

func (s *Store) SaveGatewayRefs(ctx context.Context, orderID string, refs GatewayRefs) error {
	updates := map[string]any{"updated_at": time.Now()}
	if refs.OrderID != nil && *refs.OrderID != "" {
		updates["gateway_order_id"] = *refs.OrderID
	}
	if refs.TxnID != nil && *refs.TxnID != "" {
		updates["gateway_txn_id"] = *refs.TxnID
	}
	return s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

type TransitionInput struct {
	OrderID string
	To      string // paid|failed|cancelled
	Actor   string // "gateway:<name>", "webhook:<name>", "client", "poller"
	Note    string
	Refs    GatewayRefs
}

// TransitionFromPending applies a pending→terminal transition as one
// conditional UPDATE. Two racing callers can both observe pending; only the
// one whose UPDATE matches a row wins, the other gets applied=false and must
// re-read. Audit row and outbox record commit with the winning write only.
func (s *Store) TransitionFromPending(ctx context.Context, in TransitionInput) (bool, error) {
	if in.To != StatusPaid && in.To != StatusFailed && in.To != StatusCancelled {
		return false, ErrInvalidTransition
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		updates := map[string]any{"status": in.To, "updated_at": now}
		switch in.To {
		case StatusPaid:
			updates["paid_at"] = now
		case StatusCancelled:
			updates["cancelled_at"] = now
		}
		if in.Refs.OrderID != nil && *in.Refs.OrderID != "" {
			updates["gateway_order_id"] = *in.Refs.OrderID
		}
		if in.Refs.TxnID != nil && *in.Refs.TxnID != "" {
			updates["gateway_txn_id"] = *in.Refs.TxnID
		}

		res := tx.WithContext(ctx).Model(&Order{}).
			Where("id = ? AND status = ?", in.OrderID, StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// lost the race or already terminal; caller re-reads
			return nil
		}
		applied = true

		var o Order
		if err := tx.WithContext(ctx).First(&o, "id = ?", in.OrderID).Error; err != nil {
			return err
		}

		var notePtr *string
		if in.Note != "" {
			n := in.Note
			notePtr = &n
		}
		ev := OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    in.OrderID,
			Actor:      in.Actor,
			Action:     "transition",
			FromStatus: StatusPending,
			ToStatus:   in.To,
			Note:       notePtr,
			CreatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
			return err
		}

		return events.EnqueueInTx(ctx, tx, events.TopicOrderLifecycle, o.ID, LifecycleEvent{
			Type:          "order." + in.To,
			OrderID:       o.ID,
			UserID:        o.UserID,
			Status:        o.Status,
			Gateway:       o.Gateway,
			MerchantTxnID: o.MerchantTxnID,
			AmountPaise:   o.AmountPaise,
			Currency:      o.Currency,
		})
	})
	return applied, err
}

// MarkShipped is used by the fulfilment collaborator; pending orders cannot
// ship and cancelled/failed ones have nothing to ship.
func (s *Store) MarkShipped(ctx context.Context, orderID string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ? AND shipped_at IS NULL", orderID, StatusPaid).
		Updates(map[string]any{"shipped_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrInvalidTransition
	}
	return nil
}
