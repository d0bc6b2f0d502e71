package orders

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Order is the settlement engine's root entity. MerchantTxnID is generated by
// us before any provider interaction; GatewayOrderID/GatewayTxnID are
// provider-issued and which one is filled depends on the gateway (Razorpay
// issues an order id up front, PhonePe a transaction id later).
type Order struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	UserID string `gorm:"type:char(36);not null;index:ix_orders_user_id"`

	Status  string `gorm:"type:varchar(16);not null;index:ix_orders_status"`
	Gateway string `gorm:"type:varchar(32);not null"`

	MerchantTxnID  string  `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_merchant_txn"`
	GatewayOrderID *string `gorm:"type:varchar(128);index:ix_orders_gateway_order"`
	GatewayTxnID   *string `gorm:"type:varchar(128);index:ix_orders_gateway_txn"`

	AmountPaise int64  `gorm:"not null"`
	Currency    string `gorm:"type:char(3);not null;default:'INR'"`

	// Immutable snapshot; orders must survive later address-book edits.
	ShippingAddressJSON datatypes.JSON `gorm:"type:json;not null"`

	Notes *string `gorm:"type:varchar(500)"`

	PaidAt      *time.Time `gorm:"type:datetime(3)"`
	CancelledAt *time.Time `gorm:"type:datetime(3)"`
	ShippedAt   *time.Time `gorm:"type:datetime(3)"`
	CreatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt   time.Time  `gorm:"type:datetime(3);not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem freezes product name/price at order time; later catalog edits
// never change historical orders. Rows cascade-delete with their order.
type OrderItem struct {
	ID      string `gorm:"type:char(36);primaryKey"`
	OrderID string `gorm:"type:char(36);not null;index:ix_order_items_order_id"`

	ProductID      string  `gorm:"type:char(36);not null;index:ix_order_items_product_id"`
	ProductName    string  `gorm:"type:varchar(255);not null"`
	Description    *string `gorm:"type:text"`
	UnitPricePaise int64   `gorm:"not null"`
	Quantity       int     `gorm:"not null"`
	LineTotalPaise int64   `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderEvent is the audit trail: one row per attempted/applied transition.
type OrderEvent struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	OrderID    string    `gorm:"type:char(36);not null;index:ix_order_events_order_id"`
	Actor      string    `gorm:"type:varchar(64);not null"`
	Action     string    `gorm:"type:varchar(32);not null"`
	FromStatus string    `gorm:"type:varchar(16);not null"`
	ToStatus   string    `gorm:"type:varchar(16);not null"`
	Note       *string   `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"type:datetime(3);not null"`
}

func (OrderEvent) TableName() string { return "order_events" }

// LifecycleEvent is the outbox payload for orders.lifecycle.
type LifecycleEvent struct {
	Type          string `json:"type"` // order.created|order.paid|order.failed|order.cancelled
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	Gateway       string `json:"gateway"`
	MerchantTxnID string `json:"merchant_txn_id"`
	AmountPaise   int64  `json:"amount_paise"`
	Currency      string `json:"currency"`
}
