package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oneonone97/Ecom-sub000/internal/http/middleware"
	"github.com/oneonone97/Ecom-sub000/internal/http/validation"
	"github.com/oneonone97/Ecom-sub000/internal/modules/checkout"
	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

type CheckoutHandler struct {
	Logger *slog.Logger
	Svc    *checkout.Service
}

func NewCheckoutHandler(logger *slog.Logger, svc *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{Logger: logger, Svc: svc}
}

type checkoutItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type checkoutAddressInput struct {
	Name       string `json:"name" binding:"required,max=200"`
	Phone      string `json:"phone" binding:"omitempty,max=32"`
	Email      string `json:"email" binding:"omitempty,email,max=255"`
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"omitempty,max=255"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"omitempty,max=100"`
	PostalCode string `json:"postal_code" binding:"omitempty,max=32"`
}

type checkoutInput struct {
	Items   []checkoutItemInput  `json:"items" binding:"required,min=1,dive"`
	Address checkoutAddressInput `json:"address" binding:"required"`
	Gateway string               `json:"gateway" binding:"omitempty,oneof=phonepe razorpay"`
	Notes   string               `json:"notes" binding:"omitempty,max=500"`
}

// POST /api/checkout
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var in checkoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fields := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid checkout request.", fields))
		return
	}

	items := make([]checkout.Item, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, checkout.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.Svc.InitiateCheckout(c.Request.Context(), checkout.InitiateInput{
		UserID: middleware.CurrentUserID(c),
		Items:  items,
		Address: checkout.Address{
			Name:       in.Address.Name,
			Phone:      in.Address.Phone,
			Email:      in.Address.Email,
			Line1:      in.Address.Line1,
			Line2:      in.Address.Line2,
			City:       in.Address.City,
			State:      in.Address.State,
			PostalCode: in.Address.PostalCode,
		},
		Gateway: in.Gateway,
		Notes:   in.Notes,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// POST /api/orders/:id/verify
// Body is the gateway's confirmation payload, passed through opaque.
func (h *CheckoutHandler) Verify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", nil))
		return
	}

	res, err := h.Svc.VerifyPayment(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/payments/:mtid/status
func (h *CheckoutHandler) Status(c *gin.Context) {
	res, err := h.Svc.CheckPaymentStatus(c.Request.Context(), c.Param("mtid"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/orders/:id/cancel
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	res, err := h.Svc.CancelOrder(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/orders/:id/ship
// Fulfilment callers only; the upstream gateway scopes who can reach it.
func (h *CheckoutHandler) Ship(c *gin.Context) {
	if err := h.Svc.MarkOrderShipped(c.Request.Context(), c.Param("id")); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/orders/:id
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	o, items, err := h.Svc.GetOrder(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	type itemOut struct {
		ProductID      string `json:"product_id"`
		ProductName    string `json:"product_name"`
		UnitPricePaise int64  `json:"unit_price_paise"`
		Quantity       int    `json:"quantity"`
		LineTotalPaise int64  `json:"line_total_paise"`
	}
	out := make([]itemOut, 0, len(items))
	for _, it := range items {
		out = append(out, itemOut{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			UnitPricePaise: it.UnitPricePaise,
			Quantity:       it.Quantity,
			LineTotalPaise: it.LineTotalPaise,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":        o.ID,
		"status":          o.Status,
		"gateway":         o.Gateway,
		"merchant_txn_id": o.MerchantTxnID,
		"amount_paise":    o.AmountPaise,
		"currency":        o.Currency,
		"created_at":      o.CreatedAt,
		"paid_at":         o.PaidAt,
		"cancelled_at":    o.CancelledAt,
		"items":           out,
	})
}
