package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oneonone97/Ecom-sub000/internal/modules/checkout"
	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

type WebhookHandler struct {
	Logger *slog.Logger
	Svc    *checkout.Service
}

func NewWebhookHandler(logger *slog.Logger, svc *checkout.Service) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Svc: svc}
}

// signatureHeaders maps each gateway to the header carrying its signature.
var signatureHeaders = map[string]string{
	"phonepe":  "X-VERIFY",
	"razorpay": "X-Razorpay-Signature",
}

// POST /webhooks/:gateway
// Raw body only; the service verifies the signature before any parsing.
// 4xx tells the provider the delivery is bad and must not be retried,
// 5xx asks for a redelivery.
func (h *WebhookHandler) Handle(c *gin.Context) {
	gateway := c.Param("gateway")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	header, ok := signatureHeaders[gateway]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false})
		return
	}

	res, err := h.Svc.HandleWebhook(c.Request.Context(), gateway, c.GetHeader(header), body)
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= 500 {
			h.Logger.Error("webhook apply failed", "gateway", gateway, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		// invalid signature / malformed / unmatched: never retried
		c.JSON(status, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": res.OrderID, "status": res.Status})
}
