package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
}

// ValidateCartItems rejects an empty cart, non-positive quantities and items
// without a product reference. All problems are collected into one field map;
// expected-invalid input never panics or aborts early.
func ValidateCartItems(items []Item) error {
	if len(items) == 0 {
		return apperr.InvalidErr("Cart is empty.", map[string]string{"items": "at least one item is required"})
	}

	fields := map[string]string{}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "product reference is required"
		}
		if it.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be positive"
		}
	}
	if len(fields) > 0 {
		return apperr.InvalidErr("Invalid cart items.", fields)
	}
	return nil
}

// ValidateShippingAddress requires the minimal deliverable set: recipient,
// street, city, and at least one of phone/email.
func ValidateShippingAddress(a Address) error {
	fields := map[string]string{}
	if strings.TrimSpace(a.Name) == "" {
		fields["name"] = "recipient name is required"
	}
	if strings.TrimSpace(a.Line1) == "" {
		fields["line1"] = "street address is required"
	}
	if strings.TrimSpace(a.City) == "" {
		fields["city"] = "city is required"
	}
	if strings.TrimSpace(a.Phone) == "" && strings.TrimSpace(a.Email) == "" {
		fields["phone"] = "phone or email is required"
	}
	if len(fields) > 0 {
		return apperr.InvalidErr("Invalid shipping address.", fields)
	}
	return nil
}

// StockLookup reports the available quantity for a product.
type StockLookup func(ctx context.Context, productID string) (int, error)

// ValidateStockAvailability checks every line and aggregates all shortfalls
// instead of failing fast, so the customer sees every problem at once. This
// is the advisory pre-check; the authoritative check runs under row locks
// inside the order transaction.
func ValidateStockAvailability(ctx context.Context, items []Item, lookup StockLookup) error {
	var oos []catalog.OutOfStockItem
	for _, it := range items {
		avail, err := lookup(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if avail < it.Quantity {
			oos = append(oos, catalog.OutOfStockItem{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: avail,
			})
		}
	}
	if len(oos) > 0 {
		return &catalog.OutOfStockError{Items: oos}
	}
	return nil
}
