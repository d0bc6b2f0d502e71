package catalog

import (
	"fmt"
	"strings"
)

type OutOfStockItem struct {
	ProductID string
	Requested int
	Available int
}

// OutOfStockError carries every shortfall found, not just the first one, so
// the caller can show the customer the whole problem at once.
type OutOfStockError struct {
	Items []OutOfStockItem
}

func (e *OutOfStockError) Error() string {
	if len(e.Items) == 0 {
		return "out of stock"
	}
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("product=%s requested=%d available=%d", it.ProductID, it.Requested, it.Available))
	}
	return "out of stock: " + strings.Join(parts, "; ")
}

func (e *OutOfStockError) Fields() map[string]string {
	out := make(map[string]string, len(e.Items))
	for _, it := range e.Items {
		out[it.ProductID] = fmt.Sprintf("only %d available (requested %d)", it.Available, it.Requested)
	}
	return out
}
