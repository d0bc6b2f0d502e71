package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

func TestValidateCartItems(t *testing.T) {
	assert.NoError(t, ValidateCartItems([]Item{{ProductID: "p1", Quantity: 1}}))

	err := ValidateCartItems(nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Invalid))

	// every bad line reported, not just the first
	err = ValidateCartItems([]Item{
		{ProductID: "", Quantity: 2},
		{ProductID: "p2", Quantity: 0},
		{ProductID: "p3", Quantity: -1},
	})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Len(t, ae.Fields, 3)
	assert.Contains(t, ae.Fields, "items[0].product_id")
	assert.Contains(t, ae.Fields, "items[1].quantity")
	assert.Contains(t, ae.Fields, "items[2].quantity")
}

func TestValidateShippingAddress(t *testing.T) {
	ok := Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", Phone: "9999999999"}
	assert.NoError(t, ValidateShippingAddress(ok))

	// email alone satisfies the contact requirement
	ok.Phone = ""
	ok.Email = "asha@example.com"
	assert.NoError(t, ValidateShippingAddress(ok))

	err := ValidateShippingAddress(Address{})
	require.Error(t, err)
	ae, _ := apperr.As(err)
	assert.Contains(t, ae.Fields, "name")
	assert.Contains(t, ae.Fields, "line1")
	assert.Contains(t, ae.Fields, "city")
	assert.Contains(t, ae.Fields, "phone")
}

func TestValidateStockAvailability(t *testing.T) {
	stock := map[string]int{"p1": 5, "p2": 1, "p3": 0}
	lookup := func(_ context.Context, id string) (int, error) { return stock[id], nil }

	err := ValidateStockAvailability(context.Background(), []Item{{ProductID: "p1", Quantity: 5}}, lookup)
	assert.NoError(t, err)

	err = ValidateStockAvailability(context.Background(), []Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p3", Quantity: 1},
	}, lookup)
	require.Error(t, err)

	var oos *catalog.OutOfStockError
	require.ErrorAs(t, err, &oos)
	require.Len(t, oos.Items, 2)
	assert.Equal(t, "p2", oos.Items[0].ProductID)
	assert.Equal(t, 1, oos.Items[0].Available)
	assert.Equal(t, "p3", oos.Items[1].ProductID)
}

func TestValidateStockAvailabilityLookupError(t *testing.T) {
	boom := errors.New("db down")
	err := ValidateStockAvailability(context.Background(), []Item{{ProductID: "p1", Quantity: 1}},
		func(context.Context, string) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}
