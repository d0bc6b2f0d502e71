package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The cart is an external collaborator of the settlement engine: checkout
// only ever clears it after a successful payment.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetOrCreateUserCart(ctx context.Context, userID string) (Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).
		Where(Cart{UserID: userID}).
		Attrs(Cart{ID: uuid.NewString()}).
		FirstOrCreate(&c).Error
	return c, err
}

func (r *Repo) AddItem(ctx context.Context, cartID, productID string, qty int) error {
	item := CartItem{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  qty,
	}
	return r.db.WithContext(ctx).Create(&item).Error
}

// ClearForUser empties the user's cart. Best-effort from the caller's point
// of view: a failure here must never roll back a payment.
func (r *Repo) ClearForUser(ctx context.Context, userID string) error {
	var c Cart
	err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return r.db.WithContext(ctx).Where("cart_id = ?", c.ID).Delete(&CartItem{}).Error
}
