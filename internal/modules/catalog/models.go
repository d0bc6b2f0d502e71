package catalog

import "time"

type Product struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Description    *string   `gorm:"type:text"`
	PricePaise     int64     `gorm:"not null"`
	SalePricePaise *int64    `gorm:""`
	Stock          int       `gorm:"not null;default:0"`
	Active         bool      `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt      time.Time `gorm:"type:datetime(3);not null"`
}

func (Product) TableName() string { return "products" }

// EffectivePricePaise: sale price wins while it actually undercuts the
// regular price. Amounts are integer paise end to end.
func (p Product) EffectivePricePaise() int64 {
	if p.SalePricePaise != nil && *p.SalePricePaise > 0 && *p.SalePricePaise < p.PricePaise {
		return *p.SalePricePaise
	}
	return p.PricePaise
}
