package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/oneonone97/Ecom-sub000/internal/modules/cart"
	"github.com/oneonone97/Ecom-sub000/internal/modules/catalog"
)

// Seeds a handful of products and a demo cart so the checkout flow can be
// exercised locally right after createtable.
//
//	seed -user demo-user-1
func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "demo-user-1", "User id to build a demo cart for")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()

	saleMug := int64(39900)
	products := []catalog.Product{
		{ID: uuid.NewString(), Name: "Electric Kettle 1.5L", PricePaise: 149900, Stock: 25, Active: true},
		{ID: uuid.NewString(), Name: "Ceramic Mug", PricePaise: 49900, SalePricePaise: &saleMug, Stock: 100, Active: true},
		{ID: uuid.NewString(), Name: "French Press 600ml", PricePaise: 99900, Stock: 12, Active: true},
	}
	if err := db.WithContext(ctx).Create(&products).Error; err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}

	// read each one back through the repo to confirm the rows round-trip
	repo := catalog.NewRepo(db)
	for _, p := range products {
		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			log.Fatalf("Seeded product %s not readable: %v", p.ID, err)
		}
		fmt.Printf("product %s  %-22s  %d paise (effective %d)  stock=%d\n",
			got.ID, got.Name, got.PricePaise, got.EffectivePricePaise(), got.Stock)
	}

	carts := cart.NewRepo(db)
	c, err := carts.GetOrCreateUserCart(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to create demo cart: %v", err)
	}
	if err := carts.AddItem(ctx, c.ID, products[0].ID, 1); err != nil {
		log.Fatalf("Failed to add cart item: %v", err)
	}
	if err := carts.AddItem(ctx, c.ID, products[1].ID, 2); err != nil {
		log.Fatalf("Failed to add cart item: %v", err)
	}
	fmt.Printf("cart %s seeded for user %s with 2 line items\n", c.ID, *userID)
}
