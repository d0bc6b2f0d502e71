package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS products (
	  id CHAR(36) NOT NULL,
	  name VARCHAR(255) NOT NULL,
	  description TEXT NULL,
	  price_paise BIGINT NOT NULL,
	  sale_price_paise BIGINT NULL,
	  stock INT NOT NULL DEFAULT 0,
	  active TINYINT(1) NOT NULL DEFAULT 1,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS orders (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  status VARCHAR(16) NOT NULL DEFAULT 'pending',
	  gateway VARCHAR(32) NOT NULL,
	  merchant_txn_id VARCHAR(64) NOT NULL,
	  gateway_order_id VARCHAR(128) NULL,
	  gateway_txn_id VARCHAR(128) NULL,
	  amount_paise BIGINT NOT NULL,
	  currency CHAR(3) NOT NULL DEFAULT 'INR',
	  shipping_address_json JSON NOT NULL,
	  notes VARCHAR(500) NULL,
	  paid_at DATETIME(3) NULL,
	  cancelled_at DATETIME(3) NULL,
	  shipped_at DATETIME(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_orders_merchant_txn (merchant_txn_id),
	  KEY ix_orders_user_created (user_id, created_at),
	  KEY ix_orders_gateway_order (gateway, gateway_order_id),
	  KEY ix_orders_gateway_txn (gateway, gateway_txn_id),
	  KEY ix_orders_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS order_items (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  product_id CHAR(36) NOT NULL,
	  product_name VARCHAR(255) NOT NULL,
	  description TEXT NULL,
	  unit_price_paise BIGINT NOT NULL,
	  quantity INT NOT NULL,
	  line_total_paise BIGINT NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_order_items_order_id (order_id),
	  KEY ix_order_items_product_id (product_id),
	  CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS order_events (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  actor VARCHAR(64) NOT NULL,
	  action VARCHAR(32) NOT NULL,
	  from_status VARCHAR(16) NOT NULL DEFAULT '',
	  to_status VARCHAR(16) NOT NULL,
	  note VARCHAR(500) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_order_events_order_created (order_id, created_at),
	  CONSTRAINT fk_order_events_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS carts (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_carts_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS cart_items (
	  id CHAR(36) NOT NULL,
	  cart_id CHAR(36) NOT NULL,
	  product_id CHAR(36) NOT NULL,
	  quantity INT NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_cart_items_cart (cart_id),
	  CONSTRAINT fk_cart_items_cart FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS provider_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(32) NOT NULL,
	  event_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(64) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  processed_at DATETIME(3) NULL,
	  process_error VARCHAR(500) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_provider_events_provider_event (provider, event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS outbox_records (
	  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	  event_id CHAR(36) NOT NULL,
	  topic VARCHAR(128) NOT NULL,
	  ` + "`key`" + ` VARCHAR(128) NOT NULL,
	  payload JSON NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  sent_at DATETIME(3) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_outbox_event (event_id),
	  KEY ix_outbox_unsent (sent_at, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Tables created")
}
