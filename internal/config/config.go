package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN      string
	ListenAddr string
	BaseURL    string

	DefaultGateway string
	GatewayTimeout time.Duration

	// PhonePe (hosted redirect + async webhook)
	PhonePeBaseURL   string
	PhonePeMerchant  string
	PhonePeSaltKey   string
	PhonePeSaltIndex string

	// Razorpay (order + synchronous signature verification)
	RazorpayBaseURL       string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	// Stock policy on gateway failure: false => restore (compensate),
	// true => keep the decrement as a reservation.
	StockReserveOnFailure bool

	KafkaBrokers string
}

func Load() Config {
	// .env is optional; prod uses real env vars
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	return Config{
		DBDSN:      getEnv("DB_DSN", ""),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		DefaultGateway: getEnv("PAYMENT_GATEWAY", "phonepe"),
		GatewayTimeout: getDurationEnv("GATEWAY_TIMEOUT_SECONDS", 15, time.Second),

		PhonePeBaseURL:   getEnv("PHONEPE_BASE_URL", "https://api-preprod.phonepe.com/apis/pg-sandbox"),
		PhonePeMerchant:  getEnv("PHONEPE_MERCHANT_ID", ""),
		PhonePeSaltKey:   getEnv("PHONEPE_SALT_KEY", ""),
		PhonePeSaltIndex: getEnv("PHONEPE_SALT_INDEX", "1"),

		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),

		StockReserveOnFailure: getBoolEnv("STOCK_RESERVE_ON_FAILURE", false),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def int, unit time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return time.Duration(def) * unit
}
