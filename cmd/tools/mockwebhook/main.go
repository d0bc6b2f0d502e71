package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Sends a signed webhook the way each gateway would, for local testing.
//
//	mockwebhook -gateway phonepe -mtid MT123 -code PAYMENT_SUCCESS
//	mockwebhook -gateway razorpay -order-id order_abc -payment-id pay_xyz
func main() {
	base := flag.String("base", "http://localhost:8080", "Service base URL")
	gateway := flag.String("gateway", "phonepe", "Gateway (phonepe or razorpay)")
	mtid := flag.String("mtid", "MT"+randomHex(8), "Merchant transaction id")
	code := flag.String("code", "PAYMENT_SUCCESS", "PhonePe result code")
	orderID := flag.String("order-id", "order_"+randomHex(6), "Razorpay order id")
	paymentID := flag.String("payment-id", "pay_"+randomHex(6), "Razorpay payment id")
	event := flag.String("event", "payment.captured", "Razorpay event type")
	saltKey := flag.String("salt-key", os.Getenv("PHONEPE_SALT_KEY"), "PhonePe salt key")
	saltIndex := flag.String("salt-index", envOr("PHONEPE_SALT_INDEX", "1"), "PhonePe salt index")
	whSecret := flag.String("webhook-secret", os.Getenv("RAZORPAY_WEBHOOK_SECRET"), "Razorpay webhook secret")
	dryRun := flag.Bool("dry-run", false, "Only print body and signature, don't send")

	flag.Parse()

	var body []byte
	var header, sig, url string

	switch *gateway {
	case "phonepe":
		if *saltKey == "" {
			fmt.Fprintln(os.Stderr, "Error: -salt-key or PHONEPE_SALT_KEY required")
			os.Exit(1)
		}
		inner := fmt.Sprintf(`{"code":%q,"merchantTransactionId":%q,"transactionId":%q,"data":{"state":%q}}`,
			*code, *mtid, "T"+randomHex(8), *code)
		body = []byte(fmt.Sprintf(`{"response":%q}`, base64.StdEncoding.EncodeToString([]byte(inner))))
		sum := sha256.Sum256(append(body, []byte(*saltKey)...))
		sig = hex.EncodeToString(sum[:]) + "###" + *saltIndex
		header = "X-VERIFY"
		url = *base + "/webhooks/phonepe"

	case "razorpay":
		if *whSecret == "" {
			fmt.Fprintln(os.Stderr, "Error: -webhook-secret or RAZORPAY_WEBHOOK_SECRET required")
			os.Exit(1)
		}
		body = []byte(fmt.Sprintf(
			`{"id":%q,"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured","notes":{"merchant_txn_id":%q}}}}}`,
			"evt_"+randomHex(8), *event, *paymentID, *orderID, *mtid))
		mac := hmac.New(sha256.New, []byte(*whSecret))
		mac.Write(body)
		sig = hex.EncodeToString(mac.Sum(nil))
		header = "X-Razorpay-Signature"
		url = *base + "/webhooks/razorpay"

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown gateway %q\n", *gateway)
		os.Exit(1)
	}

	fmt.Printf("%s: %s\n", header, sig)
	fmt.Printf("Body: %s\n", body)

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", url)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %s\nResponse: %s\n", resp.Status, respBody)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "deadbeef"
	}
	return hex.EncodeToString(b)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
