package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/storage"
)

const testWebhookSecret = "whsec_test_secret"

// sign reproduces Stripe's webhook signing scheme so tests can exercise
// Client.HandleWebhook without a live Stripe account: header is
// "t=<unix>,v1=hex(hmac_sha256(secret, "<unix>.<payload>"))".
func sign(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func customerEventPayload(eventType, customerID, userIDMeta, email string) []byte {
	metadata := ""
	if userIDMeta != "" {
		metadata = fmt.Sprintf(`,"metadata":{"user_id":"%s"}`, userIDMeta)
	}
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"data": {"object": {"id": %q, "email": %q%s}}
	}`, eventType, customerID, email, metadata))
}

func TestHandleWebhookSyncsCustomerByUserIDMetadata(t *testing.T) {
	store := storage.NewMemoryStore()
	user := &storage.User{Username: "alice"}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	c := New(config.StripeConfig{WebhookSecret: testWebhookSecret}, store)
	payload := customerEventPayload("customer.created", "cus_123", fmt.Sprintf("%d", user.ID), "")
	sig := sign(testWebhookSecret, payload, time.Now().Unix())

	eventType, err := c.HandleWebhook(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if eventType != "customer.created" {
		t.Fatalf("got event type %q", eventType)
	}

	got, err := store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_123" {
		t.Fatalf("expected stripe_customer_id synced, got %+v", got.StripeCustomerID)
	}
}

func TestHandleWebhookSyncsCustomerByEmailFallback(t *testing.T) {
	store := storage.NewMemoryStore()
	email := "bob@example.com"
	user := &storage.User{Username: "bob", Email: &email}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	c := New(config.StripeConfig{WebhookSecret: testWebhookSecret}, store)
	payload := customerEventPayload("customer.updated", "cus_456", "", email)
	sig := sign(testWebhookSecret, payload, time.Now().Unix())

	if _, err := c.HandleWebhook(context.Background(), payload, sig); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	got, err := store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_456" {
		t.Fatalf("expected stripe_customer_id synced via email, got %+v", got.StripeCustomerID)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(config.StripeConfig{WebhookSecret: testWebhookSecret}, store)
	payload := customerEventPayload("customer.created", "cus_123", "1", "")

	if _, err := c.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef"); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestHandleWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(config.StripeConfig{WebhookSecret: testWebhookSecret}, store)
	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)
	sig := sign(testWebhookSecret, payload, time.Now().Unix())

	eventType, err := c.HandleWebhook(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if eventType != "invoice.paid" {
		t.Fatalf("got event type %q", eventType)
	}
}
