// Package stripe implements the single narrow Stripe integration this
// system exposes: a webhook endpoint that keeps a user's
// storage.User.StripeCustomerID in sync with Stripe's Customer object, so
// the payout/monitoring side of the system can reference a stable id. There
// is no checkout/session-creation surface here — see
// internal/config.StripeConfig's doc comment.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/storage"
)

// Client verifies and handles Stripe webhook events.
type Client struct {
	webhookSecret string
	store         storage.Store
}

// New constructs a Client from cfg.
func New(cfg config.StripeConfig, store storage.Store) *Client {
	return &Client{webhookSecret: cfg.WebhookSecret, store: store}
}

// customerEvent is the subset of a Stripe customer.* event payload this
// package cares about: the customer id plus whatever identifies the
// HearthForge user it belongs to. The user is matched by metadata.user_id
// when present, else by email; client_reference_id is decoded but not used
// for matching.
type customerEvent struct {
	ID                 string            `json:"id"`
	Email              string            `json:"email"`
	Metadata           map[string]string `json:"metadata"`
	ClientReferenceID  string            `json:"client_reference_id"`
}

// HandleWebhook verifies payload's signature against the configured
// webhook secret, then syncs users.stripe_customer_id for customer.created
// and customer.updated events. Any other event type is accepted (200'd)
// but otherwise ignored, matching Stripe's recommendation to 2xx
// unhandled event types rather than erroring.
func (c *Client) HandleWebhook(ctx context.Context, payload []byte, signature string) (eventType string, err error) {
	if c.webhookSecret == "" {
		return "", apperrors.New(apperrors.CodePayments, "stripe webhook secret not configured")
	}
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeAuthentication, "invalid stripe webhook signature", err)
	}

	switch event.Type {
	case "customer.created", "customer.updated":
		if err := c.syncCustomer(ctx, event); err != nil {
			return string(event.Type), err
		}
	}
	return string(event.Type), nil
}

func (c *Client) syncCustomer(ctx context.Context, event stripeapi.Event) error {
	var cust customerEvent
	if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
		return apperrors.Wrap(apperrors.CodeDecoding, "decoding stripe customer payload", err)
	}
	if cust.ID == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "stripe customer event missing id")
	}

	userID := cust.Metadata["user_id"]
	var user *storage.User
	var err error
	switch {
	case userID != "":
		id, parseErr := parseUserID(userID)
		if parseErr != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid user_id in stripe metadata", parseErr)
		}
		user, err = c.store.GetUserByID(ctx, id)
	case cust.Email != "":
		user, err = c.store.GetUserByEmail(ctx, cust.Email)
	default:
		return apperrors.New(apperrors.CodeInvalidInput, "stripe customer event has no user_id metadata or email to match against")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "looking up user for stripe customer sync", err)
	}

	user.StripeCustomerID = &cust.ID
	if err := c.store.UpdateUser(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "updating user stripe_customer_id", err)
	}
	return nil
}

func parseUserID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}
